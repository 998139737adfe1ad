package generation

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
	"github.com/spec-kit/maintenance-ticketing/internal/recurrence"
	"github.com/spec-kit/maintenance-ticketing/internal/ticketing"
)

// TicketFetcher lists existing tickets on the ticketing service.
type TicketFetcher interface {
	FetchTickets(ctx context.Context, filter ticketing.ListFilter) (*ticketing.TicketPage, error)
}

// DedupIndex is a best-effort set of tickets that already exist upstream.
//
// Keys are built from the asset id (falling back to the location code) and the
// due day. A ticket whose fields differ from the item's is not recognised, so
// duplicates can slip through. Two items for the same asset due on the same day
// share a key, so a ticket for one marks the other as a duplicate too.
type DedupIndex struct {
	keys map[string]struct{}
}

// NewDedupIndex returns an empty index.
func NewDedupIndex() *DedupIndex {
	return &DedupIndex{keys: make(map[string]struct{})}
}

// Add records a key; empty keys are ignored.
func (d *DedupIndex) Add(key string) {
	if key != "" {
		d.keys[key] = struct{}{}
	}
}

// Contains reports whether key was seen.
func (d *DedupIndex) Contains(key string) bool {
	if d == nil || key == "" {
		return false
	}
	_, ok := d.keys[key]
	return ok
}

// Len returns the number of distinct keys.
func (d *DedupIndex) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// DedupKey composes the identity of a ticket from an asset or location and a due day.
func DedupKey(assetID, locationCode, dueDate string) string {
	dueDate = strings.TrimSpace(dueDate)
	if len(dueDate) < len(recurrence.DateLayout) {
		return ""
	}
	day, err := time.Parse(recurrence.DateLayout, dueDate[:len(recurrence.DateLayout)])
	if err != nil {
		return ""
	}
	var subject string
	if id := normalize(assetID); id != "" {
		subject = "asset:" + id
	} else if loc := normalize(locationCode); loc != "" {
		subject = "loc:" + loc
	} else {
		return ""
	}
	return subject + "|" + day.Format(recurrence.DateLayout)
}

// KeyForItem computes the dedup key of a due item.
func KeyForItem(item domain.DueItem) string {
	if item.Asset == nil {
		return ""
	}
	return DedupKey(item.Asset.ID, item.Asset.LocationCode, recurrence.FormatDate(item.DueDate))
}

// KeyForTicket computes the dedup key of an existing ticket.
func KeyForTicket(t ticketing.ExternalTicket) string {
	due := t.FormField(ticketing.FieldDueDate)
	if due == "" {
		due = t.DueDate
	}
	return DedupKey(t.FormField(ticketing.FieldAssetID), t.LocationCode, due)
}

// BuildDedupIndex pages through the family's tickets due inside window.
// Any error is returned as is; the caller decides whether to degrade.
func BuildDedupIndex(ctx context.Context, fetcher TicketFetcher, family domain.TicketFamily, window Window, pageSize, maxPages int) (*DedupIndex, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	if maxPages <= 0 {
		maxPages = 20
	}
	index := NewDedupIndex()
	seen := 0
	for page := 1; page <= maxPages; page++ {
		result, err := fetcher.FetchTickets(ctx, ticketing.ListFilter{
			Families: []domain.TicketFamily{family},
			DueFrom:  recurrence.FormatDate(window.From),
			DueTo:    recurrence.FormatDate(window.To),
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			return nil, err
		}
		for _, t := range result.Data {
			index.Add(KeyForTicket(t))
		}
		seen += len(result.Data)
		if len(result.Data) < pageSize || (result.TotalCount > 0 && seen >= result.TotalCount) {
			break
		}
	}
	return index, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
