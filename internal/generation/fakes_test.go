package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
	"github.com/spec-kit/maintenance-ticketing/internal/ticketing"
)

type fakeSchedules struct {
	schedules []domain.MaintenanceSchedule
	err       error
}

func (f *fakeSchedules) ListActiveWithAsset(context.Context) ([]domain.MaintenanceSchedule, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.MaintenanceSchedule, len(f.schedules))
	copy(out, f.schedules)
	return out, nil
}

type fakeCoverages struct {
	coverages []domain.CoverageRecord
	err       error
}

func (f *fakeCoverages) ListActiveRenewalWithAsset(context.Context) ([]domain.CoverageRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.CoverageRecord, len(f.coverages))
	copy(out, f.coverages)
	return out, nil
}

// fakeTicketClient behaves like the ticketing service: created tickets become
// visible to later list calls.
type fakeTicketClient struct {
	mu       sync.Mutex
	created  []ticketing.TicketPayload
	triggers []domain.TriggerSource
	existing []ticketing.ExternalTicket
	fetches  int
	fetchErr error
	// omitTotal leaves totalCount at zero like upstreams that skip it.
	omitTotal bool
	createFn  func(p ticketing.TicketPayload) (ticketing.CreateResult, error)
}

func (f *fakeTicketClient) CreateTicket(_ context.Context, p ticketing.TicketPayload, _ domain.TicketFamily, _ string, trigger domain.TriggerSource) (ticketing.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFn != nil {
		res, err := f.createFn(p)
		if err != nil || !res.Success {
			return res, err
		}
	}
	f.created = append(f.created, p)
	f.triggers = append(f.triggers, trigger)
	number := fmt.Sprintf("TKT-%04d", len(f.created))
	fields := make(map[string]any, len(p.FormFields))
	for k, v := range p.FormFields {
		fields[k] = v
	}
	f.existing = append(f.existing, ticketing.ExternalTicket{
		TicketNumber: number,
		Subject:      p.Subject,
		TicketType:   p.TicketType,
		LocationCode: p.LocationCode,
		FormFields:   fields,
	})
	return ticketing.CreateResult{Success: true, TicketNumber: number, StatusCode: 201}, nil
}

func (f *fakeTicketClient) FetchTickets(_ context.Context, filter ticketing.ListFilter) (*ticketing.TicketPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	total := len(f.existing)
	if f.omitTotal {
		total = 0
	}
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(f.existing) {
		return &ticketing.TicketPage{Data: []ticketing.ExternalTicket{}, TotalCount: total}, nil
	}
	end := start + filter.PageSize
	if end > len(f.existing) {
		end = len(f.existing)
	}
	page := make([]ticketing.ExternalTicket, end-start)
	copy(page, f.existing[start:end])
	return &ticketing.TicketPage{Data: page, TotalCount: total}, nil
}

func (f *fakeTicketClient) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type outcomeCounter struct {
	mu       sync.Mutex
	outcomes map[string]int
	runs     []string
}

func (o *outcomeCounter) RecordTicketOutcome(_, _, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[status]++
}

func (o *outcomeCounter) RecordRun(_, _, state string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, state)
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(day string) func() time.Time {
	t := date(day).Add(9 * time.Hour)
	return func() time.Time { return t }
}

func asset(id, name, location string) *domain.Asset {
	return &domain.Asset{
		ID:           id,
		Name:         name,
		LocationCode: location,
		Floor:        "2",
		Category:     "HVAC",
		Subcategory:  "Chiller",
	}
}

func monthlySchedule(id string, a *domain.Asset, start string) domain.MaintenanceSchedule {
	return domain.MaintenanceSchedule{
		ID:              id,
		AssetRef:        a.ID,
		MaintenanceName: "Filter replacement",
		StartDate:       date(start),
		FrequencyUnit:   domain.FrequencyMonthly,
		FrequencyValue:  1,
		Owner:           "Facilities",
		IsActive:        true,
		Asset:           a,
	}
}

var testBuilder = ticketing.NewPayloadBuilder(ticketing.Envelope{TenantID: "tenant", OrgID: "org", Channel: "ASSET_MANAGEMENT"})
