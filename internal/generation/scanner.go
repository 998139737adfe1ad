// Package generation decides which assets are due for maintenance or renewal
// tickets and drives their submission to the ticketing service.
package generation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
	"github.com/spec-kit/maintenance-ticketing/internal/recurrence"
	"github.com/spec-kit/maintenance-ticketing/internal/repository"
	"github.com/spec-kit/maintenance-ticketing/internal/ticketing"
)

// Default widths of the two selection modes, in days from today.
const (
	DefaultHorizonDays = 15
	DefaultWindowDays  = 14
)

// Window is the inclusive range of due dates selected by a run.
type Window struct {
	Mode  domain.GenerationMode
	Today time.Time
	From  time.Time
	To    time.Time
}

// NewWindow derives the selection range for mode. Fixed-horizon runs select the
// single day today+horizonDays; window runs select [today, today+windowDays].
func NewWindow(mode domain.GenerationMode, today time.Time, horizonDays, windowDays int) Window {
	today = recurrence.DateOf(today)
	if mode == domain.ModeFixedHorizon {
		target := recurrence.AddDays(today, horizonDays)
		return Window{Mode: mode, Today: today, From: target, To: target}
	}
	return Window{Mode: mode, Today: today, From: today, To: recurrence.AddDays(today, windowDays)}
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d time.Time) bool {
	d = recurrence.DateOf(d)
	return !d.Before(w.From) && !d.After(w.To)
}

// TicketFamily is the strategy the orchestrator runs for one ticket family.
type TicketFamily interface {
	Family() domain.TicketFamily
	ScanDueItems(ctx context.Context, window Window) ([]domain.DueItem, error)
	BuildPayload(item domain.DueItem, actor domain.Actor) (ticketing.TicketPayload, error)
}

// MaintenanceFamily generates preventive maintenance tickets from schedules.
type MaintenanceFamily struct {
	schedules repository.ScheduleRepository
	builder   ticketing.PayloadBuilder
}

// NewMaintenanceFamily wires the schedule repository and payload builder.
func NewMaintenanceFamily(schedules repository.ScheduleRepository, builder ticketing.PayloadBuilder) *MaintenanceFamily {
	return &MaintenanceFamily{schedules: schedules, builder: builder}
}

func (f *MaintenanceFamily) Family() domain.TicketFamily { return domain.FamilyMaintenance }

func (f *MaintenanceFamily) ScanDueItems(ctx context.Context, window Window) ([]domain.DueItem, error) {
	schedules, err := f.schedules.ListActiveWithAsset(ctx)
	if err != nil {
		return nil, fmt.Errorf("list maintenance schedules: %w", err)
	}
	items := make([]domain.DueItem, 0)
	for i := range schedules {
		s := &schedules[i]
		if !s.IsActive {
			continue
		}
		next := recurrence.NextDue(s.StartDate, s.FrequencyUnit, s.FrequencyValue, window.Today)
		if !window.Contains(next) {
			continue
		}
		items = append(items, domain.DueItem{
			Family:   domain.FamilyMaintenance,
			SourceID: s.ID,
			Asset:    s.Asset,
			DueDate:  next,
			Schedule: s,
		})
	}
	sortDueItems(items)
	return items, nil
}

func (f *MaintenanceFamily) BuildPayload(item domain.DueItem, actor domain.Actor) (ticketing.TicketPayload, error) {
	return f.builder.Maintenance(item, actor)
}

// RenewalFamily generates renewal tickets for expiring renewal contracts.
type RenewalFamily struct {
	coverages repository.CoverageRepository
	builder   ticketing.PayloadBuilder
}

// NewRenewalFamily wires the coverage repository and payload builder.
func NewRenewalFamily(coverages repository.CoverageRepository, builder ticketing.PayloadBuilder) *RenewalFamily {
	return &RenewalFamily{coverages: coverages, builder: builder}
}

func (f *RenewalFamily) Family() domain.TicketFamily { return domain.FamilyRenewal }

// ScanDueItems uses the coverage end date as the due date; coverages do not recur.
func (f *RenewalFamily) ScanDueItems(ctx context.Context, window Window) ([]domain.DueItem, error) {
	coverages, err := f.coverages.ListActiveRenewalWithAsset(ctx)
	if err != nil {
		return nil, fmt.Errorf("list renewal coverages: %w", err)
	}
	items := make([]domain.DueItem, 0)
	for i := range coverages {
		c := &coverages[i]
		if !c.IsActive || !isRenewalContract(c.CoverageType) {
			continue
		}
		due := recurrence.DateOf(c.EndDate)
		if !window.Contains(due) {
			continue
		}
		items = append(items, domain.DueItem{
			Family:   domain.FamilyRenewal,
			SourceID: c.ID,
			Asset:    c.Asset,
			DueDate:  due,
			Coverage: c,
		})
	}
	sortDueItems(items)
	return items, nil
}

func (f *RenewalFamily) BuildPayload(item domain.DueItem, actor domain.Actor) (ticketing.TicketPayload, error) {
	return f.builder.Renewal(item, actor)
}

func isRenewalContract(coverageType string) bool {
	return strings.EqualFold(strings.TrimSpace(coverageType), domain.CoverageTypeRenewalContract)
}

// sortDueItems orders by location, category and name so reports are reproducible.
func sortDueItems(items []domain.DueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := sortKey(items[i]), sortKey(items[j])
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
}

func sortKey(item domain.DueItem) [5]string {
	var key [5]string
	if item.Asset != nil {
		key[0] = item.Asset.LocationCode
		key[1] = item.Asset.Category
		key[2] = item.Asset.Name
	}
	if item.Schedule != nil {
		key[3] = item.Schedule.MaintenanceName
	}
	key[4] = item.SourceID
	return key
}
