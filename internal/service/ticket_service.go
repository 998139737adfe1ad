package service

import (
	"context"
	"errors"

	"github.com/spec-kit/maintenance-ticketing/internal/credentials"
	"github.com/spec-kit/maintenance-ticketing/internal/domain"
	"github.com/spec-kit/maintenance-ticketing/internal/ticketing"
	apperrors "github.com/spec-kit/maintenance-ticketing/pkg/util"
)

// TicketReader is the read side of the ticketing client.
type TicketReader interface {
	FetchTickets(ctx context.Context, filter ticketing.ListFilter) (*ticketing.TicketPage, error)
	FetchKPIs(ctx context.Context, filter ticketing.KPIFilter) (map[string]any, error)
	FetchStatusOptions(ctx context.Context) ([]ticketing.StatusOption, error)
}

// TicketService proxies ad-hoc ticket queries and service token administration.
type TicketService struct {
	tickets TicketReader
	tokens  credentials.Provider
}

// NewTicketService constructs the service.
func NewTicketService(tickets TicketReader, tokens credentials.Provider) *TicketService {
	return &TicketService{tickets: tickets, tokens: tokens}
}

// ListTickets returns one page of generated tickets.
func (s *TicketService) ListTickets(ctx context.Context, filter ticketing.ListFilter) (*ticketing.TicketPage, error) {
	if len(filter.Families) == 0 {
		filter.Families = []domain.TicketFamily{domain.FamilyMaintenance, domain.FamilyRenewal}
	}
	if filter.PageSize > 200 {
		filter.PageSize = 200
	}
	page, err := s.tickets.FetchTickets(ctx, filter)
	if err != nil {
		return nil, upstream("ticket list unavailable", err)
	}
	return page, nil
}

// KPIs returns ticket counters for the requested families.
func (s *TicketService) KPIs(ctx context.Context, filter ticketing.KPIFilter) (map[string]any, error) {
	if len(filter.Families) == 0 {
		filter.Families = []domain.TicketFamily{domain.FamilyMaintenance, domain.FamilyRenewal}
	}
	kpis, err := s.tickets.FetchKPIs(ctx, filter)
	if err != nil {
		return nil, upstream("ticket kpis unavailable", err)
	}
	return kpis, nil
}

// StatusOptions lists the statuses tickets can take upstream.
func (s *TicketService) StatusOptions(ctx context.Context) ([]ticketing.StatusOption, error) {
	options, err := s.tickets.FetchStatusOptions(ctx)
	if err != nil {
		return nil, upstream("ticket status options unavailable", err)
	}
	if options == nil {
		options = []ticketing.StatusOption{}
	}
	return options, nil
}

// InvalidateServiceToken forces the next ticketing call to request a new token.
func (s *TicketService) InvalidateServiceToken() {
	if s.tokens != nil {
		s.tokens.Invalidate()
	}
}

func upstream(message string, err error) error {
	if errors.Is(err, credentials.ErrCredentialsExhausted) {
		return apperrors.NewUpstreamError("service token unavailable", err)
	}
	return apperrors.NewUpstreamError(message, err)
}
