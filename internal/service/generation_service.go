package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
	"github.com/spec-kit/maintenance-ticketing/internal/events"
	"github.com/spec-kit/maintenance-ticketing/internal/generation"
	"github.com/spec-kit/maintenance-ticketing/internal/repository"
	apperrors "github.com/spec-kit/maintenance-ticketing/pkg/util"
)

// Generator runs one generation pass.
type Generator interface {
	Generate(ctx context.Context, req generation.RunRequest) (*domain.RunReport, error)
}

// GenerationService triggers runs and exposes their audit trail.
type GenerationService struct {
	generator  Generator
	audit      repository.RunAuditRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// GenerationDependencies bundles collaborators for the generation service.
type GenerationDependencies struct {
	Generator  Generator
	Audit      repository.RunAuditRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewGenerationService constructs the service.
func NewGenerationService(deps GenerationDependencies) *GenerationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationService{
		generator:  deps.Generator,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// ParseFamily accepts MAINTENANCE/RENEWAL in any case.
func ParseFamily(raw string) (domain.TicketFamily, error) {
	switch domain.TicketFamily(strings.ToUpper(strings.TrimSpace(raw))) {
	case domain.FamilyMaintenance:
		return domain.FamilyMaintenance, nil
	case domain.FamilyRenewal:
		return domain.FamilyRenewal, nil
	default:
		return "", apperrors.NewValidationError("unknown ticket family", map[string]any{"family": raw, "allowed": []string{"maintenance", "renewal"}})
	}
}

// ParseMode accepts window/fixed_horizon in any case; empty means WINDOW.
func ParseMode(raw string) (domain.GenerationMode, error) {
	switch domain.GenerationMode(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", domain.ModeWindow:
		return domain.ModeWindow, nil
	case domain.ModeFixedHorizon:
		return domain.ModeFixedHorizon, nil
	default:
		return "", apperrors.NewValidationError("unknown generation mode", map[string]any{"mode": raw, "allowed": []string{"window", "fixed_horizon"}})
	}
}

// Run executes a generation run and publishes its outcome. An aborted run still
// returns its partial report together with an upstream error.
func (s *GenerationService) Run(ctx context.Context, family domain.TicketFamily, mode domain.GenerationMode, trigger domain.TriggerSource, actor *domain.Actor) (*domain.RunReport, error) {
	report, err := s.generator.Generate(ctx, generation.RunRequest{
		Family:  family,
		Mode:    mode,
		Trigger: trigger,
		Actor:   actor,
	})
	if report == nil {
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error(), nil)
		}
		return nil, apperrors.NewInternalError(nil)
	}

	if s.dispatcher != nil {
		// The caller's context may already be gone once the run finishes.
		if perr := s.dispatcher.Publish(context.WithoutCancel(ctx), events.NewRunEvent(report, actor)); perr != nil {
			s.logger.Warn("run event handlers failed", zap.String("run_id", report.RunID), zap.Error(perr))
		}
	}
	if err != nil {
		return report, apperrors.NewUpstreamError("generation run aborted", err)
	}
	return report, nil
}

// RecentRuns lists the latest audited reports for a family.
func (s *GenerationService) RecentRuns(ctx context.Context, family domain.TicketFamily, limit int) ([]domain.RunReport, error) {
	if s.audit == nil {
		return []domain.RunReport{}, nil
	}
	reports, err := s.audit.ListRecent(ctx, family, limit)
	if err != nil {
		return nil, apperrors.NewUpstreamError("run audit unavailable", err)
	}
	return reports, nil
}
