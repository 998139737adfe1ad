package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-ticketing/internal/events"
	"github.com/spec-kit/maintenance-ticketing/internal/repository"
)

// NotificationService reacts to generation events: it logs the outcome and
// appends the report to the run audit.
type NotificationService struct {
	dispatcher events.Dispatcher
	audit      repository.RunAuditRepository
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, audit repository.RunAuditRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		audit:      audit,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRunCompleted, n.handleRunCompleted)
	n.dispatcher.Subscribe(events.EventRunAborted, n.handleRunAborted)
}

func (n *NotificationService) handleRunCompleted(ctx context.Context, event events.Event) error {
	report := event.Payload
	if report == nil {
		return nil
	}
	n.logger.Info("GenerationRunCompleted",
		zap.String("run_id", event.RunID),
		zap.String("family", string(report.Family)),
		zap.String("mode", string(report.Mode)),
		zap.Int("created", report.Created),
		zap.Int("failed", report.Failed),
	)
	return n.persist(ctx, event)
}

func (n *NotificationService) handleRunAborted(ctx context.Context, event events.Event) error {
	report := event.Payload
	if report == nil {
		return nil
	}
	n.logger.Warn("GenerationRunAborted",
		zap.String("run_id", event.RunID),
		zap.String("family", string(report.Family)),
		zap.String("reason", report.AbortReason),
	)
	return n.persist(ctx, event)
}

func (n *NotificationService) persist(ctx context.Context, event events.Event) error {
	if n.audit == nil {
		return nil
	}
	if err := n.audit.Append(ctx, event.Payload); err != nil {
		n.logger.Error("run audit append failed", zap.String("run_id", event.RunID), zap.Error(err))
		return err
	}
	return nil
}
