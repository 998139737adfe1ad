package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
)

// Runner starts a generation run.
type Runner interface {
	Run(ctx context.Context, family domain.TicketFamily, mode domain.GenerationMode, trigger domain.TriggerSource, actor *domain.Actor) (*domain.RunReport, error)
}

// GenerationWorker runs unattended fixed-horizon generation on a cron schedule.
type GenerationWorker struct {
	runner   Runner
	cron     *cron.Cron
	spec     string
	families []domain.TicketFamily
	logger   *zap.Logger
}

// NewGenerationWorker builds a worker for the given families. Runs use the
// system identity.
func NewGenerationWorker(runner Runner, spec string, loc *time.Location, logger *zap.Logger, families ...domain.TicketFamily) *GenerationWorker {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(families) == 0 {
		families = []domain.TicketFamily{domain.FamilyMaintenance, domain.FamilyRenewal}
	}
	return &GenerationWorker{
		runner:   runner,
		cron:     cron.New(cron.WithLocation(loc)),
		spec:     spec,
		families: families,
		logger:   logger,
	}
}

// Start registers the job and starts the cron engine.
func (w *GenerationWorker) Start() error {
	if _, err := w.cron.AddFunc(w.spec, func() { w.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule generation %q: %w", w.spec, err)
	}
	w.cron.Start()
	w.logger.Info("generation scheduler started", zap.String("spec", w.spec))
	return nil
}

// Stop halts scheduling and waits for a running job to finish or ctx to expire.
func (w *GenerationWorker) Stop(ctx context.Context) {
	done := w.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		w.logger.Warn("generation scheduler stop timed out")
	}
}

// RunOnce generates fixed-horizon tickets for every family in turn. A failed
// family does not prevent the next one from running.
func (w *GenerationWorker) RunOnce(ctx context.Context) {
	for _, family := range w.families {
		report, err := w.runner.Run(ctx, family, domain.ModeFixedHorizon, domain.TriggerScheduler, nil)
		if err != nil {
			w.logger.Error("scheduled generation failed", zap.String("family", string(family)), zap.Error(err))
			continue
		}
		w.logger.Info("scheduled generation finished",
			zap.String("family", string(family)),
			zap.String("run_id", report.RunID),
			zap.Int("created", report.Created),
		)
	}
}
