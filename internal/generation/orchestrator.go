package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/maintenance-ticketing/internal/credentials"
	"github.com/spec-kit/maintenance-ticketing/internal/domain"
	"github.com/spec-kit/maintenance-ticketing/internal/recurrence"
	"github.com/spec-kit/maintenance-ticketing/internal/ticketing"
)

var (
	// ErrUnknownFamily is returned for a family with no registered strategy.
	ErrUnknownFamily = errors.New("unknown ticket family")
	// ErrUnknownMode is returned for an unsupported generation mode.
	ErrUnknownMode = errors.New("unknown generation mode")
)

// TicketClient is the part of the ticketing client the orchestrator needs.
type TicketClient interface {
	TicketFetcher
	CreateTicket(ctx context.Context, payload ticketing.TicketPayload, family domain.TicketFamily, sourceID string, trigger domain.TriggerSource) (ticketing.CreateResult, error)
}

// OutcomeRecorder receives per-item and per-run measurements.
type OutcomeRecorder interface {
	RecordTicketOutcome(family, mode, status string)
	RecordRun(family, mode, state string, duration time.Duration)
}

// RunRequest describes one generation run.
type RunRequest struct {
	Family  domain.TicketFamily
	Mode    domain.GenerationMode
	Trigger domain.TriggerSource
	// Actor is stamped on tickets; nil means the system identity.
	Actor *domain.Actor
}

// Orchestrator runs the scan, dedup and submit pipeline for any registered family.
type Orchestrator struct {
	families      map[domain.TicketFamily]TicketFamily
	client        TicketClient
	logger        *zap.Logger
	metrics       OutcomeRecorder
	now           func() time.Time
	location      *time.Location
	horizonDays   int
	windowDays    int
	concurrency   int
	dedupPageSize int
	dedupMaxPages int
	systemActor   domain.Actor
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithLogger injects a zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithMetrics records outcomes and run durations.
func WithMetrics(m OutcomeRecorder) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock replaces time.Now when deriving "today".
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithLocation sets the timezone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithHorizon overrides the fixed-horizon offset and window width in days.
func WithHorizon(horizonDays, windowDays int) Option {
	return func(o *Orchestrator) {
		if horizonDays > 0 {
			o.horizonDays = horizonDays
		}
		if windowDays > 0 {
			o.windowDays = windowDays
		}
	}
}

// WithConcurrency processes up to n items at once. The default of 1 keeps at
// most one ticketing call in flight per run.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithDedupPaging bounds the dedup prefetch.
func WithDedupPaging(pageSize, maxPages int) Option {
	return func(o *Orchestrator) {
		o.dedupPageSize = pageSize
		o.dedupMaxPages = maxPages
	}
}

// WithSystemActor sets the identity used for unattended runs.
func WithSystemActor(actor domain.Actor) Option {
	return func(o *Orchestrator) {
		o.systemActor = actor
	}
}

// NewOrchestrator registers the given families against one ticketing client.
func NewOrchestrator(client TicketClient, families []TicketFamily, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		families:      make(map[domain.TicketFamily]TicketFamily, len(families)),
		client:        client,
		logger:        zap.NewNop(),
		now:           time.Now,
		location:      time.UTC,
		horizonDays:   DefaultHorizonDays,
		windowDays:    DefaultWindowDays,
		concurrency:   1,
		dedupPageSize: 100,
		dedupMaxPages: 20,
		systemActor:   domain.Actor{ID: "system", Name: "System"},
	}
	for _, f := range families {
		o.families[f.Family()] = f
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate executes one run. Individual item failures are recorded in the report;
// an error is returned only when the run aborts, together with the partial report.
func (o *Orchestrator) Generate(ctx context.Context, req RunRequest) (*domain.RunReport, error) {
	family, ok := o.families[req.Family]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, req.Family)
	}
	if req.Mode != domain.ModeFixedHorizon && req.Mode != domain.ModeWindow {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
	if req.Trigger == "" {
		req.Trigger = domain.TriggerScheduler
	}
	actor := o.systemActor
	if req.Actor != nil {
		actor = *req.Actor
	}

	started := o.now()
	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		Family:    req.Family,
		Mode:      req.Mode,
		Trigger:   req.Trigger,
		StartedAt: started,
		Results:   []domain.TicketResult{},
	}
	log := o.logger.With(
		zap.String("run_id", report.RunID),
		zap.String("family", string(req.Family)),
		zap.String("mode", string(req.Mode)),
		zap.String("trigger", string(req.Trigger)),
	)

	o.transition(report, domain.RunStateScanning, log)
	window := NewWindow(req.Mode, recurrence.Today(started, o.location), o.horizonDays, o.windowDays)
	items, err := family.ScanDueItems(ctx, window)
	if err != nil {
		return o.abort(report, log, fmt.Errorf("scan due items: %w", err))
	}
	report.Scanned = len(items)
	log.Info("due items scanned",
		zap.Int("count", len(items)),
		zap.String("from", recurrence.FormatDate(window.From)),
		zap.String("to", recurrence.FormatDate(window.To)),
	)

	var index *DedupIndex
	if req.Mode == domain.ModeWindow {
		o.transition(report, domain.RunStateBuildingDedupIndex, log)
		index, err = BuildDedupIndex(ctx, o.client, req.Family, window, o.dedupPageSize, o.dedupMaxPages)
		if err != nil {
			if errors.Is(err, credentials.ErrCredentialsExhausted) {
				return o.abort(report, log, err)
			}
			log.Warn("dedup index unavailable, continuing without duplicate check", zap.Error(err))
			report.DedupDegraded = true
			index = NewDedupIndex()
		} else {
			log.Info("dedup index built", zap.Int("keys", index.Len()))
		}
	}

	o.transition(report, domain.RunStateIterating, log)
	results, err := o.iterate(ctx, family, items, index, actor, req, log)
	report.Results = results
	if err != nil {
		return o.abort(report, log, err)
	}

	o.finish(report, domain.RunStateCompleted)
	log.Info("generation run completed",
		zap.Int("created", report.Created),
		zap.Int("skipped", report.Skipped),
		zap.Int("skipped_duplicate", report.SkippedDuplicate),
		zap.Int("failed", report.Failed),
		zap.Int64("execution_time_ms", report.ExecutionTimeMs),
	)
	return report, nil
}

func (o *Orchestrator) iterate(ctx context.Context, family TicketFamily, items []domain.DueItem, index *DedupIndex, actor domain.Actor, req RunRequest, log *zap.Logger) ([]domain.TicketResult, error) {
	results := make([]domain.TicketResult, len(items))

	if o.concurrency <= 1 {
		for i := range items {
			if err := ctx.Err(); err != nil {
				return compact(results), err
			}
			res, err := o.process(ctx, family, items[i], index, actor, req, log)
			results[i] = res
			if err != nil {
				return compact(results), err
			}
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := o.process(gctx, family, items[i], index, actor, req, log)
			results[i] = res
			return err
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return compact(results), err
}

// process handles one item. The error is non-nil only for credential exhaustion.
func (o *Orchestrator) process(ctx context.Context, family TicketFamily, item domain.DueItem, index *DedupIndex, actor domain.Actor, req RunRequest, log *zap.Logger) (domain.TicketResult, error) {
	result := domain.TicketResult{
		Family:   item.Family,
		SourceID: item.SourceID,
		DueDate:  recurrence.FormatDate(item.DueDate),
	}
	if item.Asset != nil {
		result.AssetID = item.Asset.ID
		result.AssetName = item.Asset.Name
	}
	itemLog := log.With(zap.String("source_id", item.SourceID), zap.String("due_date", result.DueDate))

	if index != nil && index.Contains(KeyForItem(item)) {
		result.Status = domain.TicketSkippedDuplicate
		result.Reason = fmt.Sprintf("ticket already exists for %s due %s", describeAsset(item), result.DueDate)
		o.record(req, result.Status)
		itemLog.Debug("skipping duplicate")
		return result, nil
	}

	payload, err := family.BuildPayload(item, actor)
	if err != nil {
		result.Status = domain.TicketSkipped
		result.Reason = fmt.Sprintf("cannot build ticket payload: %v", err)
		o.record(req, result.Status)
		itemLog.Warn("skipping item", zap.Error(err))
		return result, nil
	}

	created, err := o.client.CreateTicket(ctx, payload, item.Family, item.SourceID, req.Trigger)
	result.ExecutionTimeMs = created.ExecutionTime
	if err != nil {
		result.Status = domain.TicketFailed
		result.Reason = fmt.Sprintf("service token unavailable: %v", err)
		o.record(req, result.Status)
		return result, err
	}
	if !created.Success {
		result.Status = domain.TicketFailed
		result.Reason = fmt.Sprintf("ticket creation failed for %s: %s", describeAsset(item), created.Error)
		o.record(req, result.Status)
		return result, nil
	}

	result.Status = domain.TicketCreated
	result.TicketNumber = created.TicketNumber
	o.record(req, result.Status)
	return result, nil
}

func (o *Orchestrator) abort(report *domain.RunReport, log *zap.Logger, err error) (*domain.RunReport, error) {
	report.AbortReason = err.Error()
	o.finish(report, domain.RunStateAborted)
	log.Error("generation run aborted",
		zap.Int("processed", len(report.Results)),
		zap.Int("scanned", report.Scanned),
		zap.Error(err),
	)
	return report, err
}

func (o *Orchestrator) finish(report *domain.RunReport, state domain.RunState) {
	report.State = state
	report.Tally()
	report.FinishedAt = o.now()
	duration := report.FinishedAt.Sub(report.StartedAt)
	report.ExecutionTimeMs = duration.Milliseconds()
	if o.metrics != nil {
		o.metrics.RecordRun(string(report.Family), string(report.Mode), string(state), duration)
	}
}

func (o *Orchestrator) transition(report *domain.RunReport, state domain.RunState, log *zap.Logger) {
	report.State = state
	log.Debug("generation state", zap.String("state", string(state)))
}

func (o *Orchestrator) record(req RunRequest, status domain.TicketStatus) {
	if o.metrics != nil {
		o.metrics.RecordTicketOutcome(string(req.Family), string(req.Mode), string(status))
	}
}

func describeAsset(item domain.DueItem) string {
	if item.Asset == nil {
		return "source " + item.SourceID
	}
	if item.Asset.Name != "" {
		return fmt.Sprintf("asset %s (%s)", item.Asset.Name, item.Asset.ID)
	}
	return "asset " + item.Asset.ID
}

// compact drops slots of items that were never processed.
func compact(results []domain.TicketResult) []domain.TicketResult {
	out := results[:0]
	for _, r := range results {
		if r.Status != "" {
			out = append(out, r)
		}
	}
	return out
}
