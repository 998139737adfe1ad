package generation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-ticketing/internal/credentials"
	"github.com/spec-kit/maintenance-ticketing/internal/domain"
	"github.com/spec-kit/maintenance-ticketing/internal/ticketing"
)

func newTestOrchestrator(client TicketClient, families []TicketFamily, day string, opts ...Option) *Orchestrator {
	base := []Option{WithClock(fixedClock(day)), WithSystemActor(domain.Actor{ID: "system", Name: "Asset Management System"})}
	return NewOrchestrator(client, families, append(base, opts...)...)
}

func assertAccounting(t *testing.T, report *domain.RunReport) {
	t.Helper()
	assert.Equal(t, report.Scanned, report.Created+report.Skipped+report.SkippedDuplicate+report.Failed)
	assert.Len(t, report.Results, report.Scanned)
}

func TestFixedHorizonCreatesDueTicket(t *testing.T) {
	chiller := asset("a-1", "Chiller 1", "B1")
	repo := &fakeSchedules{schedules: []domain.MaintenanceSchedule{monthlySchedule("s-1", chiller, "2024-01-01")}}
	client := &fakeTicketClient{}
	metrics := &outcomeCounter{}
	o := newTestOrchestrator(client, []TicketFamily{NewMaintenanceFamily(repo, testBuilder)}, "2024-06-16", WithMetrics(metrics))

	report, err := o.Generate(context.Background(), RunRequest{Family: domain.FamilyMaintenance, Mode: domain.ModeFixedHorizon})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStateCompleted, report.State)
	assert.Equal(t, domain.TriggerScheduler, report.Trigger)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, domain.TicketCreated, res.Status)
	assert.Equal(t, "2024-07-01", res.DueDate)
	assert.Equal(t, "TKT-0001", res.TicketNumber)
	assert.Equal(t, "a-1", res.AssetID)
	assert.Equal(t, 1, report.Created)
	assertAccounting(t, report)

	assert.Zero(t, client.fetches, "fixed horizon runs never consult existing tickets")
	require.Len(t, client.created, 1)
	assert.Equal(t, "For Chiller 1, Filter replacement to be done", client.created[0].Subject)
	assert.Equal(t, "system", client.created[0].RequestedBy.UserID)
	assert.Equal(t, 1, metrics.outcomes["created"])
	assert.Equal(t, []string{"COMPLETED"}, metrics.runs)
}

func TestFixedHorizonRunsTwiceCreateTwice(t *testing.T) {
	chiller := asset("a-1", "Chiller 1", "B1")
	repo := &fakeSchedules{schedules: []domain.MaintenanceSchedule{monthlySchedule("s-1", chiller, "2024-01-01")}}
	client := &fakeTicketClient{}
	o := newTestOrchestrator(client, []TicketFamily{NewMaintenanceFamily(repo, testBuilder)}, "2024-06-16")

	for i := 0; i < 2; i++ {
		report, err := o.Generate(context.Background(), RunRequest{Family: domain.FamilyMaintenance, Mode: domain.ModeFixedHorizon})
		require.NoError(t, err)
		assert.Equal(t, 1, report.Created)
		assert.Zero(t, report.SkippedDuplicate)
	}
	assert.Equal(t, 2, client.createdCount())
	assert.Zero(t, client.fetches)
}

func TestWindowRunIsIdempotent(t *testing.T) {
	repo := &fakeSchedules{schedules: []domain.MaintenanceSchedule{
		monthlySchedule("s-1", asset("a-1", "Chiller 1", "B1"), "2024-01-20"),
		monthlySchedule("s-2", asset("a-2", "Pump 3", "A1"), "2024-01-25"),
	}}
	client := &fakeTicketClient{}
	o := newTestOrchestrator(client, []TicketFamily{NewMaintenanceFamily(repo, testBuilder)}, "2024-06-16")
	operator := &domain.Actor{ID: "u-7", Name: "Dana", Email: "dana@example.com"}
	req := RunRequest{Family: domain.FamilyMaintenance, Mode: domain.ModeWindow, Trigger: domain.TriggerOperator, Actor: operator}

	first, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	assert.False(t, first.DedupDegraded)
	assertAccounting(t, first)

	second, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 2, second.SkippedDuplicate)
	assertAccounting(t, second)
	for _, res := range second.Results {
		assert.Equal(t, domain.TicketSkippedDuplicate, res.Status)
		assert.Contains(t, res.Reason, "already exists")
	}

	assert.Equal(t, 2, client.createdCount())
	assert.Equal(t, "u-7", client.created[0].RequestedBy.UserID)
	assert.Equal(t, domain.TriggerOperator, client.triggers[0])
}

func TestWindowRunDegradesWhenDedupFetchFails(t *testing.T) {
	repo := &fakeSchedules{schedules: []domain.MaintenanceSchedule{
		monthlySchedule("s-1", asset("a-1", "Chiller 1", "B1"), "2024-01-20"),
	}}
	client := &fakeTicketClient{fetchErr: errors.New("list endpoint returned 503")}
	o := newTestOrchestrator(client, []TicketFamily{NewMaintenanceFamily(repo, testBuilder)}, "2024-06-16")

	report, err := o.Generate(context.Background(), RunRequest{Family: domain.FamilyMaintenance, Mode: domain.ModeWindow})
	require.NoError(t, err)
	assert.True(t, report.DedupDegraded)
	assert.Equal(t, domain.RunStateCompleted, report.State)
	assert.Equal(t, 1, report.Created)
	assertAccounting(t, report)
}

func TestItemFailuresDoNotStopTheRun(t *testing.T) {
	repo := &fakeSchedules{schedules: []domain.MaintenanceSchedule{
		monthlySchedule("s-1", asset("a-1", "Alpha", "A1"), "2024-01-20"),
		monthlySchedule("s-2", asset("a-2", "Beta", "A1"), "2024-01-20"),
		monthlySchedule("s-3", asset("a-3", "Gamma", "A1"), "2024-01-20"),
	}}
	client := &fakeTicketClient{createFn: func(p ticketing.TicketPayload) (ticketing.CreateResult, error) {
		if p.FormFields[ticketing.FieldAssetID] == "a-2" {
			return ticketing.CreateResult{Success: false, Error: "request timed out after 30s", ExecutionTime: 30000}, nil
		}
		return ticketing.CreateResult{Success: true}, nil
	}}
	o := newTestOrchestrator(client, []TicketFamily{NewMaintenanceFamily(repo, testBuilder)}, "2024-06-16")

	report, err := o.Generate(context.Background(), RunRequest{Family: domain.FamilyMaintenance, Mode: domain.ModeFixedHorizon, Trigger: domain.TriggerOperator})
	require.NoError(t, err)
	// Only schedules due exactly on 2024-07-01 match a fixed-horizon run.
	assert.Zero(t, report.Scanned)

	report, err = o.Generate(context.Background(), RunRequest{Family: domain.FamilyMaintenance, Mode: domain.ModeWindow})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, domain.TicketCreated, report.Results[0].Status)
	assert.Equal(t, domain.TicketFailed, report.Results[1].Status)
	assert.Contains(t, report.Results[1].Reason, "timed out")
	assert.Contains(t, report.Results[1].Reason, "Beta")
	assert.Equal(t, int64(30000), report.Results[1].ExecutionTimeMs)
	assert.Equal(t, domain.TicketCreated, report.Results[2].Status)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Failed)
	assertAccounting(t, report)
}

type stubFamily struct {
	items []domain.DueItem
}

func (s *stubFamily) Family() domain.TicketFamily { return domain.FamilyMaintenance }

func (s *stubFamily) ScanDueItems(context.Context, Window) ([]domain.DueItem, error) {
	return s.items, nil
}

func (s *stubFamily) BuildPayload(item domain.DueItem, actor domain.Actor) (ticketing.TicketPayload, error) {
	return testBuilder.Maintenance(item, actor)
}

func TestItemWithoutAssetIsSkipped(t *testing.T) {
	a := asset("a-1", "Chiller 1", "B1")
	s := monthlySchedule("s-1", a, "2024-01-01")
	family := &stubFamily{items: []domain.DueItem{
		{Family: domain.FamilyMaintenance, SourceID: "orphan", DueDate: date("2024-07-01"), Schedule: &s},
		{Family: domain.FamilyMaintenance, SourceID: "s-1", Asset: a, DueDate: date("2024-07-01"), Schedule: &s},
	}}
	client := &fakeTicketClient{}
	o := newTestOrchestrator(client, []TicketFamily{family}, "2024-06-16")

	report, err := o.Generate(context.Background(), RunRequest{Family: domain.FamilyMaintenance, Mode: domain.ModeFixedHorizon})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, domain.TicketSkipped, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Reason, "no asset")
	assert.Equal(t, domain.TicketCreated, report.Results[1].Status)
	assertAccounting(t, report)
}

func TestScanFailureAbortsRun(t *testing.T) {
	boom := errors.New("db down")
	client := &fakeTicketClient{}
	o := newTestOrchestrator(client, []TicketFamily{NewMaintenanceFamily(&fakeSchedules{err: boom}, testBuilder)}, "2024-06-16")

	report, err := o.Generate(context.Background(), RunRequest{Family: domain.FamilyMaintenance, Mode: domain.ModeWindow})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, report)
	assert.Equal(t, domain.RunStateAborted, report.State)
	assert.Contains(t, report.AbortReason, "db down")
	assert.Zero(t, client.fetches)
}

func TestUnknownFamilyAndMode(t *testing.T) {
	o := newTestOrchestrator(&fakeTicketClient{}, []TicketFamily{NewMaintenanceFamily(&fakeSchedules{}, testBuilder)}, "2024-06-16")

	_, err := o.Generate(context.Background(), RunRequest{Family: domain.FamilyRenewal, Mode: domain.ModeWindow})
	assert.ErrorIs(t, err, ErrUnknownFamily)

	_, err = o.Generate(context.Background(), RunRequest{Family: domain.FamilyMaintenance, Mode: "WEEKLY"})
	assert.ErrorIs(t, err, ErrUnknownMode)
}

type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (d *delayRecorder) Sleep(_ context.Context, delay time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delays = append(d.delays, delay)
	return nil
}

func TestCredentialExhaustionAbortsWithoutTicketingCalls(t *testing.T) {
	for _, mode := range []domain.GenerationMode{domain.ModeFixedHorizon, domain.ModeWindow} {
		t.Run(string(mode), func(t *testing.T) {
			dead := httptest.NewServer(http.NotFoundHandler())
			tokenURL := dead.URL + "/oauth/token"
			dead.Close()

			var ticketingHits atomic.Int32
			ticketingSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ticketingHits.Add(1)
				w.WriteHeader(http.StatusCreated)
			}))
			defer ticketingSrv.Close()

			sleeps := &delayRecorder{}
			broker := credentials.NewBroker(
				credentials.Config{TokenURL: tokenURL, ClientID: "id", ClientSecret: "secret", Timeout: time.Second},
				credentials.WithSleep(sleeps.Sleep),
			)
			client := ticketing.NewClient(ticketing.Endpoints{
				BaseURL: ticketingSrv.URL,
				Create:  "/api/tickets/create",
				List:    "/api/tickets/list",
			}, broker, ticketing.WithTokenAttempts(3))

			repo := &fakeSchedules{schedules: []domain.MaintenanceSchedule{
				monthlySchedule("s-1", asset("a-1", "Chiller 1", "B1"), "2024-01-01"),
				monthlySchedule("s-2", asset("a-2", "Pump", "B1"), "2024-01-01"),
			}}
			metrics := &outcomeCounter{}
			o := newTestOrchestrator(client, []TicketFamily{NewMaintenanceFamily(repo, testBuilder)}, "2024-06-16", WithMetrics(metrics))

			report, err := o.Generate(context.Background(), RunRequest{Family: domain.FamilyMaintenance, Mode: mode})
			require.Error(t, err)
			assert.ErrorIs(t, err, credentials.ErrCredentialsExhausted)
			require.NotNil(t, report)
			assert.Equal(t, domain.RunStateAborted, report.State)
			assert.NotEmpty(t, report.AbortReason)
			assert.Zero(t, report.Created)
			assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeps.delays)
			assert.Zero(t, ticketingHits.Load())
			assert.Equal(t, []string{"ABORTED"}, metrics.runs)
		})
	}
}

func TestConcurrentRunPreservesScanOrder(t *testing.T) {
	var schedules []domain.MaintenanceSchedule
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		schedules = append(schedules, monthlySchedule("s-"+name, asset("a-"+name, name, "L1"), "2024-01-20"))
	}
	var inFlight, peak atomic.Int32
	client := &fakeTicketClient{}
	slow := &slowClient{fakeTicketClient: client, inFlight: &inFlight, peak: &peak}
	o := newTestOrchestrator(slow, []TicketFamily{NewMaintenanceFamily(&fakeSchedules{schedules: schedules}, testBuilder)}, "2024-06-16", WithConcurrency(4))

	report, err := o.Generate(context.Background(), RunRequest{Family: domain.FamilyMaintenance, Mode: domain.ModeWindow})
	require.NoError(t, err)
	require.Len(t, report.Results, 8)
	for i, res := range report.Results {
		assert.Equal(t, schedules[i].ID, res.SourceID)
		assert.Equal(t, domain.TicketCreated, res.Status)
	}
	assert.LessOrEqual(t, peak.Load(), int32(4))
	assertAccounting(t, report)
}

type slowClient struct {
	*fakeTicketClient
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (s *slowClient) CreateTicket(ctx context.Context, p ticketing.TicketPayload, family domain.TicketFamily, sourceID string, trigger domain.TriggerSource) (ticketing.CreateResult, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		old := s.peak.Load()
		if n <= old || s.peak.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return s.fakeTicketClient.CreateTicket(ctx, p, family, sourceID, trigger)
}

func TestCancelledContextAbortsRun(t *testing.T) {
	repo := &fakeSchedules{schedules: []domain.MaintenanceSchedule{
		monthlySchedule("s-1", asset("a-1", "Chiller 1", "B1"), "2024-01-01"),
	}}
	client := &fakeTicketClient{}
	o := newTestOrchestrator(client, []TicketFamily{NewMaintenanceFamily(repo, testBuilder)}, "2024-06-16")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := o.Generate(ctx, RunRequest{Family: domain.FamilyMaintenance, Mode: domain.ModeFixedHorizon})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.RunStateAborted, report.State)
	assert.Empty(t, report.Results)
	assert.Zero(t, client.createdCount())
}
