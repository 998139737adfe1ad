package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
)

type call struct {
	family  domain.TicketFamily
	mode    domain.GenerationMode
	trigger domain.TriggerSource
	actor   *domain.Actor
}

type recordingRunner struct {
	mu    sync.Mutex
	calls []call
	fail  domain.TicketFamily
}

func (r *recordingRunner) Run(_ context.Context, family domain.TicketFamily, mode domain.GenerationMode, trigger domain.TriggerSource, actor *domain.Actor) (*domain.RunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{family, mode, trigger, actor})
	if family == r.fail {
		return nil, errors.New("aborted")
	}
	return &domain.RunReport{RunID: "run", Family: family}, nil
}

func TestRunOnceCoversEveryFamily(t *testing.T) {
	runner := &recordingRunner{fail: domain.FamilyMaintenance}
	w := NewGenerationWorker(runner, "30 1 * * *", time.UTC, nil)

	w.RunOnce(context.Background())

	require.Len(t, runner.calls, 2)
	assert.Equal(t, domain.FamilyMaintenance, runner.calls[0].family)
	assert.Equal(t, domain.FamilyRenewal, runner.calls[1].family)
	for _, c := range runner.calls {
		assert.Equal(t, domain.ModeFixedHorizon, c.mode)
		assert.Equal(t, domain.TriggerScheduler, c.trigger)
		assert.Nil(t, c.actor)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	w := NewGenerationWorker(&recordingRunner{}, "not a cron spec", time.UTC, nil)
	assert.Error(t, w.Start())
}

func TestStartAndStop(t *testing.T) {
	w := NewGenerationWorker(&recordingRunner{}, "@every 1h", time.UTC, nil, domain.FamilyRenewal)
	require.NoError(t, w.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)
	assert.Len(t, w.cron.Entries(), 1)
}
