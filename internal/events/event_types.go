package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRunCompleted EventType = "generation_run_completed"
	EventRunAborted   EventType = "generation_run_aborted"
)

// Actor encapsulates who triggered the run.
type Actor struct {
	Trigger domain.TriggerSource `json:"trigger"`
	UserID  string               `json:"user_id,omitempty"`
}

// Event represents a generation lifecycle event.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	RunID     string            `json:"run_id"`
	Actor     Actor             `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   *domain.RunReport `json:"payload"`
}

// NewRunEvent wraps a finished report, picking the event type from its state.
func NewRunEvent(report *domain.RunReport, actor *domain.Actor) Event {
	eventType := EventRunCompleted
	if report.State == domain.RunStateAborted {
		eventType = EventRunAborted
	}
	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RunID:     report.RunID,
		Actor:     Actor{Trigger: report.Trigger},
		Timestamp: report.FinishedAt,
		Payload:   report,
	}
	if actor != nil {
		ev.Actor.UserID = actor.ID
	}
	return ev
}
