package domain

import "time"

// TicketFamily identifies which generation pipeline produced a ticket.
type TicketFamily string

const (
	FamilyMaintenance TicketFamily = "MAINTENANCE"
	FamilyRenewal     TicketFamily = "RENEWAL"
)

// GenerationMode selects how due items are chosen.
type GenerationMode string

const (
	// ModeFixedHorizon targets a single day a fixed number of days ahead and never deduplicates.
	ModeFixedHorizon GenerationMode = "FIXED_HORIZON"
	// ModeWindow covers a forward range of days and deduplicates against existing tickets.
	ModeWindow GenerationMode = "WINDOW"
)

// TriggerSource records who started a run.
type TriggerSource string

const (
	TriggerScheduler TriggerSource = "scheduler"
	TriggerOperator  TriggerSource = "operator"
)

// RunState is the orchestrator state at the time the report was produced.
type RunState string

const (
	RunStateScanning           RunState = "SCANNING"
	RunStateBuildingDedupIndex RunState = "BUILDING_DEDUP_INDEX"
	RunStateIterating          RunState = "ITERATING"
	RunStateCompleted          RunState = "COMPLETED"
	RunStateAborted            RunState = "ABORTED"
)

// DueItem is a schedule or coverage whose next occurrence falls inside the active window.
type DueItem struct {
	Family   TicketFamily
	SourceID string
	Asset    *Asset
	DueDate  time.Time

	Schedule *MaintenanceSchedule
	Coverage *CoverageRecord
}

// TicketStatus is the per-item outcome of a run.
type TicketStatus string

const (
	TicketCreated          TicketStatus = "created"
	TicketSkipped          TicketStatus = "skipped"
	TicketSkippedDuplicate TicketStatus = "skipped_duplicate"
	TicketFailed           TicketStatus = "failed"
)

// TicketResult records what happened to one due item.
type TicketResult struct {
	Status          TicketStatus `json:"status"`
	Family          TicketFamily `json:"family"`
	SourceID        string       `json:"source_id"`
	AssetID         string       `json:"asset_id,omitempty"`
	AssetName       string       `json:"asset_name,omitempty"`
	TicketNumber    string       `json:"ticket_number,omitempty"`
	Reason          string       `json:"reason,omitempty"`
	DueDate         string       `json:"due_date"`
	ExecutionTimeMs int64        `json:"execution_time_ms"`
}

// RunReport is the full accounting of one generation run.
type RunReport struct {
	RunID            string         `json:"run_id"`
	Family           TicketFamily   `json:"family"`
	Mode             GenerationMode `json:"mode"`
	Trigger          TriggerSource  `json:"trigger"`
	State            RunState       `json:"state"`
	Scanned          int            `json:"scanned"`
	Created          int            `json:"created"`
	Skipped          int            `json:"skipped"`
	SkippedDuplicate int            `json:"skipped_duplicate"`
	Failed           int            `json:"failed"`
	DedupDegraded    bool           `json:"dedup_degraded,omitempty"`
	AbortReason      string         `json:"abort_reason,omitempty"`
	Results          []TicketResult `json:"results"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	ExecutionTimeMs  int64          `json:"execution_time_ms"`
}

// Tally recomputes the outcome counters from Results.
func (r *RunReport) Tally() {
	r.Created, r.Skipped, r.SkippedDuplicate, r.Failed = 0, 0, 0, 0
	for _, res := range r.Results {
		switch res.Status {
		case TicketCreated:
			r.Created++
		case TicketSkipped:
			r.Skipped++
		case TicketSkippedDuplicate:
			r.SkippedDuplicate++
		case TicketFailed:
			r.Failed++
		}
	}
}

// Actor is the identity stamped on outbound tickets.
type Actor struct {
	ID    string
	Name  string
	Email string
}
