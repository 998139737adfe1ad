package dto

import (
	"github.com/spec-kit/maintenance-ticketing/internal/ticketing"
)

// TicketSummary is a generated ticket as returned by the ticketing service.
type TicketSummary struct {
	TicketNumber string `json:"ticket_number"`
	Subject      string `json:"subject"`
	Status       string `json:"status"`
	TicketType   string `json:"ticket_type"`
	LocationCode string `json:"location_code"`
	AssetID      string `json:"asset_id,omitempty"`
	AssetName    string `json:"asset_name,omitempty"`
	DueDate      string `json:"due_date,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// TicketListResponse wraps one page of tickets.
type TicketListResponse struct {
	Data       []TicketSummary `json:"data"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalCount int             `json:"total_count"`
}

// NewTicketSummary flattens the form fields the generator writes.
func NewTicketSummary(t ticketing.ExternalTicket) TicketSummary {
	due := t.FormField(ticketing.FieldDueDate)
	if due == "" {
		due = t.DueDate
	}
	return TicketSummary{
		TicketNumber: t.TicketNumber,
		Subject:      t.Subject,
		Status:       t.Status,
		TicketType:   t.TicketType,
		LocationCode: t.LocationCode,
		AssetID:      t.FormField(ticketing.FieldAssetID),
		AssetName:    t.FormField(ticketing.FieldAssetName),
		DueDate:      due,
		CreatedAt:    t.CreatedAt,
	}
}
