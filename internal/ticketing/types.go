package ticketing

import (
	"fmt"

	"github.com/spec-kit/maintenance-ticketing/internal/domain"
)

// External ticket type enumeration used by the ticketing service.
const (
	ExternalTypeMaintenance = "PREVENTIVE_MAINTENANCE"
	ExternalTypeRenewal     = "CONTRACT_RENEWAL"
)

// ExternalType translates a ticket family into the external type value.
func ExternalType(family domain.TicketFamily) (string, error) {
	switch family {
	case domain.FamilyMaintenance:
		return ExternalTypeMaintenance, nil
	case domain.FamilyRenewal:
		return ExternalTypeRenewal, nil
	default:
		return "", fmt.Errorf("unknown ticket family %q", family)
	}
}

// Requester identifies who raised the ticket.
type Requester struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
}

// TicketPayload is the body of the ticket-creation request.
type TicketPayload struct {
	Subject       string            `json:"subject"`
	Description   string            `json:"description"`
	CategoryID    string            `json:"categoryId"`
	SubcategoryID string            `json:"subCategoryId"`
	TicketType    string            `json:"ticketType"`
	Priority      string            `json:"priority"`
	LocationCode  string            `json:"locationCode"`
	Floor         string            `json:"floor"`
	RequestedBy   Requester         `json:"requestedBy"`
	TenantID      string            `json:"tenantId"`
	OrgID         string            `json:"orgId"`
	Channel       string            `json:"channel"`
	FormFields    map[string]string `json:"formFields"`
}

// ExternalTicket is one row of the ticket list endpoint.
type ExternalTicket struct {
	TicketNumber string         `json:"ticketNumber"`
	Subject      string         `json:"subject"`
	Status       string         `json:"status"`
	TicketType   string         `json:"ticketType"`
	LocationCode string         `json:"locationCode"`
	DueDate      string         `json:"dueDate"`
	CreatedAt    string         `json:"createdAt"`
	FormFields   map[string]any `json:"formFields"`
}

// FormField returns a form field as a string, or "" when absent.
func (t ExternalTicket) FormField(key string) string {
	v, ok := t.FormFields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// TicketPage is one page of the list endpoint.
type TicketPage struct {
	Data       []ExternalTicket `json:"data"`
	TotalCount int              `json:"totalCount"`
}

// StatusOption is one selectable ticket status.
type StatusOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// CreateResult is the outcome of a single creation attempt.
type CreateResult struct {
	Success       bool
	TicketNumber  string
	Error         string
	RawResponse   string
	StatusCode    int
	ExecutionTime int64
}

// StatusError is a non-2xx response from the ticketing service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ticketing service returned %d: %s", e.StatusCode, e.Body)
}
