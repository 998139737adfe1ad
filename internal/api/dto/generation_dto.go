package dto

import "github.com/spec-kit/maintenance-ticketing/internal/domain"

// RunListResponse lists audited runs for one family.
type RunListResponse struct {
	Family domain.TicketFamily `json:"family"`
	Data   []domain.RunReport  `json:"data"`
}

// RunErrorResponse carries the partial report of an aborted run next to the error.
type RunErrorResponse struct {
	Error  ErrorBody         `json:"error"`
	Report *domain.RunReport `json:"report"`
}

// ErrorBody mirrors the error envelope written by the error middleware.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
