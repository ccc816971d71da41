package workflow

import (
	"errors"
	"net/http"
)

// Workflow errors. Business-rule findings are never errors; only the
// conditions below surface to callers.
var (
	ErrNotFound         = errors.New("workflow not found")
	ErrAlreadyExists    = errors.New("workflow already exists")
	ErrNotQuarantined   = errors.New("workflow is not quarantined")
	ErrNotProcessing    = errors.New("workflow is not processing")
	ErrInvalidCommand   = errors.New("invalid workflow command")
	ErrInvalidAction    = errors.New("invalid resume action")
	ErrNothingToApprove = errors.New("no structured data to approve")
	ErrInvalidState     = errors.New("invalid workflow state")
	ErrBudgetExhausted  = errors.New("retry budget exhausted")
	ErrNoRoute          = errors.New("no route for stage outcome")
	ErrCheckpoint       = errors.New("checkpoint write failed")
	ErrInterrupted      = errors.New("workflow interrupted")
)

// MapHTTPStatus maps workflow errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrNotQuarantined),
		errors.Is(err, ErrNotProcessing),
		errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCommand),
		errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrNothingToApprove):
		return http.StatusBadRequest
	case errors.Is(err, ErrCheckpoint), errors.Is(err, ErrInterrupted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
