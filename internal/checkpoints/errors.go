package checkpoints

import (
	"errors"
	"net/http"
)

// Store errors.
var (
	ErrNotFound         = errors.New("checkpoint not found")
	ErrSequenceConflict = errors.New("checkpoint sequence conflict")
	ErrInvalid          = errors.New("invalid checkpoint")
)

// MapHTTPStatus maps checkpoint errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrSequenceConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalid) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
