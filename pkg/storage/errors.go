package storage

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound        = errors.New("blob not found")
	ErrEmptyKey        = errors.New("storage key must not be empty")
	ErrInvalidKey      = errors.New("storage key contains invalid path segment")
	ErrUnknownProvider = errors.New("unknown storage provider")
)

// MapHTTPStatus maps storage errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyKey), errors.Is(err, ErrInvalidKey):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
