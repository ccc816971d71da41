package documents

import "errors"

// Domain errors for structured document handling.
var (
	ErrInvalidType       = errors.New("invalid document type")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidCorrection = errors.New("invalid correction")
)
