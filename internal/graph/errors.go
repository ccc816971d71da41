package graph

import "errors"

var (
	ErrNoInvoice       = errors.New("record has no structured invoice")
	ErrInvalidContract = errors.New("invalid contract")
	ErrDecode          = errors.New("decode graph value")
)
