package common

import "errors"

var (
	ErrNotFound         = errors.New("requested item not found")
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthenticated  = errors.New("authentication required or invalid credentials")
	ErrUnknownSource    = errors.New("unknown source kind")
	ErrRateUnavailable  = errors.New("exchange rate unavailable")
	ErrQueueFull        = errors.New("capture queue is full")
	ErrQueueClosed      = errors.New("capture queue is closed")
	ErrInvalidCandidate = errors.New("invalid candidate transaction")
)
