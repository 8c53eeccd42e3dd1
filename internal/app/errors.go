package app

import "errors"

// Service errors.
var (
	// ErrNotStarted is returned by operations called before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrDuplicateBatch is returned when a batch id was already accepted.
	ErrDuplicateBatch = errors.New("batch already accepted")
)
