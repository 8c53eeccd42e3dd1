package composite

import "errors"

// Sentinel errors for rule registration.
var (
	ErrInvalidRule = errors.New("invalid composite rule")
)
