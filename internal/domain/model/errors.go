package model

import "errors"

// Sentinel errors shared by the store and the read paths.
var (
	// ErrNotFound reports an image that does not exist in the registry, as
	// opposed to one that exists but has no data yet.
	ErrNotFound = errors.New("image not found")
)
