package bnexport

import "errors"

// Sentinel errors for the exporter.
var (
	// ErrCatalogGate is returned when the catalog fails validation or a
	// candidate index has no rule; no export is served in that state.
	ErrCatalogGate = errors.New("catalog failed validation, exports disabled")
)
