package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrInvalidCatalog = errors.New("invalid index catalog")
	ErrKeyExists      = errors.New("index key already defined")
	ErrLoadCatalog    = errors.New("load catalog failed")
)
