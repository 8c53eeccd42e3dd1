// Package repository holds the feature store and image registry
// implementations.
package repository

import (
	"context"

	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
)

// FeatureStore is the append-only ledger of feature records.
type FeatureStore interface {
	// Append stores rec. It fails with ErrDuplicateKey when a record with
	// the same (image_id, key, source) exists and with ErrInvalidRecord when
	// rec is malformed. A zero CreatedAt is set to the current time.
	Append(ctx context.Context, rec model.FeatureRecord) error

	// Query returns the records of imageID in insertion order, restricted
	// to keys when any are given.
	Query(ctx context.Context, imageID int64, keys ...string) ([]model.FeatureRecord, error)

	// Revision returns a counter that changes on every append for imageID.
	Revision(ctx context.Context, imageID int64) (uint64, error)

	// Records returns every record in insertion order.
	Records(ctx context.Context) ([]model.FeatureRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) int
}

// ImageRegistry resolves image identifiers.
type ImageRegistry interface {
	// RegisterImage stores img. A zero ID is assigned by the registry;
	// an explicit ID that is already taken fails with ErrImageExists.
	RegisterImage(ctx context.Context, img model.Image) (model.Image, error)

	// Exists reports whether id is registered.
	Exists(ctx context.Context, id int64) (bool, error)

	// Image returns the metadata of id, or ErrNotFound.
	Image(ctx context.Context, id int64) (model.Image, error)

	// ImageIDs returns every registered id in ascending order.
	ImageIDs(ctx context.Context) ([]int64, error)
}

// Store combines both contracts over one backend.
type Store interface {
	FeatureStore
	ImageRegistry
	Close() error
}

var (
	_ Store = (*MemStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
