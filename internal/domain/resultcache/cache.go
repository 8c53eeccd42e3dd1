// Package resultcache holds recently computed composite results per image.
// Entries are stamped with the feature store revision they were computed
// at; a lookup with any other revision misses, so an append to the image
// invalidates its entry without an explicit purge.
package resultcache

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Tag-UCSD/image-tagger/internal/domain/composite"
	"github.com/Tag-UCSD/image-tagger/pkg/metrics"
)

// Cache stores composite results keyed by image and revision.
type Cache interface {
	// Get returns the results for imageID if they were stored at revision.
	Get(ctx context.Context, imageID int64, revision uint64) ([]composite.Result, bool)
	// Put stores results for imageID computed at revision.
	Put(ctx context.Context, imageID int64, revision uint64, results []composite.Result)
	// Close releases the cache.
	Close()
}

type entry struct {
	revision uint64
	results  []composite.Result
}

type ristrettoCache struct {
	store *ristretto.Cache[int64, entry]
	sync  bool
}

// New creates a bounded cache holding up to maxEntries images. A
// non-positive size yields a cache that never stores anything.
func New(maxEntries int, opts ...Option) (Cache, error) {
	if maxEntries <= 0 {
		return noop{}, nil
	}
	store, err := ristretto.NewCache(&ristretto.Config[int64, entry]{
		NumCounters:        int64(maxEntries) * 10,
		MaxCost:            int64(maxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true, // cost counts entries, not bytes

	})
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	c := &ristrettoCache{store: store}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *ristrettoCache) Get(_ context.Context, imageID int64, revision uint64) ([]composite.Result, bool) {
	e, ok := c.store.Get(imageID)
	if !ok || e.revision != revision {
		metrics.RecordResultCacheMiss()
		return nil, false
	}
	metrics.RecordResultCacheHit()
	return slices.Clone(e.results), true
}

func (c *ristrettoCache) Put(_ context.Context, imageID int64, revision uint64, results []composite.Result) {
	c.store.Set(imageID, entry{revision: revision, results: slices.Clone(results)}, 1)
	if c.sync {
		c.store.Wait()
	}
}

func (c *ristrettoCache) Close() {
	c.store.Close()
}

type noop struct{}

func (noop) Get(context.Context, int64, uint64) ([]composite.Result, bool) { return nil, false }
func (noop) Put(context.Context, int64, uint64, []composite.Result)      {}
func (noop) Close()                                                         {}
