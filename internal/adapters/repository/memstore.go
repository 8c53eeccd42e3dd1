package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	"github.com/Tag-UCSD/image-tagger/pkg/metrics"
)

type triple struct {
	imageID int64
	key     string
	source  string
}

// MemStore is an in-memory Store. A single lock serializes appends, so two
// writers racing on the same triple see exactly one success.
type MemStore struct {
	mu      sync.RWMutex
	records []model.FeatureRecord
	byImage map[int64][]int
	seen    map[triple]struct{}
	images  map[int64]model.Image
	nextID  int64
	now     func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		byImage: make(map[int64][]int),
		seen:    make(map[triple]struct{}),
		images:  make(map[int64]model.Image),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append implements FeatureStore.
func (s *MemStore) Append(_ context.Context, rec model.FeatureRecord) error {
	start := time.Now()
	if err := rec.Validate(); err != nil {
		metrics.RecordFeatureRejected()
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	s.mu.Lock()
	t := triple{imageID: rec.ImageID, key: rec.Key, source: rec.Source}
	if _, dup := s.seen[t]; dup {
		s.mu.Unlock()
		metrics.RecordFeatureDuplicate(model.SourceKind(rec.Source))
		return fmt.Errorf("%w: image %d key %s source %s", ErrDuplicateKey, rec.ImageID, rec.Key, rec.Source)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.seen[t] = struct{}{}
	s.byImage[rec.ImageID] = append(s.byImage[rec.ImageID], len(s.records))
	s.records = append(s.records, rec)
	total := len(s.records)
	s.mu.Unlock()

	metrics.RecordFeatureAppended(model.SourceKind(rec.Source))
	metrics.UpdateStoreRecordsTotal(total)
	metrics.RecordStoreAppendLatency(float64(time.Since(start).Microseconds()) / 1000)
	return nil
}

// Query implements FeatureStore.
func (s *MemStore) Query(_ context.Context, imageID int64, keys ...string) ([]model.FeatureRecord, error) {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byImage[imageID]
	out := make([]model.FeatureRecord, 0, len(idx))
	for _, i := range idx {
		if len(keys) > 0 && !slices.Contains(keys, s.records[i].Key) {
			continue
		}
		out = append(out, s.records[i])
	}
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	return out, nil
}

// Revision implements FeatureStore.
func (s *MemStore) Revision(_ context.Context, imageID int64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.byImage[imageID])), nil
}

// Records implements FeatureStore.
func (s *MemStore) Records(_ context.Context) ([]model.FeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records), nil
}

// Count implements FeatureStore.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// RegisterImage implements ImageRegistry.
func (s *MemStore) RegisterImage(_ context.Context, img model.Image) (model.Image, error) {
	if img.ID < 0 {
		return model.Image{}, fmt.Errorf("%w: negative image id %d", ErrInvalidRecord, img.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if img.ID == 0 {
		s.nextID++
		for s.images[s.nextID].ID != 0 {
			s.nextID++
		}
		img.ID = s.nextID
	} else if _, ok := s.images[img.ID]; ok {
		return model.Image{}, fmt.Errorf("%w: %d", ErrImageExists, img.ID)
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = s.now().UTC()
	}
	s.images[img.ID] = img
	metrics.UpdateStoreImagesTotal(len(s.images))
	return img, nil
}

// Exists implements ImageRegistry.
func (s *MemStore) Exists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.images[id]
	return ok, nil
}

// Image implements ImageRegistry.
func (s *MemStore) Image(_ context.Context, id int64) (model.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Image{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return img, nil
}

// ImageIDs implements ImageRegistry.
func (s *MemStore) ImageIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.images))
	for id := range s.images {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
