// Package app wires the feature store, catalog, engine, exporter and ingest
// pipeline into the service behind the HTTP API and CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Tag-UCSD/image-tagger/internal/adapters/mq/queue"
	"github.com/Tag-UCSD/image-tagger/internal/adapters/mq/worker"
	"github.com/Tag-UCSD/image-tagger/internal/adapters/repository"
	"github.com/Tag-UCSD/image-tagger/internal/adapters/vlm"
	"github.com/Tag-UCSD/image-tagger/internal/config"
	"github.com/Tag-UCSD/image-tagger/internal/domain/bnexport"
	"github.com/Tag-UCSD/image-tagger/internal/domain/catalog"
	"github.com/Tag-UCSD/image-tagger/internal/domain/composite"
	"github.com/Tag-UCSD/image-tagger/internal/domain/dedupe"
	"github.com/Tag-UCSD/image-tagger/internal/domain/inspector"
	"github.com/Tag-UCSD/image-tagger/internal/domain/irr"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	"github.com/Tag-UCSD/image-tagger/internal/domain/resultcache"
	"github.com/Tag-UCSD/image-tagger/internal/domain/types"
	"github.com/Tag-UCSD/image-tagger/pkg/logger"
	"github.com/Tag-UCSD/image-tagger/pkg/metrics"
)

// Service implements the API dependencies for the tagging core.
type Service struct {
	mu  sync.RWMutex
	cfg *config.Config

	store     repository.Store
	catalog   *catalog.Catalog
	engine    *composite.Engine
	cache     resultcache.Cache
	exporter  *bnexport.Exporter
	inspector *inspector.Inspector
	irr       *irr.Aggregator
	queue     *queue.InMemoryQueue
	batches   dedupe.Deduper
	pool      *worker.Pool
	producer  *vlm.Producer
	scorer    vlm.Scorer

	started bool
	logger  logger.Logger
}

// New constructs a Service from cfg. Components are built by Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	return s
}

// Start builds every component and starts the ingest workers. A catalog
// that fails validation, or a candidate index without a rule, aborts
// startup.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting tagging service...")

	if err := s.openStore(ctx); err != nil {
		return err
	}
	if err := s.buildDomain(); err != nil {
		s.closeStore(ctx)
		return err
	}
	if err := s.buildProducer(ctx); err != nil {
		s.closeStore(ctx)
		return err
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.IngestQueueSize))
	s.batches = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.IngestDedupeSize))
	s.pool = worker.NewPool(s.cfg.IngestWorkers, s.queue, s.store)
	// Workers outlive the request context that started them; Stop drains them.
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "tagging service started",
		logger.String("store", s.cfg.StoreDriver),
		logger.Int("catalog_entries", s.catalog.Len()),
		logger.Int("candidate_indices", len(s.catalog.CandidateBNKeys())),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_capacity", s.queue.Cap()),
		logger.String("vlm_provider", s.producer.Provider()),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) error {
	if s.store != nil {
		return nil
	}
	switch s.cfg.StoreDriver {
	case config.DriverSQLite:
		store, err := repository.OpenSQLite(ctx, s.cfg.SQLitePath)
		if err != nil {
			return err
		}
		s.store = store
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.cfg.SQLitePath))
	default:
		s.store = repository.NewMemStore()
		s.logger.Info(ctx, "using memory store")
	}
	return nil
}

func (s *Service) buildDomain() error {
	if s.catalog == nil {
		cat, n, err := BuildCatalog(s.cfg)
		if err != nil {
			return err
		}
		s.catalog = cat
		if n > 0 {
			s.logger.Info(context.Background(), "catalog extended",
				logger.String("path", s.cfg.CatalogPath),
				logger.Int("entries", n))
		}
	}

	engine, passthrough, err := NewEngine(s.cfg, s.catalog)
	if err != nil {
		return err
	}
	s.engine = engine
	if len(passthrough) > 0 {
		s.logger.Info(context.Background(), "passthrough rules registered",
			logger.Any("keys", passthrough))
	}
	if s.cache, err = resultcache.New(s.cfg.CacheSize); err != nil {
		return err
	}
	s.exporter, err = bnexport.New(s.catalog, s.engine, s.store, s.store,
		bnexport.WithSource(s.cfg.ExportSource),
		bnexport.WithParallelism(s.cfg.ExportParallelism),
		bnexport.WithCache(s.cache),
	)
	if err != nil {
		s.cache.Close()
		return err
	}
	s.inspector = inspector.New(s.catalog, s.store, s.exporter)
	s.irr = irr.NewAggregator(s.store)
	return nil
}

func (s *Service) buildProducer(ctx context.Context) error {
	pcfg := vlm.ProviderConfig{Provider: s.cfg.VLMProvider, Timeout: s.cfg.VLMTimeout()}
	var opts []vlm.Option
	if s.scorer != nil {
		opts = append(opts, vlm.WithScorer(s.scorer))
	}
	p, err := vlm.NewProducer(pcfg, s.store, opts...)
	if errors.Is(err, vlm.ErrProviderUnavailable) {
		s.logger.Warn(ctx, "vlm provider unavailable, falling back to stub",
			logger.String("provider", s.cfg.VLMProvider))
		p, err = vlm.NewProducer(pcfg, s.store, vlm.WithScorer(vlm.StubScorer{}))
	}
	if err != nil {
		return err
	}
	s.producer = p
	return nil
}

// Stop drains the ingest queue and closes the store.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping tagging service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "ingest workers did not drain", logger.Error(err))
	}
	s.cache.Close()
	s.closeStore(ctx)

	s.started = false
	s.logger.Info(ctx, "tagging service stopped")
}

func (s *Service) closeStore(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing store failed", logger.Error(err))
	}
}

// running returns ErrNotStarted before Start and after Stop.
func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// RegisterImage adds an image to the registry.
func (s *Service) RegisterImage(ctx context.Context, img model.Image) (model.Image, error) {
	if err := s.running(); err != nil {
		return model.Image{}, err
	}
	return s.store.RegisterImage(ctx, img)
}

// AppendFeature appends one record synchronously. The image must be
// registered.
func (s *Service) AppendFeature(ctx context.Context, rec model.FeatureRecord) error {
	if err := s.requireImage(ctx, rec.ImageID); err != nil {
		return err
	}
	return s.store.Append(ctx, rec)
}

// SubmitBatch validates records and queues them for the ingest workers.
// Every record must target a registered image, otherwise the whole batch is
// rejected with model.ErrNotFound. batchID may be empty, in which case one
// is assigned. A batch id that was already accepted returns
// ErrDuplicateBatch; a full queue returns queue.ErrQueueFull and the id may
// be retried.
func (s *Service) SubmitBatch(ctx context.Context, batchID string, records []model.FeatureRecord) (string, error) {
	if err := s.running(); err != nil {
		return "", err
	}
	checked := make(map[int64]bool)
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return "", fmt.Errorf("%w: record %d: %w", repository.ErrInvalidRecord, i, err)
		}
		if checked[rec.ImageID] {
			continue
		}
		ok, err := s.store.Exists(ctx, rec.ImageID)
		if err != nil {
			return "", fmt.Errorf("record %d: %w", i, err)
		}
		if !ok {
			return "", fmt.Errorf("%w: record %d: image %d", model.ErrNotFound, i, rec.ImageID)
		}
		checked[rec.ImageID] = true
	}
	b := queue.NewBatch(records)
	if batchID != "" {
		b.ID = batchID
	}
	if s.batches.SeenAndRecord(ctx, b.ID) {
		return b.ID, fmt.Errorf("%w: %s", ErrDuplicateBatch, b.ID)
	}
	if err := s.queue.Enqueue(ctx, b); err != nil {
		s.batches.Unrecord(ctx, b.ID)
		return "", err
	}
	s.logger.Debug(ctx, "batch queued",
		logger.String("batch_id", b.ID),
		logger.Int("records", len(records)))
	return b.ID, nil
}

// Features returns every record of a registered image.
func (s *Service) Features(ctx context.Context, imageID int64) ([]model.FeatureRecord, error) {
	if err := s.requireImage(ctx, imageID); err != nil {
		return nil, err
	}
	return s.store.Query(ctx, imageID)
}

// ProduceVLM scores image bytes for imageID and stores the results.
func (s *Service) ProduceVLM(ctx context.Context, imageID int64, image []byte) (vlm.Report, error) {
	if err := s.requireImage(ctx, imageID); err != nil {
		return vlm.Report{}, err
	}
	return s.producer.Produce(ctx, imageID, image)
}

// Catalog returns the catalog entries in registration order.
func (s *Service) Catalog() []catalog.Entry {
	if s.running() != nil {
		return []catalog.Entry{}
	}
	return s.catalog.Entries()
}

// Glossary describes the candidate indices.
func (s *Service) Glossary() map[string]catalog.GlossaryEntry {
	if s.running() != nil {
		return map[string]catalog.GlossaryEntry{}
	}
	return s.exporter.Glossary()
}

// Export returns snapshot rows for ids, or for every image when ids is empty.
func (s *Service) Export(ctx context.Context, ids []int64) ([]types.BNRow, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return s.exporter.ExportAll(ctx)
	}
	return s.exporter.Export(ctx, ids)
}

// Codebook describes the snapshot columns.
func (s *Service) Codebook() (types.Codebook, error) {
	if err := s.running(); err != nil {
		return types.Codebook{}, err
	}
	return s.exporter.Codebook(), nil
}

// ValidationRows flattens every stored record.
func (s *Service) ValidationRows(ctx context.Context) ([]types.ValidationRow, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.exporter.ValidationRows(ctx)
}

// Inspect returns the consolidated view of one image.
func (s *Service) Inspect(ctx context.Context, imageID int64) (types.InspectorPayload, error) {
	if err := s.running(); err != nil {
		return types.InspectorPayload{}, err
	}
	return s.inspector.Inspect(ctx, imageID)
}

// IRR returns the agreement of one registered image.
func (s *Service) IRR(ctx context.Context, imageID int64) (irr.Result, error) {
	if err := s.requireImage(ctx, imageID); err != nil {
		return irr.Result{}, err
	}
	return s.irr.Compute(ctx, imageID)
}

func (s *Service) requireImage(ctx context.Context, id int64) error {
	if err := s.running(); err != nil {
		return err
	}
	ok, err := s.store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", model.ErrNotFound, id)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"storeDriver": s.cfg.StoreDriver,
		"queueSize":   s.cfg.IngestQueueSize,
		"cacheSize":   s.cfg.CacheSize,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	records := s.store.Count(ctx)
	images := 0
	if ids, err := s.store.ImageIDs(ctx); err == nil {
		images = len(ids)
	}
	queueLen := s.queue.Len()

	stats["records"] = records
	stats["images"] = images
	stats["catalogEntries"] = s.catalog.Len()
	stats["candidateIndices"] = len(s.catalog.CandidateBNKeys())
	stats["queueLength"] = queueLen
	stats["workerCount"] = s.pool.Size()
	stats["ingest"] = s.pool.Stats()
	stats["batchIDsTracked"] = s.batches.Size()
	stats["exportSource"] = s.exporter.Source()
	stats["vlmProvider"] = s.producer.Provider()

	metrics.UpdateStoreRecordsTotal(records)
	metrics.UpdateStoreImagesTotal(images)
	metrics.UpdateQueueSize(queueLen)
	return stats
}
