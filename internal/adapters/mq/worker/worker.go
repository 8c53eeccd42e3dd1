// Package worker drains ingest batches into the feature store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Tag-UCSD/image-tagger/internal/adapters/mq/queue"
	"github.com/Tag-UCSD/image-tagger/internal/adapters/repository"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
	"github.com/Tag-UCSD/image-tagger/pkg/logger"
	"github.com/Tag-UCSD/image-tagger/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Appender is the write side of the feature store.
type Appender interface {
	Append(ctx context.Context, rec model.FeatureRecord) error
}

// Queue defines how workers receive batches.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Batch
}

// Stats counts records handled by a worker or pool.
type Stats struct {
	Batches    int64 `json:"batches"`
	Appended   int64 `json:"appended"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

type counters struct {
	batches, appended, duplicates, failed atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Batches:    c.batches.Load(),
		Appended:   c.appended.Load(),
		Duplicates: c.duplicates.Load(),
		Failed:     c.failed.Load(),
	}
}

// InMemoryWorker appends each record of each batch it receives.
type InMemoryWorker struct {
	queue    Queue
	appender Appender
	name     string
	stats    *counters

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, appender Appender, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		appender: appender,
		name:     "worker",
		stats:    &counters{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named(w.name)
	}
	return w
}

// Run consumes batches until ctx is canceled, Shutdown is called or the
// queue is closed and drained.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	batches := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			w.processBatch(ctx, b)
		}
	}
}

// Shutdown stops the worker and waits for the current batch.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Stats returns the worker's counters.
func (w *InMemoryWorker) Stats() Stats { return w.stats.snapshot() }

// processBatch appends every record. A duplicate only skips that record; a
// failed record is logged and the rest of the batch still proceeds.
func (w *InMemoryWorker) processBatch(ctx context.Context, b queue.Batch) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	w.stats.batches.Add(1)

	for _, rec := range b.Records {
		err := w.appender.Append(ctx, rec)
		switch {
		case err == nil:
			w.stats.appended.Add(1)
		case errors.Is(err, repository.ErrDuplicateKey):
			w.stats.duplicates.Add(1)
			w.logger.Debug(ctx, "duplicate record skipped",
				logger.String("batch_id", b.ID),
				logger.Int64("image_id", rec.ImageID),
				logger.String("key", rec.Key),
				logger.String("source", rec.Source))
		default:
			w.stats.failed.Add(1)
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "append_error")
			w.logger.Error(ctx, "append failed",
				logger.String("batch_id", b.ID),
				logger.Int64("image_id", rec.ImageID),
				logger.String("key", rec.Key),
				logger.Error(err))
		}
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	stats   *counters
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers, defaulting to NumCPU.
func NewPool(workerCount int, q Queue, appender Appender) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		stats:   &counters{},
		logger:  logger.Named("worker-pool"),
	}
	for i := range workerCount {
		w := NewInMemoryWorker(q, appender, WithName("worker-"+strconv.Itoa(i)))
		w.stats = p.stats
		p.workers[i] = w
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stats returns counters summed over all workers.
func (p *Pool) Stats() Stats { return p.stats.snapshot() }

// Shutdown closes the queue, lets the workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
