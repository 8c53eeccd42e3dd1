package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/Tag-UCSD/image-tagger/internal/adapters/mq/queue"
	"github.com/Tag-UCSD/image-tagger/internal/adapters/mq/worker"
	"github.com/Tag-UCSD/image-tagger/internal/adapters/repository"
	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
)

type failingAppender struct{ err error }

func (f failingAppender) Append(context.Context, model.FeatureRecord) error { return f.err }

func record(imageID int64, key, source string) model.FeatureRecord {
	return model.FeatureRecord{ImageID: imageID, Key: key, Value: model.Number(0.4), Source: source, Confidence: 0.8}
}

// eventually polls cond until it holds or a second passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a memory store", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		store := repository.NewMemStore()
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		w := worker.NewInMemoryWorker(q, store, worker.WithName("test-worker"))
		go w.Run(ctx)

		convey.Convey("When a batch with a repeated triple arrives", func() {
			err := q.Enqueue(ctx, queue.NewBatch([]model.FeatureRecord{
				record(1, "color.lab_volume", "science_pipeline_v3.1"),
				record(1, "color.lab_volume", "science_pipeline_v3.1"),
				record(1, "color.warmth_ratio", "science_pipeline_v3.1"),
			}))
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the duplicate is counted and the rest is stored", func() {
				convey.So(eventually(func() bool { return w.Stats().Batches == 1 }), convey.ShouldBeTrue)
				stats := w.Stats()
				convey.So(stats.Appended, convey.ShouldEqual, 2)
				convey.So(stats.Duplicates, convey.ShouldEqual, 1)
				convey.So(stats.Failed, convey.ShouldEqual, 0)
				convey.So(store.Count(ctx), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			err := w.Shutdown(ctx)

			convey.Convey("Then it stops without error", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose store rejects records", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := queue.NewInMemoryQueue()
		w := worker.NewInMemoryWorker(q, failingAppender{err: errors.New("disk full")})
		go w.Run(ctx)

		convey.So(q.Enqueue(ctx, queue.NewBatch([]model.FeatureRecord{
			record(2, "fractal.D", "science_pipeline_v3.1"),
			record(2, "complexity.edge_density", "science_pipeline_v3.1"),
		})), convey.ShouldBeNil)

		convey.Convey("Then every failure is counted and the worker keeps running", func() {
			convey.So(eventually(func() bool { return w.Stats().Failed == 2 }), convey.ShouldBeTrue)
			convey.So(w.Stats().Appended, convey.ShouldEqual, 0)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		pool := worker.NewPool(4, q, store)
		convey.So(pool.Size(), convey.ShouldEqual, 4)
		pool.Start(ctx)

		convey.Convey("When batches from many raters are queued and the pool shuts down", func() {
			for i := range 20 {
				err := q.Enqueue(ctx, queue.NewBatch([]model.FeatureRecord{
					record(int64(i%3)+1, "global.relevance", model.HumanSource("rater")),
				}))
				convey.So(err, convey.ShouldBeNil)
			}
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then every batch was drained and duplicates were not fatal", func() {
				stats := pool.Stats()
				convey.So(stats.Batches, convey.ShouldEqual, 20)
				convey.So(stats.Appended, convey.ShouldEqual, 3)
				convey.So(stats.Duplicates, convey.ShouldEqual, 17)
				convey.So(store.Count(ctx), convey.ShouldEqual, 3)
			})

			convey.Convey("Then the queue refuses new batches", func() {
				err := q.Enqueue(ctx, queue.NewBatch(nil))
				convey.So(errors.Is(err, queue.ErrQueueClosed), convey.ShouldBeTrue)
			})
		})
	})
}
