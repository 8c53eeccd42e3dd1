package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Tag-UCSD/image-tagger/internal/domain/model"
)

func batchFor(imageID int64) Batch {
	return NewBatch([]model.FeatureRecord{{
		ImageID: imageID, Key: "color.lab_volume", Value: model.Number(0.5),
		Source: "science_pipeline_v3.1", Confidence: 1,
	}})
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	b := batchFor(1)
	if b.ID == "" {
		t.Fatal("expected batch id to be set")
	}
	if err := q.Enqueue(ctx, b); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != b.ID {
		t.Errorf("expected batch %s, got %s", b.ID, got.ID)
	}
	if got.Records[0].ImageID != 1 {
		t.Errorf("expected image 1, got %d", got.Records[0].ImageID)
	}
}

func TestInMemoryQueue_Backpressure(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := int64(1); i <= 2; i++ {
		if err := q.Enqueue(ctx, batchFor(i)); err != nil {
			t.Fatalf("expected enqueue %d to succeed, got %v", i, err)
		}
	}
	if err := q.Enqueue(ctx, batchFor(3)); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
	if c := q.Cap(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, batchFor(1)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(16))
	ctx := context.Background()
	const producers, perProducer = 8, 50

	var consumed sync.WaitGroup
	consumed.Add(1)
	count := 0
	go func() {
		defer consumed.Done()
		for range q.Dequeue(ctx) {
			count++
		}
	}()

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				for q.Enqueue(ctx, batchFor(int64(p))) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}
	wg.Wait()
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	consumed.Wait()

	if count != producers*perProducer {
		t.Errorf("expected %d batches consumed, got %d", producers*perProducer, count)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if err := q.Enqueue(ctx, batchFor(1)); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Enqueue(ctx, batchFor(2)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}

	// The queued batch is still delivered before the channel closes.
	ch := q.Dequeue(ctx)
	timeout := time.After(time.Second)
	delivered := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if delivered != 1 {
					t.Errorf("expected 1 drained batch, got %d", delivered)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			delivered++
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
