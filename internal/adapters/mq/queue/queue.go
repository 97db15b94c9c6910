// Package queue defines the contract for serializing feed deltas.
//
// Every raw-state mutation and derived-cache invalidation flows through one
// bounded in-memory queue with a single consumer, which is what preserves
// the feed's delivery order on a multi-threaded runtime.
package queue

import (
	"context"
	"sync"

	"github.com/rcrderby/crg-overlays/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 65536
)

// Delta is one key/value pair delivered by the feed.
type Delta struct {
	Key   string
	Value string
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a delta to the queue.
	// Returns false if the queue is full and the delta was not enqueued.
	Enqueue(ctx context.Context, d Delta) bool

	// Dequeue returns a channel that will receive deltas as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Delta

	// Len returns the current number of queued deltas.
	Len() int

	// Close gracefully shuts down the queue. After closing, no new deltas
	// can be enqueued and the dequeue channel will be closed.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	deltas   chan Delta
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.deltas = make(chan Delta, q.capacity)
	metrics.UpdateDeltaQueueLength(0)
	return q
}

// Enqueue adds a delta to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, d Delta) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}

	select {
	case q.deltas <- d:
		metrics.UpdateDeltaQueueLength(len(q.deltas))
		return true
	case <-ctx.Done():
		return false
	default:
		return false // queue is full
	}
}

// Dequeue returns a channel that will receive deltas as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Delta {
	out := make(chan Delta)
	go func() {
		defer close(out)
		for d := range q.deltas {
			select {
			case out <- d:
				metrics.UpdateDeltaQueueLength(len(q.deltas))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued deltas.
func (q *InMemoryQueue) Len() int {
	return len(q.deltas)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.deltas)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
