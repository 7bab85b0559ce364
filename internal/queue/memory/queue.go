// Package memory provides a queue implementation for check requests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gardenbot/stock-watcher/internal/stock"
)

// ErrQueueClosed is returned once Close has been called.
var ErrQueueClosed = errors.New("queue closed")

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch     chan stock.CheckRequest
	mu     sync.RWMutex
	closed bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan stock.CheckRequest, capacity),
	}
}

// Enqueue pushes a check request into the queue or returns if the context
// ends. Enqueue holds a read lock for the duration of the send so Close
// cannot close the channel underneath an in-flight send; callers must
// cancel ctx before closing the queue.
func (q *Queue) Enqueue(ctx context.Context, req stock.CheckRequest) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- req:
		return nil
	}
}

// Dequeue pops the next check request, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (stock.CheckRequest, error) {
	select {
	case <-ctx.Done():
		return stock.CheckRequest{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case req, ok := <-q.ch:
		if !ok {
			return stock.CheckRequest{}, ErrQueueClosed
		}
		return req, nil
	}
}

// Close closes the underlying channel for shutdown. It blocks until any
// in-flight Enqueue calls finish.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
