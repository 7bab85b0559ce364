// Package dispatcher manages watcher fan-out over the check queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/gardenbot/stock-watcher/internal/stock"
	"github.com/gardenbot/stock-watcher/internal/watcher"
)

// Dispatcher fans out queued check requests to a pool of watchers.
type Dispatcher struct {
	queue   stock.Queue
	workers []*watcher.Worker
}

// New creates a Dispatcher.
func New(queue stock.Queue, workers []*watcher.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *watcher.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, req stock.CheckRequest) error {
	if err := d.queue.Enqueue(ctx, req); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
