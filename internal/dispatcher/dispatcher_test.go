package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gardenbot/stock-watcher/internal/stock"
	"github.com/gardenbot/stock-watcher/internal/watcher"
)

func TestRun_StartsWorkersAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	queue := &blockingQueue{started: make(chan struct{}, 1)}
	w := watcher.New(
		queue,
		nil,
		nil,
		nil,
		nil,
		nil,
		nil,
		nil,
		nil,
		nil,
		nil,
		nil,
		watcher.Config{},
		zap.NewNop(),
	)
	dispatch := New(queue, []*watcher.Worker{w})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	select {
	case <-queue.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not begin dequeuing")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

func TestEnqueue_WrapsQueueErrors(t *testing.T) {
	t.Parallel()

	queue := &errorQueue{err: errors.New("boom")}
	dispatch := New(queue, nil)

	err := dispatch.Enqueue(context.Background(), stock.CheckRequest{CheckID: "c1"})
	require.EqualError(t, err, "queue enqueue: boom")
}

type blockingQueue struct {
	started chan struct{}
}

func (q *blockingQueue) Enqueue(_ context.Context, _ stock.CheckRequest) error {
	return nil
}

func (q *blockingQueue) Dequeue(ctx context.Context) (stock.CheckRequest, error) {
	select {
	case q.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return stock.CheckRequest{}, ctx.Err()
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(_ context.Context, _ stock.CheckRequest) error {
	return q.err
}

func (q *errorQueue) Dequeue(ctx context.Context) (stock.CheckRequest, error) {
	<-ctx.Done()
	return stock.CheckRequest{}, ctx.Err()
}
