package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memorystore "github.com/gardenbot/stock-watcher/internal/storage/memory"
	"github.com/gardenbot/stock-watcher/internal/stock"
)

type recordingEnqueuer struct {
	mu   sync.Mutex
	err  error
	reqs []stock.CheckRequest
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, req stock.CheckRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.reqs = append(r.reqs, req)
	return nil
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reqs)
}

type seqIDs struct {
	mu   sync.Mutex
	next int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("check-%d", s.next), nil
}

type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

func TestSubmit_CreatesAndEnqueues(t *testing.T) {
	t.Parallel()

	store := memorystore.NewStore()
	enqueuer := &recordingEnqueuer{}
	s := New(time.Minute, store, enqueuer, &seqIDs{}, fixedClock{now: time.Unix(500, 0).UTC()}, zap.NewNop())

	require.NoError(t, s.Submit(context.Background()))
	require.Equal(t, 1, enqueuer.count())

	check, err := store.GetCheck(context.Background(), "check-1")
	require.NoError(t, err)
	require.Equal(t, stock.CheckStatusQueued, check.Status)
	require.Equal(t, stock.TriggerScheduled, check.Trigger)
}

func TestSubmit_EnqueueFailureMarksCheckFailed(t *testing.T) {
	t.Parallel()

	store := memorystore.NewStore()
	enqueuer := &recordingEnqueuer{err: errors.New("queue full")}
	s := New(time.Minute, store, enqueuer, &seqIDs{}, fixedClock{now: time.Unix(500, 0).UTC()}, zap.NewNop())

	require.Error(t, s.Submit(context.Background()))

	check, err := store.GetCheck(context.Background(), "check-1")
	require.NoError(t, err)
	require.Equal(t, stock.CheckStatusFailed, check.Status)
}

func TestRun_SubmitsImmediatelyAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	store := memorystore.NewStore()
	enqueuer := &recordingEnqueuer{}
	s := New(time.Hour, store, enqueuer, &seqIDs{}, fixedClock{now: time.Unix(500, 0).UTC()}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return enqueuer.count() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}
}

func TestRun_ZeroIntervalDisabled(t *testing.T) {
	t.Parallel()

	store := memorystore.NewStore()
	enqueuer := &recordingEnqueuer{}
	s := New(0, store, enqueuer, &seqIDs{}, fixedClock{}, zap.NewNop())

	s.Run(context.Background())
	require.Zero(t, enqueuer.count())
}
