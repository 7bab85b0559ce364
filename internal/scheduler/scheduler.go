// Package scheduler submits checks on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gardenbot/stock-watcher/internal/stock"
)

// Enqueuer accepts check requests for execution. Satisfied by the
// dispatcher.
type Enqueuer interface {
	Enqueue(ctx context.Context, req stock.CheckRequest) error
}

// Scheduler creates and enqueues a scheduled check every interval. The
// first check fires immediately on start.
type Scheduler struct {
	interval time.Duration
	store    stock.Store
	enqueuer Enqueuer
	ids      stock.IDGenerator
	clock    stock.Clock
	logger   *zap.Logger
}

// New constructs a Scheduler.
func New(
	interval time.Duration,
	store stock.Store,
	enqueuer Enqueuer,
	ids stock.IDGenerator,
	clock stock.Clock,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.L()
	}
	return &Scheduler{
		interval: interval,
		store:    store,
		enqueuer: enqueuer,
		ids:      ids,
		clock:    clock,
		logger:   logger,
	}
}

// Run blocks, submitting checks until the context finishes.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Warn("scheduler disabled", zap.Duration("interval", s.interval))
		return
	}

	if err := s.Submit(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduled check submit failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Submit(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("scheduled check submit failed", zap.Error(err))
			}
		}
	}
}

// Submit creates a scheduled check row and enqueues it.
func (s *Scheduler) Submit(ctx context.Context) error {
	checkID, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate check id: %w", err)
	}

	check := stock.Check{
		ID:        checkID,
		Status:    stock.CheckStatusQueued,
		Trigger:   stock.TriggerScheduled,
		Requested: s.clock.Now(),
	}
	if err := s.store.CreateCheck(ctx, check); err != nil {
		return fmt.Errorf("create check: %w", err)
	}

	req := stock.CheckRequest{
		CheckID:   checkID,
		Trigger:   stock.TriggerScheduled,
		Submitted: check.Requested.Unix(),
	}
	if err := s.enqueuer.Enqueue(ctx, req); err != nil {
		if markErr := s.store.UpdateCheckStatus(
			ctx, checkID, stock.CheckStatusFailed, "enqueue failed", stock.Counters{},
		); markErr != nil {
			s.logger.Error("mark check failed", zap.String("check_id", checkID), zap.Error(markErr))
		}
		return fmt.Errorf("enqueue check: %w", err)
	}

	s.logger.Debug("scheduled check enqueued", zap.String("check_id", checkID))
	return nil
}
