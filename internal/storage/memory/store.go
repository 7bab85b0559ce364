// Package memory provides in-memory storage implementations for
// development and testing.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gardenbot/stock-watcher/internal/stock"
)

// Store is an in-memory implementation of stock.Store.
type Store struct {
	mu        sync.RWMutex
	checks    map[string]stock.Check
	order     []string
	snapshots map[string]stock.Snapshot
	alerts    []stock.Alert
}

// NewStore constructs a Store.
func NewStore() *Store {
	return &Store{
		checks:    make(map[string]stock.Check),
		snapshots: make(map[string]stock.Snapshot),
	}
}

// CreateCheck stores a new check in queued status.
func (s *Store) CreateCheck(_ context.Context, check stock.Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.checks[check.ID]; exists {
		return errors.New("check already exists")
	}
	s.checks[check.ID] = check
	s.order = append(s.order, check.ID)
	return nil
}

// UpdateCheckStatus updates the status and counters for a check.
func (s *Store) UpdateCheckStatus(
	_ context.Context,
	checkID string,
	status stock.CheckStatus,
	errText string,
	counters stock.Counters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	check, ok := s.checks[checkID]
	if !ok {
		return errors.New("check not found")
	}
	if check.Status.Terminal() {
		return fmt.Errorf("check %s: %w", checkID, stock.ErrCheckFinished)
	}
	check.Status = status
	check.ErrorText = errText
	check.Counters = counters
	now := time.Now().UTC()
	if status == stock.CheckStatusRunning && check.Started == nil {
		check.Started = pointerTime(now)
	}
	if status.Terminal() {
		check.Finished = pointerTime(now)
	}
	s.checks[checkID] = check
	return nil
}

// RecordSnapshot stores the snapshot for a check, replacing any prior one.
func (s *Store) RecordSnapshot(_ context.Context, snap stock.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checks[snap.CheckID]; !ok {
		return errors.New("check not found")
	}
	s.snapshots[snap.CheckID] = snap
	return nil
}

// RecordAlert appends an alert row.
func (s *Store) RecordAlert(_ context.Context, alert stock.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

// GetCheck fetches a check by ID.
func (s *Store) GetCheck(_ context.Context, checkID string) (stock.Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	check, ok := s.checks[checkID]
	if !ok {
		return stock.Check{}, errors.New("check not found")
	}
	return check, nil
}

// GetSnapshot fetches the snapshot recorded for a check.
func (s *Store) GetSnapshot(_ context.Context, checkID string) (stock.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[checkID]
	if !ok {
		return stock.Snapshot{}, errors.New("snapshot not found")
	}
	return snap, nil
}

// ListChecks returns the most recent checks, newest first.
func (s *Store) ListChecks(_ context.Context, limit int) ([]stock.Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]stock.Check, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.checks[s.order[i]])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListAlerts returns the most recent alerts, newest first.
func (s *Store) ListAlerts(_ context.Context, limit int) ([]stock.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]stock.Alert, 0, len(s.alerts))
	for i := len(s.alerts) - 1; i >= 0; i-- {
		out = append(out, s.alerts[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// LatestCheck returns the most recently created check.
func (s *Store) LatestCheck(_ context.Context) (stock.Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return stock.Check{}, errors.New("no checks recorded")
	}
	return s.checks[s.order[len(s.order)-1]], nil
}

// LastAlert returns the most recently recorded alert.
func (s *Store) LastAlert(_ context.Context) (stock.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.alerts) == 0 {
		return stock.Alert{}, errors.New("no alerts recorded")
	}
	return s.alerts[len(s.alerts)-1], nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
