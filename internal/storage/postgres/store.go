// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gardenbot/stock-watcher/internal/stock"
)

// StoreConfig controls the Postgres connection pool.
type StoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const defaultListLimit = 50

// Store persists checks, snapshots, and alerts in Postgres.
//
// Expected schema:
//
//	CREATE TABLE checks (
//	    id            TEXT PRIMARY KEY,
//	    status        TEXT NOT NULL,
//	    trigger       TEXT NOT NULL,
//	    requested_at  TIMESTAMPTZ NOT NULL,
//	    started_at    TIMESTAMPTZ,
//	    finished_at   TIMESTAMPTZ,
//	    error_text    TEXT NOT NULL DEFAULT '',
//	    items_seen    INT NOT NULL DEFAULT 0,
//	    targets_found INT NOT NULL DEFAULT 0,
//	    targets_avail INT NOT NULL DEFAULT 0,
//	    retries       INT NOT NULL DEFAULT 0
//	);
//	CREATE TABLE snapshots (
//	    check_id      TEXT PRIMARY KEY REFERENCES checks (id),
//	    url           TEXT NOT NULL,
//	    status_code   INT NOT NULL,
//	    used_headless BOOLEAN NOT NULL,
//	    fetched_at    TIMESTAMPTZ NOT NULL,
//	    duration_ms   BIGINT NOT NULL,
//	    content_hash  TEXT NOT NULL,
//	    headers       JSONB,
//	    blob_uri      TEXT NOT NULL DEFAULT '',
//	    items         JSONB NOT NULL,
//	    target_hits   JSONB
//	);
//	CREATE TABLE alerts (
//	    id          TEXT PRIMARY KEY,
//	    check_id    TEXT NOT NULL REFERENCES checks (id),
//	    sent_at     TIMESTAMPTZ NOT NULL,
//	    channel     TEXT NOT NULL,
//	    recipient   TEXT NOT NULL DEFAULT '',
//	    fingerprint TEXT NOT NULL,
//	    seeds       JSONB NOT NULL,
//	    delivered   BOOLEAN NOT NULL,
//	    error_text  TEXT NOT NULL DEFAULT ''
//	);
type Store struct {
	pool pgxIface
}

// NewStore creates a Postgres-backed Store using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool pgxIface) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateCheck inserts a new check row.
func (s *Store) CreateCheck(ctx context.Context, check stock.Check) error {
	if check.ID == "" {
		return fmt.Errorf("check id is required")
	}
	query := `
INSERT INTO checks (id, status, trigger, requested_at, error_text, items_seen, targets_found, targets_avail, retries)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := s.pool.Exec(ctx, query,
		check.ID,
		string(check.Status),
		string(check.Trigger),
		check.Requested,
		check.ErrorText,
		check.Counters.ItemsSeen,
		check.Counters.TargetsFound,
		check.Counters.TargetsAvail,
		check.Counters.Retries,
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

// UpdateCheckStatus updates the status, error text, and counters for a check.
// Started/finished timestamps are maintained server-side.
func (s *Store) UpdateCheckStatus(
	ctx context.Context,
	checkID string,
	status stock.CheckStatus,
	errText string,
	counters stock.Counters,
) error {
	query := `
UPDATE checks SET
	status = $2,
	error_text = $3,
	items_seen = $4,
	targets_found = $5,
	targets_avail = $6,
	retries = $7,
	started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN NOW() ELSE started_at END,
	finished_at = CASE WHEN $2 IN ('succeeded','failed','canceled') THEN NOW() ELSE finished_at END
WHERE id = $1 AND status NOT IN ('succeeded','failed','canceled')`
	tag, err := s.pool.Exec(ctx, query,
		checkID,
		string(status),
		errText,
		counters.ItemsSeen,
		counters.TargetsFound,
		counters.TargetsAvail,
		counters.Retries,
	)
	if err != nil {
		return fmt.Errorf("update check status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing check from one that already reached a
		// terminal status.
		var current string
		if scanErr := s.pool.QueryRow(ctx, `SELECT status FROM checks WHERE id = $1`, checkID).Scan(&current); scanErr != nil {
			return fmt.Errorf("check %s not found", checkID)
		}
		if stock.CheckStatus(current).Terminal() {
			return fmt.Errorf("check %s: %w", checkID, stock.ErrCheckFinished)
		}
		return fmt.Errorf("check %s not found", checkID)
	}
	return nil
}

// RecordSnapshot inserts the snapshot row for a check.
func (s *Store) RecordSnapshot(ctx context.Context, snap stock.Snapshot) error {
	if snap.CheckID == "" {
		return fmt.Errorf("snapshot check id is required")
	}
	headersJSON, err := json.Marshal(normalizeHeaders(snap.Headers))
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	itemsJSON, err := json.Marshal(snap.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	hitsJSON, err := json.Marshal(snap.TargetHits)
	if err != nil {
		return fmt.Errorf("marshal target hits: %w", err)
	}
	query := `
INSERT INTO snapshots (check_id, url, status_code, used_headless, fetched_at, duration_ms, content_hash, headers, blob_uri, items, target_hits)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	if _, err := s.pool.Exec(ctx, query,
		snap.CheckID,
		snap.URL,
		snap.StatusCode,
		snap.UsedHeadless,
		snap.FetchedAt,
		snap.DurationMs,
		snap.ContentHash,
		headersJSON,
		snap.BlobURI,
		itemsJSON,
		hitsJSON,
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// RecordAlert inserts an alert row.
func (s *Store) RecordAlert(ctx context.Context, alert stock.Alert) error {
	if alert.ID == "" {
		return fmt.Errorf("alert id is required")
	}
	seedsJSON, err := json.Marshal(alert.Seeds)
	if err != nil {
		return fmt.Errorf("marshal seeds: %w", err)
	}
	query := `
INSERT INTO alerts (id, check_id, sent_at, channel, recipient, fingerprint, seeds, delivered, error_text)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if _, err := s.pool.Exec(ctx, query,
		alert.ID,
		alert.CheckID,
		alert.SentAt,
		alert.Channel,
		alert.Recipient,
		alert.Fingerprint,
		seedsJSON,
		alert.Delivered,
		alert.ErrorText,
	); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

const checkColumns = `id, status, trigger, requested_at, started_at, finished_at, error_text, items_seen, targets_found, targets_avail, retries`

// GetCheck fetches a check by ID.
func (s *Store) GetCheck(ctx context.Context, checkID string) (stock.Check, error) {
	query := fmt.Sprintf(`SELECT %s FROM checks WHERE id = $1`, checkColumns)
	return s.scanCheck(s.pool.QueryRow(ctx, query, checkID))
}

// LatestCheck returns the most recently requested check.
func (s *Store) LatestCheck(ctx context.Context) (stock.Check, error) {
	query := fmt.Sprintf(`SELECT %s FROM checks ORDER BY requested_at DESC LIMIT 1`, checkColumns)
	return s.scanCheck(s.pool.QueryRow(ctx, query))
}

// ListChecks returns the most recent checks, newest first.
func (s *Store) ListChecks(ctx context.Context, limit int) ([]stock.Check, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := fmt.Sprintf(`SELECT %s FROM checks ORDER BY requested_at DESC LIMIT $1`, checkColumns)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var checks []stock.Check
	for rows.Next() {
		check, err := s.scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checks: %w", err)
	}
	return checks, nil
}

// GetSnapshot fetches the snapshot recorded for a check.
func (s *Store) GetSnapshot(ctx context.Context, checkID string) (stock.Snapshot, error) {
	query := `
SELECT check_id, url, status_code, used_headless, fetched_at, duration_ms, content_hash, headers, blob_uri, items, target_hits
FROM snapshots WHERE check_id = $1`
	row := s.pool.QueryRow(ctx, query, checkID)

	var (
		snap        stock.Snapshot
		headersJSON []byte
		itemsJSON   []byte
		hitsJSON    []byte
	)
	if err := row.Scan(
		&snap.CheckID,
		&snap.URL,
		&snap.StatusCode,
		&snap.UsedHeadless,
		&snap.FetchedAt,
		&snap.DurationMs,
		&snap.ContentHash,
		&headersJSON,
		&snap.BlobURI,
		&itemsJSON,
		&hitsJSON,
	); err != nil {
		return stock.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &snap.Headers); err != nil {
			return stock.Snapshot{}, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &snap.Items); err != nil {
			return stock.Snapshot{}, fmt.Errorf("unmarshal items: %w", err)
		}
	}
	if len(hitsJSON) > 0 {
		if err := json.Unmarshal(hitsJSON, &snap.TargetHits); err != nil {
			return stock.Snapshot{}, fmt.Errorf("unmarshal target hits: %w", err)
		}
	}
	return snap, nil
}

const alertColumns = `id, check_id, sent_at, channel, recipient, fingerprint, seeds, delivered, error_text`

// ListAlerts returns the most recent alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context, limit int) ([]stock.Alert, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := fmt.Sprintf(`SELECT %s FROM alerts ORDER BY sent_at DESC LIMIT $1`, alertColumns)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []stock.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

// LastAlert returns the most recently recorded alert.
func (s *Store) LastAlert(ctx context.Context) (stock.Alert, error) {
	query := fmt.Sprintf(`SELECT %s FROM alerts ORDER BY sent_at DESC LIMIT 1`, alertColumns)
	return scanAlert(s.pool.QueryRow(ctx, query))
}

func (s *Store) scanCheck(row pgx.Row) (stock.Check, error) {
	var (
		check   stock.Check
		status  string
		trigger string
	)
	if err := row.Scan(
		&check.ID,
		&status,
		&trigger,
		&check.Requested,
		&check.Started,
		&check.Finished,
		&check.ErrorText,
		&check.Counters.ItemsSeen,
		&check.Counters.TargetsFound,
		&check.Counters.TargetsAvail,
		&check.Counters.Retries,
	); err != nil {
		return stock.Check{}, fmt.Errorf("scan check: %w", err)
	}
	check.Status = stock.CheckStatus(status)
	check.Trigger = stock.Trigger(trigger)
	return check, nil
}

func scanAlert(row pgx.Row) (stock.Alert, error) {
	var (
		alert     stock.Alert
		seedsJSON []byte
	)
	if err := row.Scan(
		&alert.ID,
		&alert.CheckID,
		&alert.SentAt,
		&alert.Channel,
		&alert.Recipient,
		&alert.Fingerprint,
		&seedsJSON,
		&alert.Delivered,
		&alert.ErrorText,
	); err != nil {
		return stock.Alert{}, fmt.Errorf("scan alert: %w", err)
	}
	if len(seedsJSON) > 0 {
		if err := json.Unmarshal(seedsJSON, &alert.Seeds); err != nil {
			return stock.Alert{}, fmt.Errorf("unmarshal seeds: %w", err)
		}
	}
	return alert, nil
}

func normalizeHeaders(h http.Header) map[string][]string {
	if len(h) == 0 {
		return map[string][]string{}
	}
	out := make(map[string][]string, len(h))
	for k, values := range h {
		out[k] = append([]string(nil), values...)
	}
	return out
}
