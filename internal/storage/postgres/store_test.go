package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/gardenbot/stock-watcher/internal/stock"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewStoreWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestNewStoreWithPool_RequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewStoreWithPool(nil)
	require.Error(t, err)
}

func TestCreateCheck(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	check := stock.Check{
		ID:        "c1",
		Status:    stock.CheckStatusQueued,
		Trigger:   stock.TriggerScheduled,
		Requested: time.Unix(100, 0).UTC(),
	}

	mock.ExpectExec("INSERT INTO checks").
		WithArgs(
			check.ID,
			string(check.Status),
			string(check.Trigger),
			check.Requested,
			"",
			0, 0, 0, 0,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateCheck(context.Background(), check))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCheck_RequiresID(t *testing.T) {
	t.Parallel()

	store, _ := newMockStore(t)
	require.Error(t, store.CreateCheck(context.Background(), stock.Check{}))
}

func TestUpdateCheckStatus(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	counters := stock.Counters{ItemsSeen: 8, TargetsFound: 5, TargetsAvail: 2, Retries: 1}
	mock.ExpectExec("UPDATE checks SET").
		WithArgs("c1", "succeeded", "", 8, 5, 2, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateCheckStatus(context.Background(), "c1", stock.CheckStatusSucceeded, "", counters)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCheckStatus_NotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE checks SET").
		WithArgs("missing", "failed", "boom", 0, 0, 0, 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM checks WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	err := store.UpdateCheckStatus(context.Background(), "missing", stock.CheckStatusFailed, "boom", stock.Counters{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCheckStatus_AlreadyFinished(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE checks SET").
		WithArgs("c1", "canceled", "", 0, 0, 0, 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM checks WHERE id").
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("succeeded"))

	err := store.UpdateCheckStatus(context.Background(), "c1", stock.CheckStatusCanceled, "", stock.Counters{})
	require.ErrorIs(t, err, stock.ErrCheckFinished)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSnapshot(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	snap := stock.Snapshot{
		CheckID:      "c1",
		URL:          "https://example.com/stock",
		StatusCode:   200,
		UsedHeadless: true,
		FetchedAt:    time.Unix(200, 0).UTC(),
		DurationMs:   1250,
		ContentHash:  "abc123",
		BlobURI:      "gs://bucket/pages/c1/abc123.html",
		Items:        []stock.Item{{Name: "Beanstalk", Quantity: 2, InStock: true}},
		TargetHits:   []stock.Item{{Name: "Beanstalk", Quantity: 2, InStock: true}},
	}

	mock.ExpectExec("INSERT INTO snapshots").
		WithArgs(
			snap.CheckID,
			snap.URL,
			snap.StatusCode,
			snap.UsedHeadless,
			snap.FetchedAt,
			snap.DurationMs,
			snap.ContentHash,
			pgxmock.AnyArg(),
			snap.BlobURI,
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.RecordSnapshot(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAlert(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	alert := stock.Alert{
		ID:          "a1",
		CheckID:     "c1",
		SentAt:      time.Unix(300, 0).UTC(),
		Channel:     "email",
		Recipient:   "gardener@example.com",
		Fingerprint: "beanstalk=2",
		Seeds:       []stock.Item{{Name: "Beanstalk", Quantity: 2, InStock: true}},
		Delivered:   true,
	}

	mock.ExpectExec("INSERT INTO alerts").
		WithArgs(
			alert.ID,
			alert.CheckID,
			alert.SentAt,
			alert.Channel,
			alert.Recipient,
			alert.Fingerprint,
			pgxmock.AnyArg(),
			alert.Delivered,
			"",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.RecordAlert(context.Background(), alert))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCheck(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	requested := time.Unix(100, 0).UTC()
	started := time.Unix(101, 0).UTC()
	rows := pgxmock.NewRows([]string{
		"id", "status", "trigger", "requested_at", "started_at", "finished_at",
		"error_text", "items_seen", "targets_found", "targets_avail", "retries",
	}).AddRow("c1", "running", "manual", requested, &started, (*time.Time)(nil), "", 8, 5, 2, 0)

	mock.ExpectQuery("SELECT .+ FROM checks WHERE id").
		WithArgs("c1").
		WillReturnRows(rows)

	check, err := store.GetCheck(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, stock.CheckStatusRunning, check.Status)
	require.Equal(t, stock.TriggerManual, check.Trigger)
	require.NotNil(t, check.Started)
	require.Nil(t, check.Finished)
	require.Equal(t, 8, check.Counters.ItemsSeen)
}

func TestListChecks(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "status", "trigger", "requested_at", "started_at", "finished_at",
		"error_text", "items_seen", "targets_found", "targets_avail", "retries",
	}).
		AddRow("c2", "succeeded", "scheduled", time.Unix(200, 0).UTC(), (*time.Time)(nil), (*time.Time)(nil), "", 0, 0, 0, 0).
		AddRow("c1", "failed", "manual", time.Unix(100, 0).UTC(), (*time.Time)(nil), (*time.Time)(nil), "boom", 0, 0, 0, 1)

	mock.ExpectQuery("SELECT .+ FROM checks ORDER BY requested_at DESC").
		WithArgs(2).
		WillReturnRows(rows)

	checks, err := store.ListChecks(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, checks, 2)
	require.Equal(t, "c2", checks[0].ID)
	require.Equal(t, "boom", checks[1].ErrorText)
}

func TestGetSnapshot(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	rows := pgxmock.NewRows([]string{
		"check_id", "url", "status_code", "used_headless", "fetched_at", "duration_ms",
		"content_hash", "headers", "blob_uri", "items", "target_hits",
	}).AddRow(
		"c1", "https://example.com/stock", 200, false, time.Unix(200, 0).UTC(), int64(900),
		"abc123", []byte(`{"Content-Type":["text/html"]}`), "",
		[]byte(`[{"name":"Beanstalk","quantity":1,"in_stock":true}]`), []byte(`[]`),
	)

	mock.ExpectQuery("SELECT .+ FROM snapshots WHERE check_id").
		WithArgs("c1").
		WillReturnRows(rows)

	snap, err := store.GetSnapshot(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/stock", snap.URL)
	require.Equal(t, "text/html", snap.Headers.Get("Content-Type"))
	require.Len(t, snap.Items, 1)
	require.Equal(t, "Beanstalk", snap.Items[0].Name)
}

func TestLastAlert(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "check_id", "sent_at", "channel", "recipient", "fingerprint",
		"seeds", "delivered", "error_text",
	}).AddRow(
		"a1", "c1", time.Unix(300, 0).UTC(), "email", "gardener@example.com",
		"beanstalk=2", []byte(`[{"name":"Beanstalk","quantity":2,"in_stock":true}]`), true, "",
	)

	mock.ExpectQuery("SELECT .+ FROM alerts ORDER BY sent_at DESC").
		WillReturnRows(rows)

	alert, err := store.LastAlert(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a1", alert.ID)
	require.Equal(t, "beanstalk=2", alert.Fingerprint)
	require.Len(t, alert.Seeds, 1)
}
