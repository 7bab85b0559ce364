package stock

import (
	"context"
	"errors"
	"time"
)

// ErrCheckFinished is returned by Store.UpdateCheckStatus when the check is
// already in a terminal status.
var ErrCheckFinished = errors.New("check already finished")

// Store persists check, snapshot, and alert metadata.
type Store interface {
	CreateCheck(ctx context.Context, check Check) error
	UpdateCheckStatus(ctx context.Context, checkID string, status CheckStatus, errText string, counters Counters) error
	RecordSnapshot(ctx context.Context, snap Snapshot) error
	RecordAlert(ctx context.Context, alert Alert) error
	GetCheck(ctx context.Context, checkID string) (Check, error)
	GetSnapshot(ctx context.Context, checkID string) (Snapshot, error)
	ListChecks(ctx context.Context, limit int) ([]Check, error)
	ListAlerts(ctx context.Context, limit int) ([]Alert, error)
	LatestCheck(ctx context.Context) (Check, error)
	LastAlert(ctx context.Context) (Alert, error)
}

// BlobStore writes raw page HTML and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Notifier delivers a stock alert to a human.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
	Channel() string
}

// Publisher pushes check/alert events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Scraper fetches the stock page and returns parsed items plus metadata.
type Scraper interface {
	Scrape(ctx context.Context, url string) (ScrapeResult, error)
}

// RenderDetector decides whether a headless scrape is warranted.
type RenderDetector interface {
	ShouldPromote(probe ScrapeResult) bool
}

// Queue provides enqueue/dequeue semantics for check requests.
type Queue interface {
	Enqueue(ctx context.Context, req CheckRequest) error
	Dequeue(ctx context.Context) (CheckRequest, error)
}

// RetryPolicy governs scrape retries.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces check and alert IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
