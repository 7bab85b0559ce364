// Package watcher implements the stock check execution loop.
package watcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gardenbot/stock-watcher/internal/metrics"
	"github.com/gardenbot/stock-watcher/internal/stock"
)

// Config controls Worker behavior.
type Config struct {
	URL         string
	Targets     []string
	BlobPrefix  string
	ContentType string
	Topic       string
	Cooldown    time.Duration

	// AlwaysAlert skips the fingerprint/cooldown suppression. One-shot runs
	// set this so a cron-style invocation always reports what it found.
	AlwaysAlert bool
}

// Worker consumes queued check requests and executes the scrape pipeline.
type Worker struct {
	queue     stock.Queue
	store     stock.Store
	blobStore stock.BlobStore
	publisher stock.Publisher
	notifier  stock.Notifier
	hasher    stock.Hasher
	clock     stock.Clock
	ids       stock.IDGenerator
	probe     stock.Scraper
	headless  stock.Scraper
	detector  stock.RenderDetector
	retry     stock.RetryPolicy
	targets   stock.TargetSet
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue stock.Queue,
	store stock.Store,
	blobStore stock.BlobStore,
	publisher stock.Publisher,
	notifier stock.Notifier,
	hasher stock.Hasher,
	clock stock.Clock,
	ids stock.IDGenerator,
	probe stock.Scraper,
	headless stock.Scraper,
	detector stock.RenderDetector,
	retry stock.RetryPolicy,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.L()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	return &Worker{
		queue:     queue,
		store:     store,
		blobStore: blobStore,
		publisher: publisher,
		notifier:  notifier,
		hasher:    hasher,
		clock:     clock,
		ids:       ids,
		probe:     probe,
		headless:  headless,
		detector:  detector,
		retry:     retry,
		targets:   stock.NewTargetSet(cfg.Targets),
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming check requests until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		req, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			return
		}
		w.logger.Debug("dequeued check", zap.String("check_id", req.CheckID))
		if err := w.RunCheck(ctx, req); err != nil {
			w.logger.Error("check failed", zap.String("check_id", req.CheckID), zap.Error(err))
		}
	}
}

// RunCheck executes a single check end to end: scrape, persist, alert. It
// returns the first pipeline error so one-shot callers can exit non-zero.
func (w *Worker) RunCheck(ctx context.Context, req stock.CheckRequest) error {
	counters := stock.Counters{}

	if err := w.store.UpdateCheckStatus(ctx, req.CheckID, stock.CheckStatusRunning, "", counters); err != nil {
		return fmt.Errorf("mark check running: %w", err)
	}

	result, pipelineErr := w.scrape(ctx, &counters)
	if pipelineErr == nil {
		pipelineErr = w.persist(ctx, req, result, &counters)
	}

	status, errText := w.deriveFinalStatus(ctx, pipelineErr)
	metrics.ObserveCheck(string(status), string(req.Trigger))
	if err := w.store.UpdateCheckStatus(ctx, req.CheckID, status, errText, counters); err != nil {
		w.logger.Error("final check status update failed", zap.String("check_id", req.CheckID), zap.Error(err))
	}
	return pipelineErr
}

// scrape fetches the stock page with the probe scraper, retrying per policy,
// then promotes to headless when the detector calls the page app-shell.
func (w *Worker) scrape(ctx context.Context, counters *stock.Counters) (stock.ScrapeResult, error) {
	result, err := w.scrapeWithRetry(ctx, w.probe, counters)
	if err != nil {
		return stock.ScrapeResult{}, err
	}
	metrics.ObserveScrape("probe", result.Duration)

	if w.detector != nil && w.headless != nil && w.detector.ShouldPromote(result) {
		headlessResult, headlessErr := w.headless.Scrape(ctx, w.cfg.URL)
		if headlessErr != nil {
			// The probe result is only a usable fallback when it actually
			// parsed stock rows; an app shell plus a failed render means the
			// page was never scraped.
			if len(result.Items) == 0 {
				return stock.ScrapeResult{}, fmt.Errorf("headless scrape: %w", headlessErr)
			}
			w.logger.Warn("headless promotion failed", zap.Error(headlessErr))
			return result, nil
		}
		metrics.ObserveHeadlessPromotion()
		metrics.ObserveScrape("headless", headlessResult.Duration)
		headlessResult.UsedHeadless = true
		return headlessResult, nil
	}
	return result, nil
}

func (w *Worker) scrapeWithRetry(
	ctx context.Context,
	scraper stock.Scraper,
	counters *stock.Counters,
) (stock.ScrapeResult, error) {
	attempt := 0
	for {
		result, err := scraper.Scrape(ctx, w.cfg.URL)
		if err == nil {
			return result, nil
		}
		if w.retry == nil || !w.retry.ShouldRetry(err, attempt) {
			return stock.ScrapeResult{}, fmt.Errorf("scrape %s: %w", w.cfg.URL, err)
		}
		counters.Retries++
		attempt++
		w.logger.Warn("scrape retry",
			zap.String("url", w.cfg.URL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return stock.ScrapeResult{}, ctx.Err()
		case <-time.After(w.retry.Backoff(attempt)):
		}
	}
}

// persist archives the page, records the snapshot, and handles alerting.
func (w *Worker) persist(
	ctx context.Context,
	req stock.CheckRequest,
	result stock.ScrapeResult,
	counters *stock.Counters,
) error {
	hits := w.targets.Filter(result.Items)
	avail := make([]stock.Item, 0, len(hits))
	for _, item := range hits {
		metrics.SetSeedQuantity(item.Name, item.Quantity)
		if item.InStock {
			avail = append(avail, item)
		}
	}
	metrics.SetTargetsInStock(len(avail))

	counters.ItemsSeen = len(result.Items)
	counters.TargetsFound = len(hits)
	counters.TargetsAvail = len(avail)

	hash, err := w.hasher.Hash(result.HTML)
	if err != nil {
		return fmt.Errorf("hash page: %w", err)
	}

	blobURI := ""
	if w.blobStore != nil {
		uri, putErr := w.blobStore.PutObject(ctx, w.buildBlobPath(req.CheckID, hash), w.cfg.ContentType, result.HTML)
		if putErr != nil {
			return fmt.Errorf("archive page: %w", putErr)
		}
		blobURI = uri
	}

	snap := stock.Snapshot{
		CheckID:      req.CheckID,
		URL:          result.URL,
		StatusCode:   result.StatusCode,
		UsedHeadless: result.UsedHeadless,
		FetchedAt:    w.clock.Now(),
		DurationMs:   result.Duration.Milliseconds(),
		ContentHash:  hash,
		Headers:      result.Headers,
		BlobURI:      blobURI,
		Items:        result.Items,
		TargetHits:   hits,
	}
	if err := w.store.RecordSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}

	return w.maybeAlert(ctx, req, avail)
}

// maybeAlert sends a notification when targets are available, suppressing
// repeats of the same fingerprint within the cooldown window.
func (w *Worker) maybeAlert(ctx context.Context, req stock.CheckRequest, avail []stock.Item) error {
	if len(avail) == 0 || w.notifier == nil {
		return nil
	}

	fingerprint := stock.Fingerprint(avail)
	if !w.cfg.AlwaysAlert && w.suppressed(ctx, fingerprint) {
		w.logger.Info("alert suppressed by cooldown",
			zap.String("check_id", req.CheckID),
			zap.String("fingerprint", fingerprint),
		)
		metrics.ObserveAlert(w.notifier.Channel(), "suppressed")
		return nil
	}

	alertID, err := w.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate alert id: %w", err)
	}
	alert := stock.Alert{
		ID:          alertID,
		CheckID:     req.CheckID,
		SentAt:      w.clock.Now(),
		Channel:     w.notifier.Channel(),
		Fingerprint: fingerprint,
		Seeds:       avail,
		Delivered:   true,
	}

	if notifyErr := w.notifier.Notify(ctx, alert); notifyErr != nil {
		alert.Delivered = false
		alert.ErrorText = notifyErr.Error()
		metrics.ObserveAlert(alert.Channel, "failed")
		w.logger.Error("alert delivery failed", zap.String("check_id", req.CheckID), zap.Error(notifyErr))
	} else {
		metrics.ObserveAlert(alert.Channel, "delivered")
	}

	// Delivery failure is recorded on the alert, not the check: the scrape
	// and snapshot still succeeded.
	if err := w.store.RecordAlert(ctx, alert); err != nil {
		return fmt.Errorf("record alert: %w", err)
	}
	w.publishAlert(ctx, alert)
	return nil
}

func (w *Worker) suppressed(ctx context.Context, fingerprint string) bool {
	last, err := w.store.LastAlert(ctx)
	if err != nil {
		return false
	}
	// A failed delivery never suppresses a retry.
	if !last.Delivered || last.Fingerprint != fingerprint {
		return false
	}
	if w.cfg.Cooldown <= 0 {
		return false
	}
	return w.clock.Now().Sub(last.SentAt) < w.cfg.Cooldown
}

func (w *Worker) publishAlert(ctx context.Context, alert stock.Alert) {
	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	seeds := make([]string, 0, len(alert.Seeds))
	for _, seed := range alert.Seeds {
		seeds = append(seeds, seed.Name)
	}
	payload := map[string]any{
		"alert_id":    alert.ID,
		"check_id":    alert.CheckID,
		"fingerprint": alert.Fingerprint,
		"seeds":       seeds,
		"delivered":   alert.Delivered,
		"timestamp":   alert.SentAt.Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, payload); err != nil {
		w.logger.Warn("publish alert event failed", zap.String("alert_id", alert.ID), zap.Error(err))
		return
	}
	w.logger.Info("alert published",
		zap.String("alert_id", alert.ID),
		zap.String("check_id", alert.CheckID),
		zap.Strings("seeds", seeds),
	)
}

func (w *Worker) buildBlobPath(checkID, hash string) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", checkID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, checkID, hash)
}

func (w *Worker) deriveFinalStatus(ctx context.Context, pipelineErr error) (stock.CheckStatus, string) {
	errText := ""
	if pipelineErr != nil {
		errText = pipelineErr.Error()
	}

	switch {
	case ctx.Err() != nil:
		return stock.CheckStatusCanceled, errText
	case pipelineErr != nil:
		return stock.CheckStatusFailed, errText
	default:
		return stock.CheckStatusSucceeded, errText
	}
}
