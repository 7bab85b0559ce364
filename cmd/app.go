package cmd

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/gardenbot/stock-watcher/internal/config"
	"github.com/gardenbot/stock-watcher/internal/detector"
	"github.com/gardenbot/stock-watcher/internal/logging"
	"github.com/gardenbot/stock-watcher/internal/metrics"
	lognotifier "github.com/gardenbot/stock-watcher/internal/notifier/log"
	mailnotifier "github.com/gardenbot/stock-watcher/internal/notifier/mail"
	memorypublisher "github.com/gardenbot/stock-watcher/internal/publisher/memory"
	pubsubpublisher "github.com/gardenbot/stock-watcher/internal/publisher/pubsub"
	"github.com/gardenbot/stock-watcher/internal/retry"
	"github.com/gardenbot/stock-watcher/internal/scraper"
	collyscraper "github.com/gardenbot/stock-watcher/internal/scraper/colly"
	"github.com/gardenbot/stock-watcher/internal/scraper/headless"
	gcsstore "github.com/gardenbot/stock-watcher/internal/storage/gcs"
	localstore "github.com/gardenbot/stock-watcher/internal/storage/local"
	memorystore "github.com/gardenbot/stock-watcher/internal/storage/memory"
	postgresstore "github.com/gardenbot/stock-watcher/internal/storage/postgres"
	"github.com/gardenbot/stock-watcher/internal/stock"
	"github.com/gardenbot/stock-watcher/internal/watcher"
)

// components holds everything built from configuration that the serve and
// check commands share.
type components struct {
	cfg       config.Config
	logger    *zap.Logger
	store     stock.Store
	blobStore stock.BlobStore
	publisher stock.Publisher
	notifier  stock.Notifier
	probe     stock.Scraper
	headless  stock.Scraper
	detector  stock.RenderDetector
	retry     stock.RetryPolicy

	closers []func()
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func buildComponents(ctx context.Context) (*components, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	c := &components{cfg: cfg, logger: logger}
	c.closers = append(c.closers, func() {
		_ = logger.Sync()
	})

	if err := c.buildStore(ctx); err != nil {
		c.close()
		return nil, err
	}
	if err := c.buildArchive(ctx); err != nil {
		c.close()
		return nil, err
	}
	if err := c.buildPublisher(ctx); err != nil {
		c.close()
		return nil, err
	}
	if err := c.buildNotifier(); err != nil {
		c.close()
		return nil, err
	}
	c.buildScrapers()
	return c, nil
}

func (c *components) buildStore(ctx context.Context) error {
	switch c.cfg.Storage.Provider {
	case "postgres":
		store, err := postgresstore.NewStore(ctx, postgresstore.StoreConfig{
			DSN:      c.cfg.Storage.DSN,
			MaxConns: c.cfg.Storage.MaxConns,
			MinConns: c.cfg.Storage.MinConns,
		})
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		c.store = store
		c.closers = append(c.closers, store.Close)
	default:
		c.store = memorystore.NewStore()
	}
	return nil
}

func (c *components) buildArchive(ctx context.Context) error {
	switch c.cfg.Archive.Provider {
	case "memory":
		c.blobStore = memorystore.NewBlobStore()
	case "local":
		blobs, err := localstore.New(localstore.Config{BaseDir: c.cfg.Archive.BaseDir})
		if err != nil {
			return fmt.Errorf("init local archive: %w", err)
		}
		c.blobStore = blobs
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		blobs, err := gcsstore.New(client, gcsstore.Config{Bucket: c.cfg.Archive.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs archive: %w", err)
		}
		c.blobStore = blobs
		c.closers = append(c.closers, func() {
			_ = client.Close()
		})
	default:
		// noop: snapshots carry no blob URI.
	}
	return nil
}

func (c *components) buildPublisher(ctx context.Context) error {
	switch c.cfg.Publisher.Provider {
	case "memory":
		c.publisher = memorypublisher.NewPublisher()
	case "pubsub":
		client, err := pubsub.NewClient(ctx, c.cfg.Publisher.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		pub, err := pubsubpublisher.New(client)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		c.publisher = pub
		c.closers = append(c.closers, func() {
			if closeErr := pub.Close(); closeErr != nil {
				c.logger.Warn("pubsub close failed", zap.Error(closeErr))
			}
		})
	default:
		// noop: alert events stay local.
	}
	return nil
}

func (c *components) buildNotifier() error {
	email := c.cfg.Notify.Email
	if !email.Enabled {
		c.logger.Info("email notifier disabled, alerts go to the log")
		c.notifier = lognotifier.New(c.logger.Named("notifier"))
		return nil
	}
	if email.Sender == "" || email.AppPassword == "" || email.Recipient == "" {
		// Matches the one-shot ancestor: missing credentials skip email
		// rather than aborting the whole service.
		c.logger.Warn("email credentials incomplete, alerts go to the log")
		c.notifier = lognotifier.New(c.logger.Named("notifier"))
		return nil
	}
	notifier, err := mailnotifier.New(mailnotifier.Config{
		Host:        email.SMTPHost,
		Port:        email.SMTPPort,
		Sender:      email.Sender,
		AppPassword: email.AppPassword,
		Recipient:   email.Recipient,
	})
	if err != nil {
		return fmt.Errorf("init email notifier: %w", err)
	}
	c.notifier = notifier
	return nil
}

func (c *components) buildScrapers() {
	probe := collyscraper.New(collyscraper.Config{
		UserAgent: c.cfg.Scraper.UserAgent,
		Timeout:   c.cfg.ScrapeTimeout(),
	})
	c.probe = probe

	headlessScraper, err := headless.NewChromedp(headless.Config{
		MaxParallel:       c.cfg.Scraper.MaxParallel,
		UserAgent:         c.cfg.Scraper.UserAgent,
		NavigationTimeout: c.cfg.NavTimeout(),
	})
	if err != nil {
		c.logger.Warn("headless scraper init failed, probe only", zap.Error(err))
	} else {
		c.headless = headlessScraper
		c.closers = append(c.closers, headlessScraper.Close)
	}

	if c.cfg.Scraper.AlwaysHeadless && c.headless != nil {
		// Skip the probe heuristics entirely; every check renders.
		c.probe = c.headless
		c.headless = nil
		c.detector = nil
	} else {
		c.detector = detector.NewHeuristic(
			c.cfg.Detector.MinHTMLBytes,
			scraper.ItemSelector,
			c.cfg.Detector.Keywords,
		)
	}

	c.retry = retry.NewExponentialPolicy(c.cfg.Watch.MaxRetries + 1)
}

func (c *components) workerConfig(alwaysAlert bool) watcher.Config {
	return watcher.Config{
		URL:         c.cfg.Watch.URL,
		Targets:     c.cfg.Watch.Targets,
		BlobPrefix:  c.cfg.Archive.Prefix,
		ContentType: c.cfg.Archive.ContentType,
		Topic:       c.cfg.Publisher.TopicName,
		Cooldown:    c.cfg.Cooldown(),
		AlwaysAlert: alwaysAlert,
	}
}

// shutdownTimeout bounds HTTP server drain on SIGTERM.
const shutdownTimeout = 10 * time.Second
