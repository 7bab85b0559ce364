// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// WatchConfig governs the check schedule and pipeline.
type WatchConfig struct {
	URL             string   `mapstructure:"url"`
	Targets         []string `mapstructure:"targets"`
	IntervalSeconds int      `mapstructure:"interval_seconds"`
	Concurrency     int      `mapstructure:"concurrency"`
	QueueDepth      int      `mapstructure:"queue_depth"`
	MaxRetries      int      `mapstructure:"max_retries"`
}

// ScraperConfig configures the probe and headless fetch paths.
type ScraperConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds"`
	MaxParallel    int    `mapstructure:"max_parallel"`
	AlwaysHeadless bool   `mapstructure:"always_headless"`
}

// DetectorConfig tunes the headless promotion heuristic.
type DetectorConfig struct {
	MinHTMLBytes int      `mapstructure:"min_html_bytes"`
	Keywords     []string `mapstructure:"keywords"`
}

// NotifyConfig controls alert delivery.
type NotifyConfig struct {
	CooldownSeconds int         `mapstructure:"cooldown_seconds"`
	Email           EmailConfig `mapstructure:"email"`
}

// EmailConfig holds the Gmail SMTP settings. Sender, app password, and
// recipient are expected via STOCKWATCH_NOTIFY_EMAIL_* environment variables
// rather than the config file.
type EmailConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	SMTPHost    string `mapstructure:"smtp_host"`
	SMTPPort    int    `mapstructure:"smtp_port"`
	Sender      string `mapstructure:"sender"`
	AppPassword string `mapstructure:"app_password"`
	Recipient   string `mapstructure:"recipient"`
}

// StorageConfig selects and configures the metadata store.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ArchiveConfig selects and configures the raw-HTML blob store.
type ArchiveConfig struct {
	Provider    string `mapstructure:"provider"`
	BaseDir     string `mapstructure:"base_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PublisherConfig holds metadata for publish-subscribe notifications.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STOCKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 10000)
	v.SetDefault("watch.url", "https://www.gamersberg.com/grow-a-garden/stock")
	v.SetDefault("watch.targets", []string{
		"Beanstalk",
		"Burning Bud",
		"Giant Pinecone",
		"Sugar Apple",
		"Ember Lily",
	})
	v.SetDefault("watch.interval_seconds", 300)
	v.SetDefault("watch.concurrency", 1)
	v.SetDefault("watch.queue_depth", 16)
	v.SetDefault("watch.max_retries", 2)
	v.SetDefault("scraper.user_agent", "stock-watcher/0.1")
	v.SetDefault("scraper.timeout_seconds", 15)
	v.SetDefault("scraper.nav_timeout_seconds", 25)
	v.SetDefault("scraper.max_parallel", 1)
	v.SetDefault("detector.min_html_bytes", 2048)
	v.SetDefault("detector.keywords", []string{"enable javascript", "loading..."})
	v.SetDefault("notify.cooldown_seconds", 1800)
	v.SetDefault("notify.email.smtp_host", "smtp.gmail.com")
	v.SetDefault("notify.email.smtp_port", 465)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("publisher.provider", "noop")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Watch.URL == "" {
		return fmt.Errorf("watch.url is required")
	}
	if len(c.Watch.Targets) == 0 {
		return fmt.Errorf("watch.targets must not be empty")
	}
	if c.Watch.IntervalSeconds <= 0 {
		return fmt.Errorf("watch.interval_seconds must be > 0")
	}
	if c.Watch.Concurrency <= 0 {
		return fmt.Errorf("watch.concurrency must be > 0")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Scraper.MaxParallel <= 0 {
		return fmt.Errorf("scraper.max_parallel must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Notify.Email.Enabled && (c.Notify.Email.SMTPHost == "" || c.Notify.Email.SMTPPort <= 0) {
		return fmt.Errorf("notify.email.smtp_host and smtp_port are required when email is enabled")
	}
	switch c.Storage.Provider {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres provider")
		}
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}
	switch c.Archive.Provider {
	case "noop", "memory":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local provider")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown archive provider %q", c.Archive.Provider)
	}
	switch c.Publisher.Provider {
	case "noop", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.TopicName == "" {
			return fmt.Errorf("publisher.project_id and topic_name are required for the pubsub provider")
		}
	default:
		return fmt.Errorf("unknown publisher provider %q", c.Publisher.Provider)
	}
	return nil
}

// Interval returns the configured check interval as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Watch.IntervalSeconds) * time.Second
}

// ScrapeTimeout returns the probe fetch timeout as a duration.
func (c Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// NavTimeout returns the headless navigation timeout as a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Scraper.NavTimeoutSec) * time.Second
}

// Cooldown returns the alert cooldown as a duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Notify.CooldownSeconds) * time.Second
}
