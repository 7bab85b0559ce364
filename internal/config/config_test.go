package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 10000, cfg.Server.Port)
	require.Equal(t, "https://www.gamersberg.com/grow-a-garden/stock", cfg.Watch.URL)
	require.Contains(t, cfg.Watch.Targets, "Beanstalk")
	require.Contains(t, cfg.Watch.Targets, "Ember Lily")
	require.Equal(t, 300, cfg.Watch.IntervalSeconds)
	require.Equal(t, "smtp.gmail.com", cfg.Notify.Email.SMTPHost)
	require.Equal(t, 465, cfg.Notify.Email.SMTPPort)
	require.Equal(t, "memory", cfg.Storage.Provider)
	require.Equal(t, "noop", cfg.Archive.Provider)
	require.False(t, cfg.Notify.Email.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9999
watch:
  url: https://example.com/stock
  targets:
    - Carrot
  interval_seconds: 60
archive:
  provider: local
  base_dir: /tmp/archive
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, "https://example.com/stock", cfg.Watch.URL)
	require.Equal(t, []string{"Carrot"}, cfg.Watch.Targets)
	require.Equal(t, "local", cfg.Archive.Provider)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STOCKWATCH_SERVER_PORT", "8123")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8123, cfg.Server.Port)
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Watch.Targets = nil
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Auth.Enabled = true
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Provider = "postgres"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Provider = "dynamo"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Archive.Provider = "gcs"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Publisher.Provider = "pubsub"
	require.Error(t, cfg.Validate())
}
