package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-reconciler/internal/domain"
)

func validConfig() *Config {
	return &Config{
		Store: "memory",
		Gateway: GatewayConfig{
			Mode:          "mock",
			WebhookSecret: "s3cret",
			RedirectURL:   "https://shop.example/payment-status",
			CallbackURL:   "https://api.shop.example/payments/callback",
			Timeout:       5 * time.Second,
		},
		Notify: NotifyConfig{Queue: "memory", Workers: 1, MaxAttempts: 3},
		Reconcile: ReconcileConfig{
			Enabled:   true,
			Interval:  time.Second,
			BatchSize: 10,
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, 5*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, "memory", cfg.Notify.Queue)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Interval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_CLIENT_ID", "merchant-1")
	t.Setenv("NOTIFY_WORKERS", "7")
	t.Setenv("BLUEPRINT_DB_HOST", "db.internal")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "merchant-1", cfg.Gateway.ClientID)
	assert.Equal(t, 7, cfg.Notify.Workers)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
store: memory
gateway:
  mode: mock
  webhook_secret: from-file
  timeout: 2s
redis:
  queue_key: orders:mail
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "from-file", cfg.Gateway.WebhookSecret)
	assert.Equal(t, 2*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, "orders:mail", cfg.Redis.QueueKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	t.Run("missing secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.Gateway.WebhookSecret = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrConfig))
		assert.Contains(t, err.Error(), "webhook_secret")
	})

	t.Run("http gateway needs credentials", func(t *testing.T) {
		cfg := validConfig()
		cfg.Gateway.Mode = "http"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_url")
		assert.Contains(t, err.Error(), "client_secret")
	})

	t.Run("postgres needs database", func(t *testing.T) {
		cfg := validConfig()
		cfg.Store = "postgres"
		assert.ErrorIs(t, cfg.Validate(), domain.ErrConfig)
	})

	t.Run("unknown queue", func(t *testing.T) {
		cfg := validConfig()
		cfg.Notify.Queue = "kafka"
		assert.ErrorIs(t, cfg.Validate(), domain.ErrConfig)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "5432", Username: "u", Password: "p", Database: "shop", Schema: "public"}
	assert.Equal(t, "postgres://u:p@h:5432/shop?sslmode=disable&search_path=public", d.DSN())
}
