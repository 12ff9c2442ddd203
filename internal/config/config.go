package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"checkout-reconciler/internal/domain"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     string          `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Schema   string `mapstructure:"schema"`
}

// DSN builds the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.Schema,
	)
}

type GatewayConfig struct {
	// Mode is "http" for the real provider or "mock" for the simulated one.
	Mode          string        `mapstructure:"mode"`
	BaseURL       string        `mapstructure:"base_url"`
	ClientID      string        `mapstructure:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	RedirectURL   string        `mapstructure:"redirect_url"`
	CallbackURL   string        `mapstructure:"callback_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type NotifyConfig struct {
	// Queue is "memory" or "redis".
	Queue           string        `mapstructure:"queue"`
	Workers         int           `mapstructure:"workers"`
	BufferSize      int           `mapstructure:"buffer_size"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	SenderURL       string        `mapstructure:"sender_url"`
	SenderTimeout   time.Duration `mapstructure:"sender_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	QueueKey string `mapstructure:"queue_key"`
}

type ReconcileConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
	BatchSize  int           `mapstructure:"batch_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "checkout-reconciler")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.port", "5000")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("store", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "")
	v.SetDefault("database.schema", "public")

	v.SetDefault("gateway.mode", "http")
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.client_id", "")
	v.SetDefault("gateway.client_secret", "")
	v.SetDefault("gateway.webhook_secret", "")
	v.SetDefault("gateway.redirect_url", "")
	v.SetDefault("gateway.callback_url", "")
	v.SetDefault("gateway.timeout", 5*time.Second)

	v.SetDefault("notify.queue", "memory")
	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.buffer_size", 256)
	v.SetDefault("notify.max_attempts", 5)
	v.SetDefault("notify.initial_interval", 500*time.Millisecond)
	v.SetDefault("notify.sender_url", "")
	v.SetDefault("notify.sender_timeout", 5*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue_key", "checkout:notifications")

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.interval", 30*time.Second)
	v.SetDefault("reconcile.stale_after", 2*time.Minute)
	v.SetDefault("reconcile.batch_size", 50)
}

// Load reads .env (if present), then an optional YAML file, then environment
// variables. Env keys are the upper-cased dotted path, e.g. GATEWAY_CLIENT_ID.
// The database section also honours the BLUEPRINT_DB_* variables.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env failed: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"database.host":     "BLUEPRINT_DB_HOST",
		"database.port":     "BLUEPRINT_DB_PORT",
		"database.username": "BLUEPRINT_DB_USERNAME",
		"database.password": "BLUEPRINT_DB_PASSWORD",
		"database.database": "BLUEPRINT_DB_DATABASE",
		"database.schema":   "BLUEPRINT_DB_SCHEMA",
	} {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s failed: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	return &cfg, nil
}

// Validate fails when anything the service cannot run without is missing.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store {
	case "postgres":
		if c.Database.Database == "" || c.Database.Username == "" {
			problems = append(problems, "database.database and database.username are required")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("store %q is not supported", c.Store))
	}

	switch c.Gateway.Mode {
	case "http":
		if c.Gateway.BaseURL == "" {
			problems = append(problems, "gateway.base_url is required")
		}
		if c.Gateway.ClientID == "" || c.Gateway.ClientSecret == "" {
			problems = append(problems, "gateway.client_id and gateway.client_secret are required")
		}
	case "mock":
	default:
		problems = append(problems, fmt.Sprintf("gateway.mode %q is not supported", c.Gateway.Mode))
	}
	if c.Gateway.WebhookSecret == "" {
		problems = append(problems, "gateway.webhook_secret is required")
	}
	if c.Gateway.RedirectURL == "" || c.Gateway.CallbackURL == "" {
		problems = append(problems, "gateway.redirect_url and gateway.callback_url are required")
	}
	if c.Gateway.Timeout <= 0 {
		problems = append(problems, "gateway.timeout must be positive")
	}

	switch c.Notify.Queue {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			problems = append(problems, "redis.addr is required for the redis queue")
		}
	default:
		problems = append(problems, fmt.Sprintf("notify.queue %q is not supported", c.Notify.Queue))
	}
	if c.Notify.Workers <= 0 || c.Notify.MaxAttempts <= 0 {
		problems = append(problems, "notify.workers and notify.max_attempts must be positive")
	}

	if c.Reconcile.Enabled && (c.Reconcile.Interval <= 0 || c.Reconcile.BatchSize <= 0) {
		problems = append(problems, "reconcile.interval and reconcile.batch_size must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}
