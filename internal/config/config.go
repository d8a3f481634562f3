// Package config provides application configuration management.
// It loads settings from a .env file and environment variables and
// validates them before the application starts.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// WhatsApp Cloud API
	WhatsAppToken         string `env:"WHATSAPP_TOKEN"`
	WhatsAppPhoneNumberID string `env:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsAppVerifyToken   string `env:"WHATSAPP_VERIFY_TOKEN"`
	WhatsAppAppSecret     string `env:"WHATSAPP_APP_SECRET"` // Falls back to WhatsAppToken for signatures
	WhatsAppGraphURL      string `env:"WHATSAPP_GRAPH_URL" envDefault:"https://graph.facebook.com/v20.0"`

	// Next.js on-demand revalidation endpoint
	RevalidateURL    string `env:"NEXT_REVALIDATE_URL"`
	RevalidateSecret string `env:"NEXT_REVALIDATE_SECRET"`

	// Media object storage (S3 compatible, e.g. Cloudflare R2). Empty endpoint disables uploads.
	MediaEndpoint      string `env:"MEDIA_ENDPOINT"`
	MediaAccessKeyID   string `env:"MEDIA_ACCESS_KEY_ID"`
	MediaSecretKey     string `env:"MEDIA_SECRET_ACCESS_KEY"`
	MediaPublicBaseURL string `env:"MEDIA_PUBLIC_BASE_URL"` // Defaults to <endpoint>/<bucket>

	// SQLite snapshots stored in the media bucket
	SnapshotEnabled  bool          `env:"SNAPSHOT_ENABLED" envDefault:"false"`
	SnapshotKey      string        `env:"SNAPSHOT_KEY" envDefault:"snapshots/lessons.db.zst"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"6h"`

	// Metrics Authentication (also guards /publish/revalidate)
	MetricsUsername string `env:"METRICS_USERNAME" envDefault:"prometheus"`
	MetricsPassword string `env:"METRICS_PASSWORD"` // Empty = no auth

	// Better Stack logs and errors
	BetterStackToken    string `env:"BETTERSTACK_TOKEN"`
	BetterStackEndpoint string `env:"BETTERSTACK_ENDPOINT"`
	SentryToken         string `env:"SENTRY_TOKEN"`
	SentryHost          string `env:"SENTRY_HOST"`
	SentryEnvironment   string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`

	// Server Configuration
	Port            string        `env:"PORT" envDefault:"10000"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	DataDir         string        `env:"DATA_DIR" envDefault:"/data"`

	// Bot Configuration (embedded)
	Bot BotConfig
}

// Load reads configuration from environment variables.
// It attempts to load .env file first, then reads from env vars.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Bot.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		key   string
		value string
	}{
		{EnvWhatsAppToken, c.WhatsAppToken},
		{EnvWhatsAppPhoneNumberID, c.WhatsAppPhoneNumberID},
		{EnvWhatsAppVerifyToken, c.WhatsAppVerifyToken},
		{EnvRevalidateURL, c.RevalidateURL},
		{EnvRevalidateSecret, c.RevalidateSecret},
		{EnvPort, c.Port},
		{EnvDataDir, c.DataDir},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}

	if c.MediaEndpoint != "" && (c.MediaAccessKeyID == "" || c.MediaSecretKey == "") {
		errs = append(errs, fmt.Errorf("%s and %s are required when %s is set",
			EnvMediaAccessKeyID, EnvMediaSecretKey, EnvMediaEndpoint))
	}
	if c.SnapshotEnabled {
		if !c.HasMediaStorage() {
			errs = append(errs, fmt.Errorf("%s requires %s", EnvSnapshotEnabled, EnvMediaEndpoint))
		}
		if c.SnapshotInterval <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSnapshotInterval, c.SnapshotInterval))
		}
	}
	if c.SentryToken != "" && c.SentryHost == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s is set", EnvSentryHost, EnvSentryToken))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvShutdownTimeout, c.ShutdownTimeout))
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}

	return errors.Join(errs...)
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "lessons.db")
}

// HasMediaStorage reports whether an object storage endpoint is configured.
func (c *Config) HasMediaStorage() bool {
	return c.MediaEndpoint != ""
}

// SignatureSecret returns the secret used to verify webhook signatures.
// WhatsApp signs with the app secret; older deployments reused the access token.
func (c *Config) SignatureSecret() string {
	if c.WhatsAppAppSecret != "" {
		return c.WhatsAppAppSecret
	}
	return c.WhatsAppToken
}
