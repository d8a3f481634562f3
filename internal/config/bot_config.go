package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BotConfig holds the lesson bot's behavioral settings.
type BotConfig struct {
	// AllowedSenders restricts who may use the bot. Empty allows everyone.
	AllowedSenders []string `env:"BOT_ALLOWED_SENDERS" envSeparator:","`

	// Fixed-window rate limit per sender. Values below 1 are raised to 1.
	RateLimitMax       int `env:"BOT_RATE_LIMIT_MAX" envDefault:"20"`
	RateLimitWindowSec int `env:"BOT_RATE_LIMIT_WINDOW_SEC" envDefault:"60"`

	// MediaBucket is the object storage bucket for lesson media and snapshots.
	MediaBucket string `env:"BOT_MEDIA_BUCKET" envDefault:"lesson-media"`

	// MaxConcurrency bounds webhook messages processed at the same time.
	MaxConcurrency int `env:"WEBHOOK_MAX_CONCURRENCY" envDefault:"16"`

	// DedupRetention is how long processed message IDs are remembered.
	DedupRetention time.Duration `env:"DEDUP_RETENTION" envDefault:"72h"`
}

// normalize trims the allow-list and applies the rate-limit floors.
func (b *BotConfig) normalize() {
	senders := make([]string, 0, len(b.AllowedSenders))
	for _, s := range b.AllowedSenders {
		if s = strings.TrimSpace(s); s != "" {
			senders = append(senders, s)
		}
	}
	b.AllowedSenders = senders
	b.RateLimitMax = max(1, b.RateLimitMax)
	b.RateLimitWindowSec = max(1, b.RateLimitWindowSec)
}

// RateLimitWindow returns the rate-limit window as a duration.
func (b *BotConfig) RateLimitWindow() time.Duration {
	return time.Duration(b.RateLimitWindowSec) * time.Second
}

// AllowAllSenders reports whether the allow-list is empty.
func (b *BotConfig) AllowAllSenders() bool {
	return len(b.AllowedSenders) == 0
}

// Validate checks bot settings after normalization.
func (b *BotConfig) Validate() error {
	var errs []error
	if b.MediaBucket == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvMediaBucket))
	}
	if b.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvWebhookConcurrency, b.MaxConcurrency))
	}
	if b.DedupRetention <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvDedupRetention, b.DedupRetention))
	}
	if b.RateLimitMax < 1 || b.RateLimitWindowSec < 1 {
		errs = append(errs, errors.New("rate limit values must be at least 1"))
	}
	return errors.Join(errs...)
}
