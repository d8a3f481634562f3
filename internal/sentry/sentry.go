// Package sentry wraps the Sentry Go SDK for Better Stack error tracking.
// Better Stack accepts the Sentry protocol, so only the DSN differs.
package sentry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/garyellow/lessonbot-go/internal/ctxutil"
)

// Config holds Sentry configuration for Better Stack integration.
type Config struct {
	// Token is the Better Stack Errors application token.
	Token string

	// Host is the Better Stack Errors ingesting host (e.g., "errors.betterstack.com").
	Host string

	Environment string
	Release     string

	// SampleRate controls error sampling (0.0-1.0, default 1.0).
	SampleRate float64

	Debug bool
}

// DSN builds the Better Stack DSN: https://$TOKEN@$HOST/1.
// The project ID is required by the SDK but ignored by Better Stack.
func (c Config) DSN() string {
	return fmt.Sprintf("https://%s@%s/1", c.Token, c.Host)
}

// Initialize sets up the Sentry SDK.
// If Token is empty, Sentry stays disabled and nil is returned.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}
	if cfg.Host == "" {
		return fmt.Errorf("sentry host is required when token is provided")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN(),
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		// Phone numbers are personal data; keep only a masked form.
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if sender, ok := event.Tags["sender"]; ok {
				event.Tags["sender"] = MaskSender(sender)
			}
			return event
		},
	})
}

// Flush waits for buffered events to be sent to the server.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureError reports err tagged with the failing module and operation plus
// any sender and message ID carried by ctx. It is a no-op when Sentry is disabled.
func CaptureError(ctx context.Context, module, operation string, err error) {
	if err == nil || !IsEnabled() {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("module", module)
		scope.SetTag("operation", operation)
		if sender := ctxutil.GetSender(ctx); sender != "" {
			scope.SetTag("sender", sender)
		}
		if messageID := ctxutil.GetMessageID(ctx); messageID != "" {
			scope.SetTag("message_id", messageID)
		}
		hub.CaptureException(err)
	})
}

// MaskSender keeps the last four digits of a phone number.
func MaskSender(sender string) string {
	if len(sender) <= 4 {
		return "****"
	}
	return "****" + sender[len(sender)-4:]
}
