package config

import "time"

// Webhook timeouts
const (
	// WebhookProcessing bounds the handling of one inbound message, from state
	// load through the reply. WhatsApp does not wait for it: the webhook is
	// acknowledged before processing starts.
	WebhookProcessing = 90 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	WebhookHTTPWrite = 15 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// Outbound client timeouts
const (
	// WhatsAppRequest is the timeout for Graph API calls (send, media metadata).
	WhatsAppRequest = 15 * time.Second

	// WhatsAppMediaDownload is the timeout for downloading media bytes.
	WhatsAppMediaDownload = 30 * time.Second

	// RevalidateRequest is the timeout for one revalidation call.
	RevalidateRequest = 10 * time.Second

	// ReadinessCheckTimeout bounds the database ping in /readyz.
	ReadinessCheckTimeout = 3 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background job intervals
const (
	// RateLimiterCleanupInterval is how often idle sender buckets are evicted.
	RateLimiterCleanupInterval = 5 * time.Minute

	// DedupCleanupInterval is how often expired processed-message IDs are deleted.
	DedupCleanupInterval = 24 * time.Hour

	// SnapshotUpload bounds one snapshot backup (vacuum, compress, upload).
	SnapshotUpload = 10 * time.Minute
)
