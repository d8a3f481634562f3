package config

// Environment variable keys. Struct tags in Config repeat these names; the
// constants are used for validation messages and tests.
//
//nolint:gosec // Environment variable keys are not credentials.
const (
	// WhatsApp Cloud API (required)
	EnvWhatsAppToken         = "WHATSAPP_TOKEN"
	EnvWhatsAppPhoneNumberID = "WHATSAPP_PHONE_NUMBER_ID"
	EnvWhatsAppVerifyToken   = "WHATSAPP_VERIFY_TOKEN"
	EnvWhatsAppAppSecret     = "WHATSAPP_APP_SECRET"
	EnvWhatsAppGraphURL      = "WHATSAPP_GRAPH_URL"

	// Site revalidation (required)
	EnvRevalidateURL    = "NEXT_REVALIDATE_URL"
	EnvRevalidateSecret = "NEXT_REVALIDATE_SECRET"

	// Bot behavior
	EnvAllowedSenders     = "BOT_ALLOWED_SENDERS"
	EnvRateLimitMax       = "BOT_RATE_LIMIT_MAX"
	EnvRateLimitWindowSec = "BOT_RATE_LIMIT_WINDOW_SEC"
	EnvMediaBucket        = "BOT_MEDIA_BUCKET"
	EnvWebhookConcurrency = "WEBHOOK_MAX_CONCURRENCY"
	EnvDedupRetention     = "DEDUP_RETENTION"

	// Media object storage (S3 compatible)
	EnvMediaEndpoint      = "MEDIA_ENDPOINT"
	EnvMediaAccessKeyID   = "MEDIA_ACCESS_KEY_ID"
	EnvMediaSecretKey     = "MEDIA_SECRET_ACCESS_KEY"
	EnvMediaPublicBaseURL = "MEDIA_PUBLIC_BASE_URL"

	// Database snapshots
	EnvSnapshotEnabled  = "SNAPSHOT_ENABLED"
	EnvSnapshotKey      = "SNAPSHOT_KEY"
	EnvSnapshotInterval = "SNAPSHOT_INTERVAL"

	// Server
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
	EnvDataDir         = "DATA_DIR"

	// Observability
	EnvMetricsUsername     = "METRICS_USERNAME"
	EnvMetricsPassword     = "METRICS_PASSWORD"
	EnvBetterStackToken    = "BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "BETTERSTACK_ENDPOINT"
	EnvSentryToken         = "SENTRY_TOKEN"
	EnvSentryHost          = "SENTRY_HOST"
	EnvSentryEnvironment   = "SENTRY_ENVIRONMENT"
)
