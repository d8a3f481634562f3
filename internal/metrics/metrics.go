// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookRequestsTotal   *prometheus.CounterVec
	WebhookDurationSeconds *prometheus.HistogramVec

	// Command metrics
	CommandsTotal *prometheus.CounterVec

	// Collaborator failures (storage, whatsapp, revalidate, media)
	CollaboratorErrorsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped prometheus.Counter
	RateLimiterSenders prometheus.Gauge

	// Publish metrics
	RevalidationsTotal *prometheus.CounterVec

	// Background jobs
	JobDurationSeconds *prometheus.HistogramVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		WebhookRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessonbot_webhook_requests_total",
				Help: "Total number of webhook messages by event type and status",
			},
			[]string{"event", "status"}, // event: text, image, audio, video; status: success, duplicate, error
		),

		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lessonbot_webhook_duration_seconds",
				Help:    "Webhook message processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"event"},
		),

		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessonbot_commands_total",
				Help: "Total number of parsed commands by name and outcome",
			},
			[]string{"command", "status"}, // status: success, rejected, error
		),

		CollaboratorErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessonbot_collaborator_errors_total",
				Help: "Total failures reported by external collaborators",
			},
			[]string{"module", "operation"},
		),

		RateLimiterDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lessonbot_rate_limiter_dropped_total",
				Help: "Total number of messages refused by the per-sender rate limiter",
			},
		),

		RateLimiterSenders: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lessonbot_rate_limiter_senders",
				Help: "Number of senders currently tracked by the rate limiter",
			},
		),

		RevalidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lessonbot_revalidations_total",
				Help: "Total number of site revalidation calls by HTTP status class",
			},
			[]string{"status"}, // status: 2xx, 4xx, 5xx
		),

		JobDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lessonbot_jobs_duration_seconds",
				Help:    "Background job duration in seconds",
				Buckets: []float64{0.01, 0.1, 1, 5, 30, 120, 600},
			},
			[]string{"job"}, // job: limiter_cleanup, dedup_cleanup, snapshot
		),
	}
}

// RecordWebhook records a processed webhook message
func (m *Metrics) RecordWebhook(event, status string, duration float64) {
	m.WebhookRequestsTotal.WithLabelValues(event, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(event).Observe(duration)
}

// RecordCommand records a routed command
func (m *Metrics) RecordCommand(command, status string) {
	m.CommandsTotal.WithLabelValues(command, status).Inc()
}

// RecordCollaboratorError records a failed call to storage, messaging or the site
func (m *Metrics) RecordCollaboratorError(module, operation string) {
	m.CollaboratorErrorsTotal.WithLabelValues(module, operation).Inc()
}

// RecordRateLimiterDrop records a message dropped by the rate limiter
func (m *Metrics) RecordRateLimiterDrop() {
	m.RateLimiterDropped.Inc()
}

// SetRateLimiterSenders updates the tracked sender gauge
func (m *Metrics) SetRateLimiterSenders(n int) {
	m.RateLimiterSenders.Set(float64(n))
}

// RecordRevalidation records one revalidation result by status class
func (m *Metrics) RecordRevalidation(status int) {
	m.RevalidationsTotal.WithLabelValues(StatusClass(status)).Inc()
}

// RecordJob records a background job run
func (m *Metrics) RecordJob(job string, duration float64) {
	m.JobDurationSeconds.WithLabelValues(job).Observe(duration)
}

// StatusClass maps an HTTP status to "2xx", "4xx" etc.
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}
