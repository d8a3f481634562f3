// Package webhook provides the WhatsApp Cloud API webhook endpoints:
// subscription verification and signed message delivery.
package webhook

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/garyellow/lessonbot-go/internal/config"
	"github.com/garyellow/lessonbot-go/internal/ctxutil"
	"github.com/garyellow/lessonbot-go/internal/logger"
	"github.com/garyellow/lessonbot-go/internal/metrics"
	"github.com/garyellow/lessonbot-go/internal/whatsapp"
)

// SignatureHeader carries the sha256 HMAC of the request body.
const SignatureHeader = "X-Hub-Signature-256"

// maxBodyBytes caps webhook payloads. Cloud API deliveries are a few KB.
const maxBodyBytes = 1 << 20

// Verifier checks the webhook signature.
type Verifier interface {
	CheckSignature(header string, body []byte) error
}

// MessageHandler routes one inbound message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg whatsapp.Message)
}

// Deduper records message ids and reports whether an id is new.
type Deduper interface {
	MarkProcessed(ctx context.Context, messageID, sender string) (bool, error)
}

// Handler handles WhatsApp webhook requests
type Handler struct {
	verifier    Verifier
	router      MessageHandler
	dedup       Deduper
	verifyToken string
	metrics     *metrics.Metrics
	logger      *logger.Logger
	sem         *semaphore.Weighted
	wg          sync.WaitGroup // Async delivery processing

	processingTimeout time.Duration
	maxConcurrency    int64
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	Verifier    Verifier
	Router      MessageHandler
	VerifyToken string
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(cfg HandlerConfig, opts ...HandlerOption) *Handler {
	h := &Handler{
		verifier:          cfg.Verifier,
		router:            cfg.Router,
		verifyToken:       cfg.VerifyToken,
		metrics:           cfg.Metrics,
		logger:            cfg.Logger.WithModule("webhook"),
		processingTimeout: config.WebhookProcessing,
		maxConcurrency:    16,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.sem = semaphore.NewWeighted(h.maxConcurrency)
	return h
}

// Verify answers the subscription handshake.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && h.verifyToken != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) == 1 {
		h.logger.Info("Webhook subscription verified")
		c.String(http.StatusOK, challenge)
		return
	}

	h.logger.WithField("mode", mode).Warn("Webhook verification rejected")
	c.Status(http.StatusForbidden)
}

// Handle is the Gin handler for message deliveries.
// Deliveries are acknowledged before the messages are routed.
func (h *Handler) Handle(c *gin.Context) {
	// 1. Read and verify
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read webhook body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if err := h.verifier.CheckSignature(c.GetHeader(SignatureHeader), body); err != nil {
		h.logger.WithError(err).Warn("Rejected webhook delivery")
		h.metrics.RecordWebhook("delivery", "forbidden", 0)
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	messages, err := whatsapp.ExtractMessages(body)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to parse webhook payload")
		h.metrics.RecordWebhook("delivery", "invalid", 0)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	// 2. Acknowledge immediately
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
	if len(messages) == 0 {
		return
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx := ctxutil.PreserveTracing(ctxutil.WithRequestID(c.Request.Context(), requestID))

	// 3. Route asynchronously, in delivery order
	h.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.WithField("panic", r).Error("Panic in async webhook processing")
			}
		}()

		if err := h.sem.Acquire(ctx, 1); err != nil {
			h.logger.WithError(err).Error("Failed to acquire processing slot")
			return
		}
		defer h.sem.Release(1)

		for _, msg := range messages {
			h.process(ctx, msg)
		}
	})
}

func (h *Handler) process(parent context.Context, msg whatsapp.Message) {
	start := time.Now()
	event := string(msg.Kind)

	ctx, cancel := context.WithTimeout(parent, h.processingTimeout)
	defer cancel()

	log := h.logger
	if id, ok := ctxutil.GetRequestID(ctx); ok {
		log = log.WithRequestID(id)
	}

	if h.dedup != nil && msg.ID != "" {
		fresh, err := h.dedup.MarkProcessed(ctx, msg.ID, msg.Sender)
		switch {
		case err != nil:
			log.WithError(err).Warn("Dedup check failed; processing anyway")
		case !fresh:
			log.WithField("message_id", msg.ID).Debug("Skipping redelivered message")
			h.metrics.RecordWebhook(event, "duplicate", time.Since(start).Seconds())
			return
		}
	}

	h.router.HandleMessage(ctx, msg)

	status := "success"
	if ctx.Err() != nil {
		status = "timeout"
	}
	h.metrics.RecordWebhook(event, status, time.Since(start).Seconds())
	log.WithField("event_type", event).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("Message processed")
}

// Shutdown waits for all async processing to complete.
// It returns an error if the context is canceled before completion.
func (h *Handler) Shutdown(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		h.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
