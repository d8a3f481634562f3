// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	senderKey    contextKey = "ctxutil.sender"
	messageIDKey contextKey = "ctxutil.messageID"
	requestIDKey contextKey = "ctxutil.requestID"
)

// WithSender adds the WhatsApp sender (phone number / wa_id) to the context.
// The sender is the key for rate limiting and chat state.
func WithSender(ctx context.Context, sender string) context.Context {
	return context.WithValue(ctx, senderKey, sender)
}

// GetSender retrieves the sender from the context.
// Returns the sender if found, empty string otherwise.
func GetSender(ctx context.Context) string {
	if v := ctx.Value(senderKey); v != nil {
		if sender, ok := v.(string); ok && sender != "" {
			return sender
		}
	}
	return ""
}

// MustGetSender retrieves the sender from the context.
// Panics if the sender is not found.
func MustGetSender(ctx context.Context) string {
	sender, ok := ctx.Value(senderKey).(string)
	if !ok || sender == "" {
		panic("ctxutil: sender not found")
	}
	return sender
}

// WithMessageID adds the inbound WhatsApp message ID to the context.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, messageIDKey, messageID)
}

// GetMessageID retrieves the message ID from the context.
func GetMessageID(ctx context.Context) string {
	if v := ctx.Value(messageIDKey); v != nil {
		if messageID, ok := v.(string); ok && messageID != "" {
			return messageID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context for tracing.
// Request ID is taken from the inbound webhook request headers for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// PreserveTracing creates a detached context that preserves tracing values.
// The new context is independent of the parent's cancellation and deadlines.
//
// Use for async operations that must outlive the parent context, such as
// webhook processing that continues after the HTTP response is sent.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if sender := GetSender(ctx); sender != "" {
		newCtx = WithSender(newCtx, sender)
	}
	if messageID := GetMessageID(ctx); messageID != "" {
		newCtx = WithMessageID(newCtx, messageID)
	}
	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}

	return newCtx
}
