// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrSlugTaken indicates another lesson already published under the slug.
	ErrSlugTaken = errors.New("slug already taken")

	// ErrInvalidSignature indicates a webhook payload failed HMAC verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMediaUnavailable indicates the messaging platform could not serve a media object.
	ErrMediaUnavailable = errors.New("media unavailable")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidInput indicates a caller provided invalid input.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Is reports ValidationError as a kind of ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// HTTPError represents a non-2xx response from an outbound HTTP collaborator.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http error (url=%s, status=%d): %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("http error (url=%s, status=%d)", e.URL, e.StatusCode)
}

// NewHTTPError creates a new HTTP error. Long bodies are truncated.
func NewHTTPError(url string, statusCode int, body string) *HTTPError {
	const maxBody = 512
	if len(body) > maxBody {
		body = body[:maxBody] + "..."
	}
	return &HTTPError{
		URL:        url,
		StatusCode: statusCode,
		Body:       body,
	}
}
