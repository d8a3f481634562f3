package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/garyellow/lessonbot-go/internal/command"
	"github.com/garyellow/lessonbot-go/internal/logger"
	"github.com/garyellow/lessonbot-go/internal/metrics"
	"github.com/garyellow/lessonbot-go/internal/sentry"
	"github.com/garyellow/lessonbot-go/internal/session"
	"github.com/garyellow/lessonbot-go/internal/whatsapp"
)

// Outcome statuses recorded in lessonbot_commands_total.
const (
	StatusOK       = "ok"
	StatusRejected = "rejected" // Precondition not met, guidance sent
	StatusInvalid  = "invalid"  // Unparseable command
	StatusError    = "error"    // A collaborator failed
)

// nameMedia labels inbound media messages in logs and metrics.
const nameMedia = "media"

// Request is one authorized, admitted inbound message with its session.
type Request struct {
	State   *session.State
	Message whatsapp.Message
	Command command.Command // nil for media messages
}

// Name returns the command name, or "media".
func (r Request) Name() string {
	if r.Command == nil {
		return nameMedia
	}
	return r.Command.Name()
}

// Response is the single reply for a Request.
type Response struct {
	Reply  string
	Status string
}

// HandlerFunc handles one Request.
type HandlerFunc func(ctx context.Context, req Request) Response

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain applies middlewares so the first one is outermost.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// LoggingMiddleware logs handler execution with timing and outcome.
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) Response {
			start := time.Now()
			log.DebugContext(ctx, "Handler started", "command", req.Name())

			resp := next(ctx, req)

			log.DebugContext(ctx, "Handler completed",
				"command", req.Name(),
				"status", resp.Status,
				"duration_ms", time.Since(start).Milliseconds())
			return resp
		}
	}
}

// MetricsMiddleware counts handled commands by outcome.
func MetricsMiddleware(m *metrics.Metrics) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) Response {
			resp := next(ctx, req)
			if m != nil {
				m.RecordCommand(req.Name(), resp.Status)
			}
			return resp
		}
	}
}

// RecoveryMiddleware turns a panic into the generic error reply.
func RecoveryMiddleware(log *logger.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (resp Response) {
			defer func() {
				if r := recover(); r != nil {
					log.ErrorContext(ctx, "Handler panicked",
						"command", req.Name(),
						"panic", r,
						"stack", string(debug.Stack()))
					sentry.CaptureError(ctx, "bot", req.Name(), fmt.Errorf("panic: %v", r))
					resp = Response{Reply: ReplyGenericError, Status: StatusError}
				}
			}()
			return next(ctx, req)
		}
	}
}
