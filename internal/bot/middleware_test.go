package bot

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/garyellow/lessonbot-go/internal/command"
	"github.com/garyellow/lessonbot-go/internal/logger"
	"github.com/garyellow/lessonbot-go/internal/metrics"
)

func okHandler(_ context.Context, _ Request) Response {
	return Response{Reply: "done", Status: StatusOK}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req Request) Response {
				order = append(order, name+">")
				resp := next(ctx, req)
				order = append(order, "<"+name)
				return resp
			}
		}
	}

	h := Chain(okHandler, mark("a"), mark("b"))
	h(context.Background(), Request{Command: command.Help{}})

	want := []string{"a>", "b>", "<b", "<a"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestRequestName(t *testing.T) {
	t.Parallel()

	if got := (Request{}).Name(); got != "media" {
		t.Errorf("Name() = %q, want media", got)
	}
	if got := (Request{Command: command.Publish{}}).Name(); got != command.NamePublish {
		t.Errorf("Name() = %q, want %q", got, command.NamePublish)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := LoggingMiddleware(logger.NewWithWriter("debug", &buf))(okHandler)

	resp := h(context.Background(), Request{Command: command.Help{}})
	if resp.Reply != "done" {
		t.Errorf("Reply = %q, want done", resp.Reply)
	}
	out := buf.String()
	if !strings.Contains(out, "Handler completed") || !strings.Contains(out, `"command":"help"`) {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	h := MetricsMiddleware(m)(okHandler)

	h(context.Background(), Request{Command: command.Cancel{}})
	h(context.Background(), Request{Command: command.Cancel{}})

	if got := testutil.ToFloat64(m.CommandsTotal.WithLabelValues(command.NameCancel, StatusOK)); got != 2 {
		t.Errorf("commands_total = %v, want 2", got)
	}

	// nil metrics is allowed
	if resp := MetricsMiddleware(nil)(okHandler)(context.Background(), Request{}); resp.Status != StatusOK {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	panicking := func(context.Context, Request) Response { panic("test panic") }
	h := RecoveryMiddleware(logger.NewWithWriter("info", &buf))(panicking)

	resp := h(context.Background(), Request{Command: command.Help{}})
	if resp.Reply != ReplyGenericError || resp.Status != StatusError {
		t.Errorf("resp = %+v, want generic error", resp)
	}
	if !strings.Contains(buf.String(), "Handler panicked") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}
