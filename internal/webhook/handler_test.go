package webhook

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/lessonbot-go/internal/logger"
	"github.com/garyellow/lessonbot-go/internal/metrics"
	"github.com/garyellow/lessonbot-go/internal/whatsapp"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "app-secret"

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "changes": [{
      "value": {
        "contacts": [{"wa_id": "15551234567"}],
        "messages": [
          {"from": "15551234567", "id": "wamid.1", "type": "text", "text": {"body": "HELP"}},
          {"from": "15551234567", "id": "wamid.2", "type": "text", "text": {"body": "PUBLISH"}}
        ]
      }
    }]
  }]
}`

type recordingRouter struct {
	mu   sync.Mutex
	msgs []whatsapp.Message
}

func (r *recordingRouter) HandleMessage(_ context.Context, msg whatsapp.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingRouter) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Text)
	}
	return out
}

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *memDedup) MarkProcessed(_ context.Context, id, _ string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

type fixture struct {
	handler *Handler
	router  *recordingRouter
	metrics *metrics.Metrics
	engine  *gin.Engine
}

func newFixture(t *testing.T, opts ...HandlerOption) *fixture {
	t.Helper()
	f := &fixture{
		router:  &recordingRouter{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	verifier := whatsapp.NewClient(whatsapp.Config{Token: "token", AppSecret: testSecret, PhoneNumberID: "1"})
	f.handler = NewHandler(HandlerConfig{
		Verifier:    verifier,
		Router:      f.router,
		VerifyToken: "verify-me",
		Metrics:     f.metrics,
		Logger:      logger.NewWithWriter("debug", io.Discard),
	}, opts...)

	f.engine = gin.New()
	f.engine.GET("/webhook", f.handler.Verify)
	f.engine.POST("/webhook", f.handler.Handle)
	return f
}

func (f *fixture) post(t *testing.T, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.handler.Shutdown(ctx))
}

func TestVerify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"matching token", "?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "?hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=1", http.StatusForbidden, ""},
		{"missing params", "", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			w := httptest.NewRecorder()
			f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestHandle_Accepted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.post(t, samplePayload, whatsapp.Sign(testSecret, []byte(samplePayload)))
	f.drain(t)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"accepted"}`, w.Body.String())
	assert.Equal(t, []string{"HELP", "PUBLISH"}, f.router.texts(), "messages routed in delivery order")
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.WebhookRequestsTotal.WithLabelValues("text", "success")))
}

func TestHandle_UnsignedAccepted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	w := f.post(t, samplePayload, "")
	f.drain(t)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.router.texts(), 2)
}

func TestHandle_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		signature  func(body string) string
		wantStatus int
	}{
		{
			name:       "bad signature",
			body:       samplePayload,
			signature:  func(string) string { return "sha256=deadbeef" },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "signed with other secret",
			body:       samplePayload,
			signature:  func(b string) string { return whatsapp.Sign("other", []byte(b)) },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "invalid json",
			body:       `{"entry": [`,
			signature:  func(b string) string { return whatsapp.Sign(testSecret, []byte(b)) },
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			w := f.post(t, tt.body, tt.signature(tt.body))
			f.drain(t)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Empty(t, f.router.texts())
		})
	}
}

func TestHandle_NoMessages(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	body := `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.1","status":"read"}]}}]}]}`

	w := f.post(t, body, whatsapp.Sign(testSecret, []byte(body)))
	f.drain(t)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.router.texts())
}

func TestHandle_SkipsRedeliveries(t *testing.T) {
	t.Parallel()
	dedup := &memDedup{seen: map[string]bool{}}
	f := newFixture(t, WithDeduper(dedup))
	sig := whatsapp.Sign(testSecret, []byte(samplePayload))

	f.post(t, samplePayload, sig)
	f.drain(t)
	f.post(t, samplePayload, sig)
	f.drain(t)

	assert.Equal(t, []string{"HELP", "PUBLISH"}, f.router.texts())
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.WebhookRequestsTotal.WithLabelValues("text", "duplicate")))
}

func TestHandle_DedupFailureStillRoutes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithDeduper(&memDedup{seen: map[string]bool{}, err: errors.New("db locked")}))

	f.post(t, samplePayload, whatsapp.Sign(testSecret, []byte(samplePayload)))
	f.drain(t)

	assert.Len(t, f.router.texts(), 2)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithMaxConcurrency(0), WithProcessingTimeout(-time.Second))
	assert.Equal(t, int64(16), f.handler.maxConcurrency)

	f = newFixture(t, WithMaxConcurrency(4), WithProcessingTimeout(time.Second))
	assert.Equal(t, int64(4), f.handler.maxConcurrency)
	assert.Equal(t, time.Second, f.handler.processingTimeout)
}

func TestShutdown_ContextCanceled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	release := make(chan struct{})
	f.handler.wg.Go(func() { <-release })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.handler.Shutdown(ctx), context.Canceled)
	close(release)
}
