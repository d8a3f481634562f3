// Package revalidate triggers on-demand revalidation of the lesson site.
package revalidate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/garyellow/lessonbot-go/internal/buildinfo"
	"github.com/garyellow/lessonbot-go/internal/config"
	"github.com/garyellow/lessonbot-go/internal/metrics"
)

// Result is the outcome for one path. Body is the response JSON, or the
// response text encoded as a JSON string.
type Result struct {
	Path   string          `json:"path"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// OK reports whether the site accepted the revalidation.
func (r Result) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client posts to the site's revalidation endpoint.
type Client struct {
	http    *resty.Client
	url     string
	secret  string
	metrics *metrics.Metrics
}

// NewClient creates a client for endpoint. m may be nil.
func NewClient(endpoint, secret string, m *metrics.Metrics) *Client {
	return &Client{
		http:    resty.New().SetHeader("User-Agent", buildinfo.Release()),
		url:     endpoint,
		secret:  secret,
		metrics: m,
	}
}

// Trigger sends one POST ?secret=&path= per path, in order. A transport
// failure is reported as status 500 with {"error": ...}; it never aborts
// the remaining paths.
func (c *Client) Trigger(ctx context.Context, paths []string) []Result {
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		result := c.trigger(ctx, path)
		if c.metrics != nil {
			c.metrics.RecordRevalidation(result.Status)
		}
		results = append(results, result)
	}
	return results
}

func (c *Client) trigger(ctx context.Context, path string) Result {
	ctx, cancel := context.WithTimeout(ctx, config.RevalidateRequest)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("secret", c.secret).
		SetQueryParam("path", path).
		Post(c.url)
	if err != nil {
		slog.WarnContext(ctx, "Revalidation request failed", "path", path, "error", err)
		body, _ := json.Marshal(map[string]string{"error": err.Error()})
		return Result{Path: path, Status: http.StatusInternalServerError, Body: body}
	}

	if resp.IsError() {
		slog.WarnContext(ctx, "Revalidation rejected", "path", path, "status", resp.StatusCode())
	}
	return Result{Path: path, Status: resp.StatusCode(), Body: responseBody(resp.Body())}
}

func responseBody(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`null`)
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	encoded, _ := json.Marshal(string(raw))
	return encoded
}
