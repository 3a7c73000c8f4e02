package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/webpulse/webpulse/internal/metrics"
	"github.com/webpulse/webpulse/internal/model"
)

const (
	// DialTimeout is the connection timeout.
	DialTimeout = 5 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 5 * time.Second
	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes = 5 << 20

	userAgent = "WebPulse/1.0"
)

// NewHTTPClient creates an HTTP client for the analysis sources.
// Per-call deadlines come from the caller's context. Requests are traced
// with OpenTelemetry and redirects are not followed.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: TLSHandshakeTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Client calls the three analysis endpoints of one backend.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries int
	metrics    metrics.Recorder
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithMaxRetries sets how many times a transport failure is retried.
func WithMaxRetries(n int) Option {
	return func(cl *Client) {
		if n >= 0 {
			cl.maxRetries = n
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(cl *Client) {
		cl.metrics = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       NewHTTPClient(),
		maxRetries: DefaultMaxRetries,
		metrics:    metrics.NewNoop(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "source_client")
	return c
}

// Insight calls /analyze.
func (c *Client) Insight(ctx context.Context, url string) (*InsightResponse, error) {
	var out InsightResponse
	if err := c.call(ctx, model.SourceInsight, PathInsight, url, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Audit calls /lighthouse.
func (c *Client) Audit(ctx context.Context, url string) (*AuditResponse, error) {
	var out AuditResponse
	if err := c.call(ctx, model.SourceAudit, PathAudit, url, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MetaTags calls /analyze-meta-tags.
func (c *Client) MetaTags(ctx context.Context, url string) (*MetaTagsResponse, error) {
	var out MetaTagsResponse
	if err := c.call(ctx, model.SourceMetaTags, PathMetaTags, url, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping checks that the backend answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sources backend unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) call(ctx context.Context, name model.SourceName, path, url string, out any) error {
	payload, err := json.Marshal(Request{URL: url})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	start := time.Now()
	defer func() {
		c.metrics.ObserveSourceDuration(string(name), time.Since(start))
	}()

	for retries := 0; ; retries++ {
		serr := c.attempt(ctx, name, path, payload, out)
		if serr == nil {
			return nil
		}
		if !c.shouldRetry(ctx, serr, retries) {
			c.metrics.IncSourceFailure(string(name), string(serr.Kind))
			return serr
		}

		delay := NextRetryDelay(retries)
		c.logger.Debug("retrying source call",
			"source", name,
			"attempt", retries+1,
			"delay", delay,
			"error", serr.Message,
		)
		c.metrics.IncSourceRetry(string(name))

		if err := sleep(ctx, delay); err != nil {
			c.metrics.IncSourceFailure(string(name), string(serr.Kind))
			return serr
		}
	}
}

func (c *Client) shouldRetry(ctx context.Context, serr *Error, retries int) bool {
	if serr.Kind != model.FailureTransport || ctx.Err() != nil {
		return false
	}
	if serr.StatusCode != 0 && !retryableStatus(serr.StatusCode) {
		return false
	}
	return !IsExhausted(retries, c.maxRetries)
}

// attempt performs one request and classifies its outcome.
func (c *Client) attempt(ctx context.Context, name model.SourceName, path string, payload []byte, out any) *Error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return transportError(name, 0, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return transportError(name, 0, "request timed out", err)
		}
		return transportError(name, 0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return transportError(name, resp.StatusCode, "read response", err)
	}

	if msg, ok := domainMessage(body); ok {
		return domainError(name, resp.StatusCode, msg)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return transportError(name, resp.StatusCode,
			fmt.Sprintf("request failed with status %d", resp.StatusCode), nil)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return parseError(name, resp.StatusCode, errors.New("response is not a JSON object"))
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return parseError(name, resp.StatusCode, err)
	}

	return nil
}

// domainMessage returns the top-level error field of a JSON object body.
func domainMessage(body []byte) (string, bool) {
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", false
	}

	raw := bytes.TrimSpace(probe.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		if msg == "" {
			return "", false
		}
		return msg, true
	}
	return string(raw), true
}
