// Package sources serves the three analysis endpoints consumed by the
// aggregator: page insight, Lighthouse audit and meta-tag extraction.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/webpulse/webpulse/internal/model"
	"github.com/webpulse/webpulse/internal/source"
)

// maxRequestBytes bounds the JSON request body.
const maxRequestBytes = 16 << 10

// NewFetchClient creates the HTTP client used for pages and PageSpeed.
func NewFetchClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}

// Auditor runs a Lighthouse audit.
type Auditor interface {
	Audit(ctx context.Context, pageURL string) (*source.AuditResponse, error)
}

// Fetcher downloads a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
}

// Handler serves the analysis endpoints.
type Handler struct {
	auditor   Auditor
	fetcher   Fetcher
	insighter *Insighter
	logger    *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(auditor Auditor, fetcher Fetcher, insighter *Insighter, logger *slog.Logger) *Handler {
	return &Handler{
		auditor:   auditor,
		fetcher:   fetcher,
		insighter: insighter,
		logger:    logger.With("component", "sources"),
	}
}

// Routes mounts the endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post(source.PathInsight, h.Analyze)
	r.Post(source.PathAudit, h.Lighthouse)
	r.Post(source.PathMetaTags, h.MetaTags)
	r.Get("/healthz", h.Healthz)
}

// Analyze handles POST /analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	pageURL, ok := h.readURL(w, r)
	if !ok {
		return
	}

	page, err := h.fetcher.Fetch(r.Context(), pageURL)
	if err != nil {
		h.logger.Warn("page fetch failed", "url", pageURL, "error", err)
		writeJSON(w, http.StatusBadGateway, source.ErrorResponse{Error: "Failed to fetch page", Details: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, h.insighter.Analyze(r.Context(), page))
}

// Lighthouse handles POST /lighthouse.
func (h *Handler) Lighthouse(w http.ResponseWriter, r *http.Request) {
	pageURL, ok := h.readURL(w, r)
	if !ok {
		return
	}

	audit, err := h.auditor.Audit(r.Context(), pageURL)
	if err != nil {
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			writeJSON(w, upErr.StatusCode, source.ErrorResponse{Error: upErr.Error(), Details: upErr.Body})
			return
		}
		h.logger.Warn("lighthouse audit failed", "url", pageURL, "error", err)
		writeJSON(w, http.StatusBadGateway, source.ErrorResponse{Error: "Lighthouse API request failed", Details: err.Error()})
		return
	}

	audit.AIInsights = h.insighter.AuditInsights(r.Context(), pageURL, audit)
	writeJSON(w, http.StatusOK, audit)
}

// MetaTags handles POST /analyze-meta-tags.
func (h *Handler) MetaTags(w http.ResponseWriter, r *http.Request) {
	pageURL, ok := h.readURL(w, r)
	if !ok {
		return
	}

	page, err := h.fetcher.Fetch(r.Context(), pageURL)
	if err != nil {
		h.logger.Warn("page fetch failed", "url", pageURL, "error", err)
		writeJSON(w, http.StatusBadGateway, source.ErrorResponse{Error: "Failed to fetch page", Details: err.Error()})
		return
	}

	tags, err := ExtractMetaTags(page.Body)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, source.ErrorResponse{Error: "Failed to parse page", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readURL decodes {"url": ...} and normalizes it. It writes the 400
// response itself when the URL is missing or unusable.
func (h *Handler) readURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req source.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, source.ErrorResponse{Error: "No URL provided"})
		return "", false
	}

	valid, err := model.NewAnalysisRequest(req.URL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, source.ErrorResponse{Error: err.Error()})
		return "", false
	}
	return valid.URL, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}
