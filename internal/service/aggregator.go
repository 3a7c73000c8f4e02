// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/webpulse/webpulse/internal/metrics"
	"github.com/webpulse/webpulse/internal/model"
	"github.com/webpulse/webpulse/internal/source"
)

// DefaultSourceTimeout bounds each source call when none is configured.
const DefaultSourceTimeout = 20 * time.Second

// ErrAllSourcesFailed is matched by every AggregationError.
var ErrAllSourcesFailed = errors.New("all analysis sources failed")

// AggregationError is returned when no source contributed data.
type AggregationError struct {
	URL      string
	Failures []model.SourceFailure
}

func (e *AggregationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Source, f.Message))
	}
	return fmt.Sprintf("%s: %s", ErrAllSourcesFailed, strings.Join(parts, "; "))
}

// Is matches ErrAllSourcesFailed.
func (e *AggregationError) Is(target error) bool {
	return target == ErrAllSourcesFailed
}

// PrimaryError returns the insight source's failure message.
func (e *AggregationError) PrimaryError() string {
	for _, f := range e.Failures {
		if f.Source == model.SourceInsight {
			return f.Message
		}
	}
	return ""
}

// SourceClient calls the three analysis endpoints.
type SourceClient interface {
	Insight(ctx context.Context, url string) (*source.InsightResponse, error)
	Audit(ctx context.Context, url string) (*source.AuditResponse, error)
	MetaTags(ctx context.Context, url string) (*source.MetaTagsResponse, error)
}

// Aggregator validates submissions, fans out to the analysis sources and
// assembles their outputs into a report.
type Aggregator struct {
	sources SourceClient
	timeout time.Duration
	metrics metrics.Recorder
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewAggregator creates a new Aggregator.
func NewAggregator(sources SourceClient, timeout time.Duration, recorder metrics.Recorder, logger *slog.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		sources: sources,
		timeout: timeout,
		metrics: recorder,
		logger:  logger.With("component", "aggregator"),
		tracer:  otel.Tracer("github.com/webpulse/webpulse/internal/service"),
		now:     time.Now,
	}
}

// Submit analyses rawURL.
//
// An invalid URL returns a *model.ValidationError without touching the
// network. When every source fails the error is an *AggregationError.
// Otherwise the report is returned in the partial or complete state, with
// each failed source listed in Failures.
func (a *Aggregator) Submit(ctx context.Context, rawURL string) (*model.AnalysisReport, error) {
	ctx, span := a.tracer.Start(ctx, "aggregator.Submit")
	defer span.End()

	start := a.now()
	sm := model.NewStateMachine()

	if err := sm.Advance(model.StateValidating); err != nil {
		return nil, err
	}

	req, err := model.NewAnalysisRequest(rawURL)
	if err != nil {
		if advErr := sm.Advance(model.StateRejected); advErr != nil {
			return nil, advErr
		}
		a.metrics.IncSubmission(string(model.StateRejected))
		span.SetStatus(codes.Error, "rejected")
		return nil, err
	}
	span.SetAttributes(attribute.String("webpulse.url", req.URL))

	if err := sm.Advance(model.StateFetching); err != nil {
		return nil, err
	}

	raw := a.fetch(ctx, req.URL)
	raw.ID = ulid.Make().String()
	raw.SubmittedAt = start
	raw.CompletedAt = a.now()

	final := model.Settle(raw.succeeded(), len(model.Sources))
	if err := sm.Advance(final); err != nil {
		return nil, err
	}

	a.metrics.IncSubmission(string(final))
	a.metrics.ObserveSubmissionDuration(raw.CompletedAt.Sub(start))
	span.SetAttributes(attribute.String("webpulse.state", string(final)))

	if final == model.StateFailed {
		span.SetStatus(codes.Error, ErrAllSourcesFailed.Error())
		a.logger.Warn("all sources failed", "url", req.URL)
		return nil, &AggregationError{URL: req.URL, Failures: orderedFailures(raw.Failures)}
	}

	report := Assemble(raw)
	a.logger.Info("analysis assembled",
		"id", report.ID,
		"url", report.URL,
		"state", report.State,
		"failed_sources", len(report.Failures),
		"duration_ms", raw.CompletedAt.Sub(start).Milliseconds(),
	)
	return &report, nil
}

// fetch calls the three sources concurrently and waits for all of them.
// Each call writes only its own result slot.
func (a *Aggregator) fetch(ctx context.Context, url string) RawOutputs {
	var (
		wg sync.WaitGroup

		insight  *source.InsightResponse
		audit    *source.AuditResponse
		metaTags *source.MetaTagsResponse

		errs [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		insight, errs[0] = call(ctx, a, model.SourceInsight, url, a.sources.Insight)
	}()
	go func() {
		defer wg.Done()
		audit, errs[1] = call(ctx, a, model.SourceAudit, url, a.sources.Audit)
	}()
	go func() {
		defer wg.Done()
		metaTags, errs[2] = call(ctx, a, model.SourceMetaTags, url, a.sources.MetaTags)
	}()
	wg.Wait()

	raw := RawOutputs{
		URL:      url,
		Insight:  insight,
		Audit:    audit,
		MetaTags: metaTags,
	}
	for i, name := range model.Sources {
		if errs[i] == nil {
			continue
		}
		f := source.AsFailure(name, errs[i])
		raw.Failures = append(raw.Failures, f)
		a.logger.Warn("source failed",
			"source", name,
			"kind", f.Kind,
			"status", f.StatusCode,
			"error", f.Message,
		)
	}

	return raw
}

// call runs one source request under its own timeout and span.
func call[T any](ctx context.Context, a *Aggregator, name model.SourceName, url string, fn func(context.Context, string) (*T, error)) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ctx, span := a.tracer.Start(ctx, "source."+string(name))
	defer span.End()

	resp, err := fn(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp == nil {
		return nil, &source.Error{Source: name, Kind: model.FailureParse, Message: "empty response"}
	}
	return resp, nil
}
