package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	labelState  = "state"
	labelSource = "source"
	labelKind   = "kind"
)

// PrometheusRecorder exposes Recorder events as Prometheus collectors.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	submissionsTotal   *prometheus.CounterVec
	submissionDuration prometheus.Histogram
	staleSubmissions   prometheus.Counter
	sourceDuration     *prometheus.HistogramVec
	sourceFailures     *prometheus.CounterVec
	sourceRetries      *prometheus.CounterVec
	rateLimited        prometheus.Counter
}

// NewPrometheus registers the application collectors on a private registry,
// together with the Go runtime and process collectors.
func NewPrometheus(serviceName string) *PrometheusRecorder {
	constLabels := prometheus.Labels{"service": serviceName}

	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "webpulse_submissions_total",
				Help:        "Total number of analysis submissions by terminal state",
				ConstLabels: constLabels,
			},
			[]string{labelState},
		),
		submissionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "webpulse_submission_duration_seconds",
				Help:        "Time from submission to assembled report",
				Buckets:     []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
				ConstLabels: constLabels,
			},
		),
		staleSubmissions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "webpulse_stale_submissions_total",
				Help:        "Submissions that resolved after a newer one started",
				ConstLabels: constLabels,
			},
		),
		sourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "webpulse_source_duration_seconds",
				Help:        "Analysis source call duration in seconds",
				Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
				ConstLabels: constLabels,
			},
			[]string{labelSource},
		),
		sourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "webpulse_source_failures_total",
				Help:        "Failed analysis source calls by failure kind",
				ConstLabels: constLabels,
			},
			[]string{labelSource, labelKind},
		),
		sourceRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "webpulse_source_retries_total",
				Help:        "Retried analysis source calls",
				ConstLabels: constLabels,
			},
			[]string{labelSource},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "webpulse_rate_limited_total",
				Help:        "Requests rejected by the rate limiter",
				ConstLabels: constLabels,
			},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.submissionsTotal,
		r.submissionDuration,
		r.staleSubmissions,
		r.sourceDuration,
		r.sourceFailures,
		r.sourceRetries,
		r.rateLimited,
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// IncSubmission counts a submission by terminal state.
func (r *PrometheusRecorder) IncSubmission(state string) {
	r.submissionsTotal.WithLabelValues(state).Inc()
}

// ObserveSubmissionDuration records a submission's duration.
func (r *PrometheusRecorder) ObserveSubmissionDuration(duration time.Duration) {
	r.submissionDuration.Observe(duration.Seconds())
}

// IncStaleSubmission counts a submission superseded before it resolved.
func (r *PrometheusRecorder) IncStaleSubmission() {
	r.staleSubmissions.Inc()
}

// ObserveSourceDuration records a source call's duration.
func (r *PrometheusRecorder) ObserveSourceDuration(source string, duration time.Duration) {
	r.sourceDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// IncSourceFailure counts a failed source call.
func (r *PrometheusRecorder) IncSourceFailure(source, kind string) {
	r.sourceFailures.WithLabelValues(source, kind).Inc()
}

// IncSourceRetry counts a retried source call.
func (r *PrometheusRecorder) IncSourceRetry(source string) {
	r.sourceRetries.WithLabelValues(source).Inc()
}

// IncRateLimited counts a rejected request.
func (r *PrometheusRecorder) IncRateLimited() {
	r.rateLimited.Inc()
}
