package model

import "time"

// SourceName identifies one of the three analysis sources.
type SourceName string

const (
	SourceInsight  SourceName = "insight"
	SourceAudit    SourceName = "audit"
	SourceMetaTags SourceName = "meta_tags"
)

// Sources lists the analysis sources in reporting order.
var Sources = []SourceName{SourceInsight, SourceAudit, SourceMetaTags}

// FailureKind classifies why a source contributed no data.
type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureDomain    FailureKind = "domain"
	FailureParse     FailureKind = "parse"
)

// SourceFailure records a single source's failure inside a report.
type SourceFailure struct {
	Source     SourceName  `json:"source"`
	Kind       FailureKind `json:"kind"`
	StatusCode int         `json:"status_code,omitempty"`
	Message    string      `json:"message"`
}

// Recommendation is a remediation suggestion from the audit source.
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MetaTags holds the page's meta-tag analysis.
type MetaTags struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    string   `json:"keywords"`
	KeyPhrases  []string `json:"key_phrases"`
}

// MetricEntry is a classified and formatted audit metric.
type MetricEntry struct {
	Key     MetricKey    `json:"key"`
	Label   string       `json:"label"`
	Value   MetricValue  `json:"value"`
	Display string       `json:"display"`
	Tier    SeverityTier `json:"tier"`
	Colour  string       `json:"colour"`
}

// AnalysisReport is the aggregated result of one submission.
// A report is built once and never mutated afterwards.
type AnalysisReport struct {
	ID    string          `json:"id"` // ULID
	URL   string          `json:"url"`
	State SubmissionState `json:"state"`

	// Narrative is the combined text shown in the insights panel.
	Narrative    string         `json:"narrative"`
	InsightParts []string       `json:"insight_parts"`
	SiteMetrics  map[string]any `json:"site_metrics"`

	Metrics         []MetricEntry    `json:"metrics"`
	Recommendations []Recommendation `json:"recommendations"`
	MetaTags        MetaTags         `json:"meta_tags"`

	Failures     []SourceFailure `json:"failures"`
	PrimaryError string          `json:"primary_error,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Metric returns the entry for key, if present.
func (r *AnalysisReport) Metric(key MetricKey) (MetricEntry, bool) {
	for _, entry := range r.Metrics {
		if entry.Key == key {
			return entry, true
		}
	}
	return MetricEntry{}, false
}

// Failed reports whether the given source failed for this report.
func (r *AnalysisReport) Failed(source SourceName) bool {
	for _, f := range r.Failures {
		if f.Source == source {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand reports out by value.
func (r *AnalysisReport) Clone() *AnalysisReport {
	if r == nil {
		return nil
	}

	out := *r
	out.InsightParts = append([]string{}, r.InsightParts...)
	out.Metrics = append([]MetricEntry{}, r.Metrics...)
	out.Recommendations = append([]Recommendation{}, r.Recommendations...)
	out.Failures = append([]SourceFailure{}, r.Failures...)
	out.MetaTags.KeyPhrases = append([]string{}, r.MetaTags.KeyPhrases...)

	out.SiteMetrics = make(map[string]any, len(r.SiteMetrics))
	for k, v := range r.SiteMetrics {
		out.SiteMetrics[k] = v
	}

	return &out
}
