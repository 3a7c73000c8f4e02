// Package source is the HTTP client for the three analysis endpoints.
package source

import "github.com/webpulse/webpulse/internal/model"

// Endpoint paths relative to the sources base URL.
const (
	PathInsight  = "/analyze"
	PathAudit    = "/lighthouse"
	PathMetaTags = "/analyze-meta-tags"
)

// Request is the body sent to every endpoint.
type Request struct {
	URL string `json:"url"`
}

// InsightResponse is the /analyze payload.
type InsightResponse struct {
	Metrics  map[string]any `json:"metrics"`
	Insight  string         `json:"insight"`
	Insights string         `json:"insights,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// AuditResponse is the /lighthouse payload. Every metric is nullable.
type AuditResponse struct {
	Performance     *float64               `json:"performance"`
	SEO             *float64               `json:"seo"`
	Accessibility   *float64               `json:"accessibility"`
	BestPractices   *float64               `json:"bestPractices"`
	FCP             *float64               `json:"fcp"`
	LCP             *float64               `json:"lcp"`
	CLS             *float64               `json:"cls"`
	SpeedIndex      *float64               `json:"speedIndex"`
	TBT             *float64               `json:"tbt"`
	Recommendations []model.Recommendation `json:"recommendations,omitempty"`
	AIInsights      []string               `json:"aiInsights,omitempty"`
}

// Raw returns the nullable metric value for key.
func (r *AuditResponse) Raw(key model.MetricKey) *float64 {
	switch key {
	case model.MetricPerformance:
		return r.Performance
	case model.MetricSEO:
		return r.SEO
	case model.MetricAccessibility:
		return r.Accessibility
	case model.MetricBestPractices:
		return r.BestPractices
	case model.MetricFCP:
		return r.FCP
	case model.MetricLCP:
		return r.LCP
	case model.MetricCLS:
		return r.CLS
	case model.MetricSpeedIndex:
		return r.SpeedIndex
	case model.MetricTBT:
		return r.TBT
	}
	return nil
}

// MetaTagsResponse is the /analyze-meta-tags payload.
type MetaTagsResponse struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    string   `json:"keywords"`
	KeyPhrases  []string `json:"key_phrases"`
}

// ErrorResponse is the body of a domain failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
