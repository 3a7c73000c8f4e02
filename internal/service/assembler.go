package service

import (
	"strings"
	"time"

	"github.com/webpulse/webpulse/internal/metric"
	"github.com/webpulse/webpulse/internal/model"
	"github.com/webpulse/webpulse/internal/source"
)

// RawOutputs is everything one submission collected from the sources.
// A nil response means that source failed; its reason is in Failures.
type RawOutputs struct {
	ID  string
	URL string

	Insight  *source.InsightResponse
	Audit    *source.AuditResponse
	MetaTags *source.MetaTagsResponse

	Failures []model.SourceFailure

	SubmittedAt time.Time
	CompletedAt time.Time
}

func (r RawOutputs) succeeded() int {
	n := 0
	for _, ok := range []bool{r.Insight != nil, r.Audit != nil, r.MetaTags != nil} {
		if ok {
			n++
		}
	}
	return n
}

func (r RawOutputs) failure(name model.SourceName) (model.SourceFailure, bool) {
	for _, f := range r.Failures {
		if f.Source == name {
			return f, true
		}
	}
	return model.SourceFailure{}, false
}

// Labels used in the narrative's metric sections.
var narrativeLabels = map[model.MetricKey]string{
	model.MetricPerformance:   "Performance",
	model.MetricSEO:           "SEO",
	model.MetricAccessibility: "Accessibility",
	model.MetricBestPractices: "Best Practices",
	model.MetricFCP:           "FCP (First Contentful Paint)",
	model.MetricLCP:           "LCP (Largest Contentful Paint)",
	model.MetricCLS:           "CLS (Cumulative Layout Shift)",
	model.MetricSpeedIndex:    "Speed Index",
	model.MetricTBT:           "TBT (Total Blocking Time)",
}

var (
	scoreKeys = []model.MetricKey{
		model.MetricPerformance,
		model.MetricSEO,
		model.MetricAccessibility,
		model.MetricBestPractices,
	}
	vitalKeys = []model.MetricKey{
		model.MetricFCP,
		model.MetricLCP,
		model.MetricCLS,
		model.MetricSpeedIndex,
		model.MetricTBT,
	}
)

// Assemble builds the displayable report from raw source outputs.
// It has no side effects. Missing data becomes Absent metrics, empty
// strings and empty slices, never nil.
func Assemble(raw RawOutputs) model.AnalysisReport {
	report := model.AnalysisReport{
		ID:              raw.ID,
		URL:             raw.URL,
		State:           model.Settle(raw.succeeded(), len(model.Sources)),
		InsightParts:    insightParts(raw.Insight, raw.Audit),
		SiteMetrics:     map[string]any{},
		Metrics:         metricEntries(raw.Audit),
		Recommendations: []model.Recommendation{},
		MetaTags:        metaTags(raw.MetaTags),
		Failures:        orderedFailures(raw.Failures),
		SubmittedAt:     raw.SubmittedAt,
		CompletedAt:     raw.CompletedAt,
	}

	if raw.Insight != nil {
		for k, v := range raw.Insight.Metrics {
			report.SiteMetrics[k] = v
		}
	}
	if raw.Audit != nil {
		report.Recommendations = append(report.Recommendations, raw.Audit.Recommendations...)
	}
	if f, ok := raw.failure(model.SourceInsight); ok {
		report.PrimaryError = f.Message
	}

	report.Narrative = narrative(report, raw)
	return report
}

func insightParts(insight *source.InsightResponse, audit *source.AuditResponse) []string {
	parts := []string{}
	if insight != nil {
		if insight.Insight != "" {
			parts = append(parts, insight.Insight)
		}
		if insight.Insights != "" {
			parts = append(parts, insight.Insights)
		}
	}
	if audit != nil {
		for _, s := range audit.AIInsights {
			if s != "" {
				parts = append(parts, s)
			}
		}
	}
	return parts
}

func metricEntries(audit *source.AuditResponse) []model.MetricEntry {
	entries := make([]model.MetricEntry, 0, len(model.MetricKeys))
	for _, key := range model.MetricKeys {
		value := model.Absent()
		if audit != nil {
			value = model.ValueFor(key, audit.Raw(key))
		}

		tier := metric.Classify(key, value)
		entries = append(entries, model.MetricEntry{
			Key:     key,
			Label:   key.Label(),
			Value:   value,
			Display: metric.Format(key, value),
			Tier:    tier,
			Colour:  tier.Colour(),
		})
	}
	return entries
}

func metaTags(resp *source.MetaTagsResponse) model.MetaTags {
	tags := model.MetaTags{KeyPhrases: []string{}}
	if resp == nil {
		return tags
	}

	tags.Title = resp.Title
	tags.Description = resp.Description
	tags.Keywords = resp.Keywords
	tags.KeyPhrases = append(tags.KeyPhrases, resp.KeyPhrases...)
	return tags
}

// orderedFailures returns failures in fixed source order.
func orderedFailures(in []model.SourceFailure) []model.SourceFailure {
	out := make([]model.SourceFailure, 0, len(in))
	for _, name := range model.Sources {
		for _, f := range in {
			if f.Source == name {
				out = append(out, f)
			}
		}
	}
	return out
}

// narrative renders the combined insights panel text.
// Only when neither insight nor audit data exists is the insight failure
// shown verbatim.
func narrative(report model.AnalysisReport, raw RawOutputs) string {
	if raw.Insight == nil && raw.Audit == nil && report.PrimaryError != "" {
		return "Error: " + report.PrimaryError
	}

	var b strings.Builder

	b.WriteString("AI Insight:\n")
	if len(report.InsightParts) > 0 {
		b.WriteString(strings.Join(report.InsightParts, "\n"))
	} else {
		b.WriteString(metric.NotAvailable)
	}

	b.WriteString("\n\nLighthouse Scores:\n")
	writeMetricLines(&b, report, scoreKeys)

	b.WriteString("\nCore Web Vitals:\n")
	writeMetricLines(&b, report, vitalKeys)

	return strings.TrimRight(b.String(), "\n")
}

func writeMetricLines(b *strings.Builder, report model.AnalysisReport, keys []model.MetricKey) {
	for _, key := range keys {
		display := metric.NotAvailable
		if entry, ok := report.Metric(key); ok {
			display = entry.Display
		}
		b.WriteString("- ")
		b.WriteString(narrativeLabels[key])
		b.WriteString(": ")
		b.WriteString(display)
		b.WriteString("\n")
	}
}
