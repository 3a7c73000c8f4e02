package metric

import (
	"testing"

	"github.com/webpulse/webpulse/internal/model"
)

var ratioKeys = []model.MetricKey{
	model.MetricPerformance,
	model.MetricSEO,
	model.MetricAccessibility,
	model.MetricBestPractices,
}

func TestClassify_Ratios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value float64
		want  model.SeverityTier
	}{
		{1, model.TierGood},
		{0.90, model.TierGood},
		{0.8999, model.TierNeedsImprovement},
		{0.50, model.TierNeedsImprovement},
		{0.4999, model.TierPoor},
		{0, model.TierPoor},
	}

	for _, key := range ratioKeys {
		for _, tt := range tests {
			got := Classify(key, model.Percentage(tt.value))
			if got != tt.want {
				t.Errorf("Classify(%s, %v) = %s, want %s", key, tt.value, got, tt.want)
			}
		}
	}
}

func TestClassify_Vitals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   model.MetricKey
		value model.MetricValue
		want  model.SeverityTier
	}{
		{"cls good boundary", model.MetricCLS, model.Unitless(0.10), model.TierGood},
		{"cls needs improvement", model.MetricCLS, model.Unitless(0.11), model.TierNeedsImprovement},
		{"cls needs improvement boundary", model.MetricCLS, model.Unitless(0.25), model.TierNeedsImprovement},
		{"cls poor", model.MetricCLS, model.Unitless(0.26), model.TierPoor},
		{"fcp good boundary", model.MetricFCP, model.Duration(2000), model.TierGood},
		{"lcp needs improvement", model.MetricLCP, model.Duration(2543.4), model.TierNeedsImprovement},
		{"speed index boundary", model.MetricSpeedIndex, model.Duration(4000), model.TierNeedsImprovement},
		{"speed index poor", model.MetricSpeedIndex, model.Duration(4000.1), model.TierPoor},
		{"tbt good", model.MetricTBT, model.Duration(200), model.TierGood},
		{"tbt needs improvement", model.MetricTBT, model.Duration(600), model.TierNeedsImprovement},
		{"tbt poor", model.MetricTBT, model.Duration(601), model.TierPoor},
		{"unknown key", model.MetricKey("pwa"), model.Percentage(1), model.TierUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tt.key, tt.value); got != tt.want {
				t.Errorf("Classify(%s) = %s, want %s", tt.key, got, tt.want)
			}
		})
	}
}

func TestClassify_AbsentIsUnknown(t *testing.T) {
	t.Parallel()

	for _, key := range model.MetricKeys {
		if got := Classify(key, model.Absent()); got != model.TierUnknown {
			t.Errorf("Classify(%s, Absent) = %s, want unknown", key, got)
		}
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   model.MetricKey
		value model.MetricValue
		want  string
	}{
		{"percentage", model.MetricPerformance, model.Percentage(0.873), "87%"},
		{"percentage half up", model.MetricSEO, model.Percentage(0.875), "88%"},
		{"percentage half up 0.145", model.MetricPerformance, model.Percentage(0.145), "15%"},
		{"percentage half up 0.285", model.MetricSEO, model.Percentage(0.285), "29%"},
		{"percentage half up 0.575", model.MetricBestPractices, model.Percentage(0.575), "58%"},
		{"percentage below half", model.MetricPerformance, model.Percentage(0.144999), "14%"},
		{"percentage full", model.MetricAccessibility, model.Percentage(1), "100%"},
		{"percentage zero", model.MetricBestPractices, model.Percentage(0), "0%"},
		{"duration", model.MetricLCP, model.Duration(2543.4), "2543 ms"},
		{"duration half up", model.MetricFCP, model.Duration(1200.5), "1201 ms"},
		{"duration zero", model.MetricTBT, model.Duration(0), "0 ms"},
		{"unitless", model.MetricCLS, model.Unitless(0.08), "0.08"},
		{"unitless precision", model.MetricCLS, model.Unitless(0.1234), "0.1234"},
		{"unitless zero", model.MetricCLS, model.Unitless(0), "0"},
		{"absent", model.MetricFCP, model.Absent(), "N/A"},
		{"unknown key uses kind", model.MetricKey("pwa"), model.Percentage(0.5), "50%"},
		{"unknown key absent", model.MetricKey("pwa"), model.Absent(), "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Format(tt.key, tt.value); got != tt.want {
				t.Errorf("Format(%s, %+v) = %q, want %q", tt.key, tt.value, got, tt.want)
			}
		})
	}
}

func TestFormat_AbsentForEveryKey(t *testing.T) {
	t.Parallel()

	for _, key := range model.MetricKeys {
		if got := Format(key, model.Absent()); got != NotAvailable {
			t.Errorf("Format(%s, Absent) = %q", key, got)
		}
	}
}
