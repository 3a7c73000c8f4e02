package model

import (
	"encoding/json"
	"math"
	"testing"
)

func ptr(v float64) *float64 {
	return &v
}

func TestMetricValue_ZeroIsAbsent(t *testing.T) {
	t.Parallel()

	var v MetricValue
	if !v.IsAbsent() {
		t.Error("zero MetricValue should be Absent")
	}

	zero := Percentage(0)
	if zero.IsAbsent() {
		t.Error("Percentage(0) must not be Absent")
	}
	if raw, ok := zero.Float(); !ok || raw != 0 {
		t.Errorf("Percentage(0).Float() = %v, %v", raw, ok)
	}
}

func TestValueFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      MetricKey
		raw      *float64
		wantKind ValueKind
	}{
		{"nil", MetricPerformance, nil, KindAbsent},
		{"ratio", MetricPerformance, ptr(0.87), KindPercentage},
		{"ratio zero", MetricSEO, ptr(0), KindPercentage},
		{"ratio above one", MetricAccessibility, ptr(1.5), KindAbsent},
		{"duration", MetricLCP, ptr(2543.4), KindDuration},
		{"tbt", MetricTBT, ptr(0), KindDuration},
		{"negative duration", MetricFCP, ptr(-1), KindAbsent},
		{"cls", MetricCLS, ptr(0.08), KindUnitless},
		{"nan", MetricCLS, ptr(math.NaN()), KindAbsent},
		{"inf", MetricSpeedIndex, ptr(math.Inf(1)), KindAbsent},
		{"unknown key", MetricKey("pwa"), ptr(0.5), KindAbsent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ValueFor(tt.key, tt.raw)
			if got.Kind() != tt.wantKind {
				t.Errorf("ValueFor(%s) kind = %s, want %s", tt.key, got.Kind(), tt.wantKind)
			}
		})
	}
}

func TestMetricKey_Labels(t *testing.T) {
	t.Parallel()

	if len(MetricKeys) != 9 {
		t.Fatalf("expected 9 metric keys, got %d", len(MetricKeys))
	}
	for _, key := range MetricKeys {
		if !key.IsKnown() {
			t.Errorf("%s should be known", key)
		}
		if key.Label() == string(key) && key != MetricSEO {
			t.Errorf("%s has no display label", key)
		}
	}

	if MetricKey("pwa").IsKnown() {
		t.Error("pwa should not be a known key")
	}
	if MetricKey("pwa").Label() != "pwa" {
		t.Error("unknown key label should be the key itself")
	}
}

func TestMetricValue_JSON(t *testing.T) {
	t.Parallel()

	values := []MetricValue{Absent(), Percentage(0.873), Duration(2543.4), Unitless(0.08), Duration(0)}

	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %v: %v", v, err)
		}

		var decoded MetricValue
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if decoded != v {
			t.Errorf("round trip of %s = %+v, want %+v", data, decoded, v)
		}
	}
}

func TestMetricValue_JSONRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	var v MetricValue
	if err := json.Unmarshal([]byte(`{"kind":"bogus","value":1}`), &v); err == nil {
		t.Error("expected error for unknown kind")
	}
	if err := json.Unmarshal([]byte(`{"kind":"duration"}`), &v); err == nil {
		t.Error("expected error for missing value")
	}
}

func TestSeverityTier_Colour(t *testing.T) {
	t.Parallel()

	tests := map[SeverityTier]string{
		TierGood:             "green",
		TierNeedsImprovement: "yellow",
		TierPoor:             "red",
		TierUnknown:          "gray",
	}
	for tier, colour := range tests {
		if got := tier.Colour(); got != colour {
			t.Errorf("%s.Colour() = %s, want %s", tier, got, colour)
		}
	}
}
