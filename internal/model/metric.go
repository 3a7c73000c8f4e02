// Package model defines domain entities for the application.
package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// MetricKey identifies an audit metric.
type MetricKey string

const (
	MetricPerformance   MetricKey = "performance"
	MetricSEO           MetricKey = "seo"
	MetricAccessibility MetricKey = "accessibility"
	MetricBestPractices MetricKey = "bestPractices"
	MetricFCP           MetricKey = "fcp"
	MetricLCP           MetricKey = "lcp"
	MetricCLS           MetricKey = "cls"
	MetricSpeedIndex    MetricKey = "speedIndex"
	MetricTBT           MetricKey = "tbt"
)

// MetricKeys lists every known metric in display order.
var MetricKeys = []MetricKey{
	MetricPerformance,
	MetricSEO,
	MetricAccessibility,
	MetricBestPractices,
	MetricFCP,
	MetricLCP,
	MetricCLS,
	MetricSpeedIndex,
	MetricTBT,
}

var metricLabels = map[MetricKey]string{
	MetricPerformance:   "Performance",
	MetricSEO:           "SEO",
	MetricAccessibility: "Accessibility",
	MetricBestPractices: "Best Practices",
	MetricFCP:           "First Contentful Paint",
	MetricLCP:           "Largest Contentful Paint",
	MetricCLS:           "Cumulative Layout Shift",
	MetricSpeedIndex:    "Speed Index",
	MetricTBT:           "Total Blocking Time",
}

// IsKnown reports whether the key belongs to the closed metric set.
func (k MetricKey) IsKnown() bool {
	_, ok := metricLabels[k]
	return ok
}

// Label returns the human-readable metric name.
// Unknown keys are returned verbatim.
func (k MetricKey) Label() string {
	if label, ok := metricLabels[k]; ok {
		return label
	}
	return string(k)
}

// Kind returns the value kind a key carries on the wire.
// Unknown keys report KindAbsent.
func (k MetricKey) Kind() ValueKind {
	switch k {
	case MetricPerformance, MetricSEO, MetricAccessibility, MetricBestPractices:
		return KindPercentage
	case MetricFCP, MetricLCP, MetricSpeedIndex, MetricTBT:
		return KindDuration
	case MetricCLS:
		return KindUnitless
	default:
		return KindAbsent
	}
}

// ValueKind tags the variant held by a MetricValue.
type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindPercentage
	KindDuration
	KindUnitless
)

var kindNames = map[ValueKind]string{
	KindAbsent:     "absent",
	KindPercentage: "percentage",
	KindDuration:   "duration",
	KindUnitless:   "unitless",
}

// String returns the wire name of the kind.
func (k ValueKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MetricValue is a tagged union over percentage ratios, millisecond
// durations, unitless scores and an explicit "no data" state.
// The zero value is Absent, which is distinct from a present zero.
type MetricValue struct {
	kind  ValueKind
	value float64
}

// Absent returns a value that carries no data.
func Absent() MetricValue {
	return MetricValue{}
}

// Percentage returns a ratio value in the 0..1 range.
func Percentage(ratio float64) MetricValue {
	return MetricValue{kind: KindPercentage, value: ratio}
}

// Duration returns a millisecond value.
func Duration(ms float64) MetricValue {
	return MetricValue{kind: KindDuration, value: ms}
}

// Unitless returns a unitless score such as a layout-shift ratio.
func Unitless(score float64) MetricValue {
	return MetricValue{kind: KindUnitless, value: score}
}

// Kind returns the variant tag.
func (v MetricValue) Kind() ValueKind {
	return v.kind
}

// IsAbsent reports whether the value carries no data.
func (v MetricValue) IsAbsent() bool {
	return v.kind == KindAbsent
}

// Float returns the raw number and whether one is present.
func (v MetricValue) Float() (float64, bool) {
	if v.kind == KindAbsent {
		return 0, false
	}
	return v.value, true
}

// ValueFor normalizes a nullable wire number into the kind the key expects.
// nil, NaN, infinities, negative numbers and ratios above 1 become Absent,
// as does any value for an unknown key.
func ValueFor(key MetricKey, raw *float64) MetricValue {
	if raw == nil {
		return Absent()
	}

	v := *raw
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Absent()
	}

	switch key.Kind() {
	case KindPercentage:
		if v > 1 {
			return Absent()
		}
		return Percentage(v)
	case KindDuration:
		return Duration(v)
	case KindUnitless:
		return Unitless(v)
	default:
		return Absent()
	}
}

type metricValueJSON struct {
	Kind  string   `json:"kind"`
	Value *float64 `json:"value,omitempty"`
}

// MarshalJSON encodes the value as {"kind": ..., "value": ...}.
func (v MetricValue) MarshalJSON() ([]byte, error) {
	out := metricValueJSON{Kind: v.kind.String()}
	if raw, ok := v.Float(); ok {
		out.Value = &raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (v *MetricValue) UnmarshalJSON(data []byte) error {
	var in metricValueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	for kind, name := range kindNames {
		if name != in.Kind {
			continue
		}
		if kind == KindAbsent {
			*v = Absent()
			return nil
		}
		if in.Value == nil {
			return fmt.Errorf("metric value of kind %q has no value", in.Kind)
		}
		*v = MetricValue{kind: kind, value: *in.Value}
		return nil
	}

	return fmt.Errorf("unknown metric value kind %q", in.Kind)
}
