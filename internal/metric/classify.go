// Package metric classifies and formats audit metrics for display.
package metric

import "github.com/webpulse/webpulse/internal/model"

// band holds the inclusive upper (or lower) bounds of the good and
// needs-improvement tiers for one metric group.
type band struct {
	good             float64
	needsImprovement float64
	higherIsBetter   bool
}

var (
	ratioBand    = band{good: 0.90, needsImprovement: 0.50, higherIsBetter: true}
	clsBand      = band{good: 0.10, needsImprovement: 0.25}
	paintBand    = band{good: 2000, needsImprovement: 4000}
	blockingBand = band{good: 200, needsImprovement: 600}
)

var bands = map[model.MetricKey]band{
	model.MetricPerformance:   ratioBand,
	model.MetricSEO:           ratioBand,
	model.MetricAccessibility: ratioBand,
	model.MetricBestPractices: ratioBand,
	model.MetricCLS:           clsBand,
	model.MetricFCP:           paintBand,
	model.MetricLCP:           paintBand,
	model.MetricSpeedIndex:    paintBand,
	model.MetricTBT:           blockingBand,
}

// Classify maps a metric value to its severity tier.
// Boundaries count toward the better tier. Absent values and unknown keys
// are TierUnknown.
func Classify(key model.MetricKey, value model.MetricValue) model.SeverityTier {
	raw, ok := value.Float()
	if !ok {
		return model.TierUnknown
	}

	b, ok := bands[key]
	if !ok {
		return model.TierUnknown
	}

	if b.higherIsBetter {
		switch {
		case raw >= b.good:
			return model.TierGood
		case raw >= b.needsImprovement:
			return model.TierNeedsImprovement
		default:
			return model.TierPoor
		}
	}

	switch {
	case raw <= b.good:
		return model.TierGood
	case raw <= b.needsImprovement:
		return model.TierNeedsImprovement
	default:
		return model.TierPoor
	}
}
