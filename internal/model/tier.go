package model

// SeverityTier is the classification of how good a metric value is.
type SeverityTier string

const (
	TierGood             SeverityTier = "good"
	TierNeedsImprovement SeverityTier = "needs-improvement"
	TierPoor             SeverityTier = "poor"
	TierUnknown          SeverityTier = "unknown"
)

// Colour returns the display colour used by the dashboard cards.
func (t SeverityTier) Colour() string {
	switch t {
	case TierGood:
		return "green"
	case TierNeedsImprovement:
		return "yellow"
	case TierPoor:
		return "red"
	default:
		return "gray"
	}
}
