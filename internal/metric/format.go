package metric

import (
	"math"
	"strconv"

	"github.com/webpulse/webpulse/internal/model"
)

// NotAvailable is rendered for values that carry no data.
const NotAvailable = "N/A"

// Format renders a metric value for display.
// Known keys take their unit from the key; unknown keys fall back to the
// value's own kind.
func Format(key model.MetricKey, value model.MetricValue) string {
	raw, ok := value.Float()
	if !ok {
		return NotAvailable
	}

	kind := key.Kind()
	if kind == model.KindAbsent {
		kind = value.Kind()
	}

	switch kind {
	case model.KindPercentage:
		return strconv.FormatInt(roundHalfUp(raw*100), 10) + "%"
	case model.KindDuration:
		return strconv.FormatInt(roundHalfUp(raw), 10) + " ms"
	default:
		return strconv.FormatFloat(raw, 'f', -1, 64)
	}
}

// roundHalfUp rounds the decimal value v denotes, so 14.499999999999998
// (0.145*100) rounds like 14.5.
func roundHalfUp(v float64) int64 {
	d, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 9, 64), 64)
	if err != nil {
		d = v
	}
	return int64(math.Floor(d + 0.5))
}
