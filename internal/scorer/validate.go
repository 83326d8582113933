package scorer

import (
	"math"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/sells-group/esg-research/internal/model"
)

// Neutral values substituted for malformed or missing metric data.
const (
	NeutralValue       = 50.0
	NeutralConfidence  = 0.5
	FallbackConfidence = 0.1
)

// requiredFields must all be present on a raw metric for it to be kept.
var requiredFields = []string{"category", "metric_name", "value", "confidence"}

// Validate cleans raw metric candidates as decoded from an extraction
// response. Records missing a required field or carrying an unknown category
// are dropped. Uncoercible values become NeutralValue and uncoercible
// confidences become NeutralConfidence; both are clamped and rounded to two
// decimals. Validate never fails.
func Validate(raw []map[string]any) []model.Metric {
	out := make([]model.Metric, 0, len(raw))
	for i, r := range raw {
		if missing := missingField(r); missing != "" {
			zap.L().Warn("scorer: skipping metric missing field",
				zap.Int("index", i), zap.String("field", missing))
			continue
		}

		cat, ok := r["category"].(string)
		if ok {
			_, ok = model.ParseCategory(cat)
		}
		if !ok {
			zap.L().Warn("scorer: skipping metric with invalid category",
				zap.Int("index", i), zap.Any("category", r["category"]))
			continue
		}

		name := cast.ToString(r["metric_name"])

		value, ok := toFloat(r["value"])
		if ok {
			value = clamp(value, 0, 100)
		} else {
			zap.L().Warn("scorer: invalid metric value, using neutral",
				zap.String("metric", name), zap.Any("value", r["value"]))
			value = NeutralValue
		}

		conf, ok := toFloat(r["confidence"])
		if ok {
			conf = clamp(conf, 0, 1)
		} else {
			zap.L().Warn("scorer: invalid metric confidence, using neutral",
				zap.String("metric", name), zap.Any("confidence", r["confidence"]))
			conf = NeutralConfidence
		}

		m := model.Metric{
			Category:   model.Category(cat),
			Name:       name,
			Value:      round2(value),
			Confidence: round2(conf),
		}
		if ev, ok := r["evidence"].(string); ok {
			m.Evidence = strings.TrimSpace(ev)
		}
		out = append(out, m)
	}
	return out
}

// DefaultMetrics returns one neutral, low-confidence metric for each of the
// fifteen schema metrics. It stands in for a failed extraction.
func DefaultMetrics() []model.Metric {
	out := make([]model.Metric, 0, 15)
	for _, c := range model.Categories {
		for _, name := range model.MetricSchema[c] {
			out = append(out, model.Metric{
				Category:   c,
				Name:       name,
				Value:      NeutralValue,
				Confidence: FallbackConfidence,
			})
		}
	}
	return out
}

func missingField(r map[string]any) string {
	for _, f := range requiredFields {
		if _, ok := r[f]; !ok {
			return f
		}
	}
	return ""
}

// toFloat coerces numbers and numeric strings. nil and NaN are rejected.
func toFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
