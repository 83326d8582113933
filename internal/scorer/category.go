package scorer

import (
	"go.uber.org/zap"

	"github.com/sells-group/esg-research/internal/model"
)

// ScoreCategory computes the confidence-weighted score of one category.
//
// The score is sum(value*confidence)/sum(confidence); the confidence is the
// plain mean of metric confidences. A category with no metrics, or whose
// confidences sum to zero, scores NeutralValue with zero confidence.
func ScoreCategory(metrics []model.Metric, c model.Category) model.CategoryScore {
	var (
		weighted float64
		confSum  float64
		details  = []model.MetricDetail{}
	)
	for _, m := range metrics {
		if m.Category != c {
			continue
		}
		weighted += m.Value * m.Confidence
		confSum += m.Confidence
		details = append(details, model.MetricDetail{
			Name:       m.Name,
			Value:      m.Value,
			Confidence: m.Confidence,
		})
	}

	if len(details) == 0 {
		zap.L().Debug("scorer: no metrics for category", zap.String("category", string(c)))
		return model.CategoryScore{Score: NeutralValue, Metrics: details}
	}

	cs := model.CategoryScore{
		Score:       NeutralValue,
		MetricCount: len(details),
		Metrics:     details,
	}
	if confSum > 0 {
		cs.Score = round2(weighted / confSum)
		cs.Confidence = round2(confSum / float64(len(details)))
	}
	return cs
}
