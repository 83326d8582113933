package scorer

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/esg-research/internal/model"
)

// Score computes all three category scores and combines them with the
// configured weights. It always returns a complete FinalScore.
func (s *Scorer) Score(metrics []model.Metric) *model.FinalScore {
	breakdown := make(map[model.Category]model.CategoryScore, len(model.Categories))

	var weightedSum, weightSum, confSum float64
	for _, c := range model.Categories {
		cs := ScoreCategory(metrics, c)
		breakdown[c] = cs
		w := s.weights[c]
		weightedSum += cs.Score * w
		weightSum += w
		confSum += cs.Confidence
	}

	final := NeutralValue
	if weightSum > 0 {
		final = weightedSum / weightSum
	}
	final = round2(final)

	fs := &model.FinalScore{
		FinalScore:         final,
		Level:              model.LevelFor(final),
		Confidence:         round2(confSum / float64(len(model.Categories))),
		EnvironmentalScore: breakdown[model.Environmental].Score,
		SocialScore:        breakdown[model.Social].Score,
		GovernanceScore:    breakdown[model.Governance].Score,
		Breakdown:          breakdown,
		ComponentScores:    ComponentScores(breakdown),
		CalculatedAt:       s.now().UTC(),
	}

	zap.L().Info("scorer: final score",
		zap.Float64("score", fs.FinalScore),
		zap.String("level", string(fs.Level)),
		zap.Float64("confidence", fs.Confidence),
	)
	return fs
}

// Restore rebuilds a FinalScore for a persisted analysis. The final, level,
// confidence and category scores come from rec; the per-metric breakdown is
// recomputed from metrics, which may be empty. A nil rec scores metrics from
// scratch.
func (s *Scorer) Restore(rec *model.ScoreRecord, metrics []model.Metric) *model.FinalScore {
	if rec == nil {
		return s.Score(metrics)
	}
	breakdown := make(map[model.Category]model.CategoryScore, len(model.Categories))
	for _, c := range model.Categories {
		cs := ScoreCategory(metrics, c)
		cs.Score = rec.CategoryScore(c)
		breakdown[c] = cs
	}
	components := rec.ComponentScores
	if len(components) == 0 {
		components = ComponentScores(breakdown)
	}
	return &model.FinalScore{
		FinalScore:         rec.FinalScore,
		Level:              rec.LevelOrDerive(),
		Confidence:         rec.Confidence,
		EnvironmentalScore: rec.EnvironmentalScore,
		SocialScore:        rec.SocialScore,
		GovernanceScore:    rec.GovernanceScore,
		Breakdown:          breakdown,
		ComponentScores:    components,
		CalculatedAt:       rec.CalculatedAt,
	}
}

var underscoreRun = regexp.MustCompile(`_+`)

// NormalizeKey turns a metric name into a component-score key: lowercased,
// spaces to underscores, the substring "and" removed, underscore runs
// collapsed and trimmed. "Diversity and Inclusion" becomes
// "diversity_inclusion".
func NormalizeKey(name string) string {
	k := strings.ToLower(name)
	k = strings.ReplaceAll(k, " ", "_")
	k = strings.ReplaceAll(k, "and", "")
	k = underscoreRun.ReplaceAllString(k, "_")
	return strings.Trim(k, "_")
}

// ComponentScores flattens a category breakdown into one map. Each category
// contributes "{category}_overall" plus one entry per metric. A metric key
// that is already taken is namespaced as "{category}_{key}", and numbered
// from _2 if that is taken too, so no score is ever overwritten.
func ComponentScores(breakdown map[model.Category]model.CategoryScore) map[string]float64 {
	out := make(map[string]float64)
	for _, c := range model.Categories {
		cs, ok := breakdown[c]
		if !ok {
			continue
		}
		prefix := strings.ToLower(string(c))
		out[prefix+"_overall"] = cs.Score

		for _, m := range cs.Metrics {
			key := NormalizeKey(m.Name)
			if key == "" {
				key = "metric"
			}
			if _, taken := out[key]; taken {
				key = prefix + "_" + key
			}
			if _, taken := out[key]; taken {
				base := key
				for n := 2; ; n++ {
					key = fmt.Sprintf("%s_%d", base, n)
					if _, taken := out[key]; !taken {
						break
					}
				}
			}
			out[key] = m.Value
		}
	}
	return out
}
