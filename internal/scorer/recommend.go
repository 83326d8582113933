package scorer

import (
	"fmt"

	"github.com/sells-group/esg-research/internal/model"
)

// Recommendation thresholds.
const (
	MaxRecommendations    = 5
	CategoryPriorityBelow = 60.0
	MetricFocusBelow      = 50.0
	focusPerCategory      = 2
)

// Recommendations lists up to MaxRecommendations improvement suggestions for
// f: a severity header when the final score is below 70, then per category a
// priority line for weak categories and focus lines for its weakest metrics,
// in their existing order.
func Recommendations(f *model.FinalScore) []string {
	var recs []string

	switch {
	case f.FinalScore < 50:
		recs = append(recs, "Critical: Significant improvements needed across all sustainability areas")
	case f.FinalScore < 70:
		recs = append(recs, "Important: Enhance sustainability practices to meet industry standards")
	}

	for _, c := range model.Categories {
		cs, ok := f.Breakdown[c]
		if !ok {
			continue
		}
		if cs.Score < CategoryPriorityBelow {
			recs = append(recs, fmt.Sprintf("Priority: Improve %s practices (current score: %.1f/100)", c, cs.Score))
		}
		n := 0
		for _, m := range cs.Metrics {
			if n == focusPerCategory {
				break
			}
			if m.Value < MetricFocusBelow {
				recs = append(recs, fmt.Sprintf("Focus on: %s in %s category (score: %.1f/100)", m.Name, c, m.Value))
				n++
			}
		}
	}

	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}
