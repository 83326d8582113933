// Package scorer turns extracted ESG metrics into category scores, a
// weighted final score and improvement recommendations.
package scorer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/esg-research/internal/model"
)

// WeightSum returns the sum of all category weights.
func WeightSum(weights map[model.Category]float64) float64 {
	var sum float64
	for _, c := range model.Categories {
		sum += weights[c]
	}
	return sum
}

// ValidateWeights checks that a category weight table is internally
// consistent: one non-negative weight per category, summing to 1.
func ValidateWeights(weights map[model.Category]float64) error {
	var errs []string

	for c, w := range weights {
		if _, ok := model.ParseCategory(string(c)); !ok {
			errs = append(errs, fmt.Sprintf("unknown category %q", c))
		}
		if w < 0 || math.IsNaN(w) {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", strings.ToLower(string(c))))
		}
	}
	for _, c := range model.Categories {
		if _, ok := weights[c]; !ok {
			errs = append(errs, fmt.Sprintf("missing %s weight", strings.ToLower(string(c))))
		}
	}

	sum := WeightSum(weights)
	if sum <= 0 {
		errs = append(errs, "weight sum must be > 0")
	} else if math.Abs(sum-1) > 1e-6 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.3f", sum))
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("scorer: weight validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
