package scorer

import (
	"time"

	"github.com/sells-group/esg-research/internal/model"
)

// Scorer combines category scores into a FinalScore. It holds no state
// between calls.
type Scorer struct {
	weights map[model.Category]float64
	now     func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the category weights. Callers should check the table
// with ValidateWeights first.
func WithWeights(w map[model.Category]float64) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithClock sets the clock used for CalculatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// New creates a Scorer using the standard ESG category weights.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		weights: model.CategoryWeights,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}
