// Package pipeline runs the research, extraction and scoring steps that
// produce one company's sustainability analysis.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/esg-research/internal/cost"
	"github.com/sells-group/esg-research/internal/extract"
	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/research"
	"github.com/sells-group/esg-research/internal/scorer"
	"github.com/sells-group/esg-research/internal/store"
)

// ErrNoSources is returned when research finds nothing to analyze.
var ErrNoSources = eris.New("pipeline: no sources found")

// IsNoSources reports whether err is ErrNoSources.
func IsNoSources(err error) bool {
	return eris.Is(err, ErrNoSources)
}

// Researcher finds and scrapes sources about a company.
type Researcher interface {
	Research(ctx context.Context, company string) *research.Result
}

// Extractor turns sources into validated metrics.
type Extractor interface {
	Extract(ctx context.Context, company string, sources []model.Source) *extract.Result
}

// Outcome is the result of analyzing one company.
type Outcome struct {
	Company  string
	Status   model.CacheStatus
	Cached   bool
	Analysis *model.Analysis
	// Final carries the category breakdown, recomputed from stored metrics
	// for cached analyses.
	Final           *model.FinalScore
	Recommendations []string
	// Fallback is set when extraction failed and neutral metrics were used.
	Fallback bool
	Cost     cost.Breakdown
	Duration time.Duration
}

// Score returns the persisted overall score.
func (o *Outcome) Score() float64 { return o.Analysis.Score.FinalScore }

// Level returns the persisted rating of the overall score.
func (o *Outcome) Level() model.Level { return o.Analysis.Score.LevelOrDerive() }

// Analyzer runs the cache gate, research, extraction, scoring and persistence
// for one company.
type Analyzer struct {
	store    store.Store
	gate     *store.Gate
	research Researcher
	extract  Extractor
	scorer   *scorer.Scorer
	costs    *cost.Calculator
}

// NewAnalyzer wires an Analyzer. The store should be the same one the gate
// reads, typically a store.Directory so writes refresh the company list.
func NewAnalyzer(st store.Store, gate *store.Gate, r Researcher, e Extractor, sc *scorer.Scorer, costs *cost.Calculator) *Analyzer {
	if costs == nil {
		costs = cost.NewCalculator(cost.DefaultRates())
	}
	if sc == nil {
		sc = scorer.New()
	}
	return &Analyzer{store: st, gate: gate, research: r, extract: e, scorer: sc, costs: costs}
}

// Analyze returns the company's analysis, reusing a fresh persisted one
// unless force is set. It returns ErrNoSources when research yields nothing.
func (a *Analyzer) Analyze(ctx context.Context, name string, force bool) (*Outcome, error) {
	log := zap.L().With(zap.String("company", name))
	start := time.Now()

	status := model.CacheMiss
	if !force {
		var (
			cached *model.Analysis
			err    error
		)
		status, cached, err = a.gate.Check(ctx, name)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: cache check")
		}
		if status == model.CacheHit {
			final := a.scorer.Restore(cached.Score, cached.Metrics)
			log.Info("pipeline: using cached analysis", zap.Float64("score", cached.Score.FinalScore))
			return &Outcome{
				Company:         name,
				Status:          status,
				Cached:          true,
				Analysis:        cached,
				Final:           final,
				Recommendations: scorer.Recommendations(final),
				Duration:        time.Since(start),
			}, nil
		}
	}
	log.Info("pipeline: starting analysis", zap.String("cache", string(status)), zap.Bool("force", force))

	res := a.research.Research(ctx, name)
	usage := cost.Usage{SearchQueries: 1, ScrapeCredits: res.Attempts}
	if len(res.Sources) == 0 {
		a.costs.Breakdown(usage).Log(name, usage)
		return nil, eris.Wrapf(ErrNoSources, "pipeline: analyze %s", name)
	}

	company, err := a.store.SaveResearch(ctx, name, res.Sources)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: save research")
	}

	ext := a.extract.Extract(ctx, name, res.Sources)
	usage.Model = ext.Model
	usage.Tokens = ext.Usage

	if err := a.store.SaveMetrics(ctx, company.ID, ext.Metrics); err != nil {
		return nil, eris.Wrap(err, "pipeline: save metrics")
	}

	final := a.scorer.Score(ext.Metrics)
	record, err := a.store.SaveScores(ctx, company.ID, final)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: save scores")
	}

	breakdown := a.costs.Breakdown(usage)
	breakdown.Log(name, usage)

	out := &Outcome{
		Company: name,
		Status:  status,
		Analysis: &model.Analysis{
			Company: *company,
			Sources: res.Sources,
			Metrics: ext.Metrics,
			Score:   record,
		},
		Final:           final,
		Recommendations: scorer.Recommendations(final),
		Fallback:        ext.Fallback,
		Cost:            breakdown,
		Duration:        time.Since(start),
	}
	log.Info("pipeline: analysis complete",
		zap.Int64("company_id", company.ID),
		zap.Float64("score", record.FinalScore),
		zap.String("level", string(record.Level)),
		zap.Int("sources", len(res.Sources)),
		zap.Int("metrics", len(ext.Metrics)),
		zap.Bool("fallback", ext.Fallback),
		zap.Duration("duration", out.Duration),
	)
	return out, nil
}
