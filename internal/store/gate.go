package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/esg-research/internal/model"
)

// DefaultCacheWindow is how long a completed analysis stays reusable.
const DefaultCacheWindow = 7 * 24 * time.Hour

// Gate decides whether a persisted analysis may be reused instead of
// researching the company again. It only reads from the store.
type Gate struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateClock sets the clock the gate compares research dates against.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a Gate with the given freshness window. A non-positive
// window uses DefaultCacheWindow.
func NewGate(s Store, window time.Duration, opts ...GateOption) *Gate {
	if window <= 0 {
		window = DefaultCacheWindow
	}
	g := &Gate{store: s, window: window, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Window returns the freshness window.
func (g *Gate) Window() time.Duration { return g.window }

// Fresh reports whether research done at researched is still inside the
// window.
func (g *Gate) Fresh(researched time.Time) bool {
	return !researched.Before(g.now().Add(-g.window))
}

// Check looks up the company and returns the persisted analysis when it is
// fresh and complete. A fresh analysis needs at least one source and a score;
// metrics may be empty. Each miss returns as soon as it is known, without
// loading the remaining data. The analysis is nil unless the status is
// model.CacheHit.
func (g *Gate) Check(ctx context.Context, name string) (model.CacheStatus, *model.Analysis, error) {
	log := zap.L().With(zap.String("company", name))

	company, err := g.store.GetCompany(ctx, name)
	if IsNotFound(err) {
		return model.CacheMiss, nil, nil
	}
	if err != nil {
		return "", nil, eris.Wrap(err, "gate: get company")
	}

	if !g.Fresh(company.ResearchDate) {
		log.Info("gate: analysis is stale",
			zap.Time("research_date", company.ResearchDate),
			zap.Duration("window", g.window),
		)
		return model.CacheStale, nil, nil
	}

	sources, err := g.store.GetResearchSources(ctx, company.ID)
	if err != nil {
		return "", nil, eris.Wrap(err, "gate: get sources")
	}
	if len(sources) == 0 {
		log.Info("gate: incomplete analysis", zap.String("missing", "sources"))
		return model.CacheIncomplete, nil, nil
	}

	score, err := g.store.GetLatestScore(ctx, company.ID)
	if IsNotFound(err) {
		log.Info("gate: incomplete analysis", zap.String("missing", "score"))
		return model.CacheIncomplete, nil, nil
	}
	if err != nil {
		return "", nil, eris.Wrap(err, "gate: get latest score")
	}

	metrics, err := g.store.GetMetrics(ctx, company.ID)
	if err != nil {
		return "", nil, eris.Wrap(err, "gate: get metrics")
	}

	log.Debug("gate: reusing analysis", zap.Time("research_date", company.ResearchDate))
	return model.CacheHit, &model.Analysis{
		Company: *company,
		Sources: sources,
		Metrics: metrics,
		Score:   score,
	}, nil
}
