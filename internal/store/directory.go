package store

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/esg-research/internal/model"
)

const directoryKey = "companies"

// Entry is one analyzed company as listed by the Directory. Analysis is nil
// when the stored analysis is stale or incomplete.
type Entry struct {
	Company  model.Company
	Analysis *model.Analysis
}

// Directory is a read-through cache of the analyzed-company list. It wraps a
// Store; every write made through it drops the cached list before returning,
// so the next read always reflects the write.
type Directory struct {
	Store
	gate *Gate

	mu      sync.Mutex
	entries map[string][]Entry
}

// NewDirectory wraps s. Entries are resolved through gate.
func NewDirectory(s Store, gate *Gate) *Directory {
	return &Directory{Store: s, gate: gate, entries: make(map[string][]Entry)}
}

// List returns every company, most recently researched first, loading from
// the store on a cache miss. Freshness is rechecked against the gate clock on
// every read, so a cached analysis that ages past the window is listed
// without data.
func (d *Directory) List(ctx context.Context) ([]Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cached, ok := d.entries[directoryKey]
	if !ok {
		loaded, err := d.load(ctx)
		if err != nil {
			return nil, err
		}
		d.entries[directoryKey] = loaded
		cached = loaded
	}

	out := make([]Entry, len(cached))
	for i, e := range cached {
		if e.Analysis != nil && !d.gate.Fresh(e.Company.ResearchDate) {
			e.Analysis = nil
		}
		out[i] = e
	}
	return out, nil
}

func (d *Directory) load(ctx context.Context) ([]Entry, error) {
	companies, err := d.Store.ListCompanies(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "directory: list companies")
	}
	entries := make([]Entry, 0, len(companies))
	for _, c := range companies {
		status, analysis, err := d.gate.Check(ctx, c.Name)
		if err != nil {
			return nil, eris.Wrapf(err, "directory: load %s", c.Name)
		}
		if status != model.CacheHit {
			analysis = nil
		}
		entries = append(entries, Entry{Company: c, Analysis: analysis})
	}
	return entries, nil
}

// Analyses returns the fresh analyses keyed by company name.
func (d *Directory) Analyses(ctx context.Context) (map[string]*model.Analysis, error) {
	entries, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.Analysis, len(entries))
	for _, e := range entries {
		if e.Analysis != nil {
			out[e.Company.Name] = e.Analysis
		}
	}
	return out, nil
}

// Names returns the names of companies with a fresh analysis, most recent
// first.
func (d *Directory) Names(ctx context.Context) ([]string, error) {
	entries, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Analysis != nil {
			names = append(names, e.Company.Name)
		}
	}
	return names, nil
}

// Invalidate drops the cached list.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	delete(d.entries, directoryKey)
	d.mu.Unlock()
}

// SaveResearch saves through to the store and drops the cached list.
func (d *Directory) SaveResearch(ctx context.Context, name string, sources []model.Source) (*model.Company, error) {
	defer d.Invalidate()
	return d.Store.SaveResearch(ctx, name, sources)
}

// SaveMetrics saves through to the store and drops the cached list.
func (d *Directory) SaveMetrics(ctx context.Context, companyID int64, metrics []model.Metric) error {
	defer d.Invalidate()
	return d.Store.SaveMetrics(ctx, companyID, metrics)
}

// SaveScores saves through to the store and drops the cached list.
func (d *Directory) SaveScores(ctx context.Context, companyID int64, score *model.FinalScore) (*model.ScoreRecord, error) {
	defer d.Invalidate()
	return d.Store.SaveScores(ctx, companyID, score)
}

// DeleteCompany deletes through the store and drops the cached list.
func (d *Directory) DeleteCompany(ctx context.Context, name string) (bool, error) {
	defer d.Invalidate()
	return d.Store.DeleteCompany(ctx, name)
}

// DeleteAll clears the store and drops the cached list.
func (d *Directory) DeleteAll(ctx context.Context) (int64, error) {
	defer d.Invalidate()
	return d.Store.DeleteAll(ctx)
}
