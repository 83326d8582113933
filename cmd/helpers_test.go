//go:build !integration

package main

import (
	"context"
	"time"

	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/store"
)

var testResearched = time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)

// testAnalysis builds a complete analysis whose metrics all carry value.
func testAnalysis(id int64, name string, value float64) *model.Analysis {
	var metrics []model.Metric
	for _, c := range model.Categories {
		for _, m := range model.MetricSchema[c] {
			metrics = append(metrics, model.Metric{Category: c, Name: m, Value: value, Confidence: 0.8, Evidence: name + " reports progress."})
		}
	}
	return &model.Analysis{
		Company: model.Company{ID: id, Name: name, ResearchDate: testResearched, LastUpdated: testResearched},
		Sources: []model.Source{{URL: "https://example.com/" + name, Content: name + " sustainability report", ScrapedAt: testResearched}},
		Metrics: metrics,
		Score: &model.ScoreRecord{
			CompanyID:          id,
			FinalScore:         value,
			EnvironmentalScore: value,
			SocialScore:        value,
			GovernanceScore:    value,
			Level:              model.LevelFor(value),
			Confidence:         0.8,
			CalculatedAt:       testResearched,
		},
	}
}

// fakeDirectory serves a fixed entry list and records deletes.
type fakeDirectory struct {
	entries []store.Entry
	err     error
	deleted []string
}

func (d *fakeDirectory) List(context.Context) ([]store.Entry, error) {
	return d.entries, d.err
}

func (d *fakeDirectory) DeleteCompany(_ context.Context, name string) (bool, error) {
	d.deleted = append(d.deleted, name)
	return true, nil
}

func entriesOf(analyses ...*model.Analysis) []store.Entry {
	out := make([]store.Entry, 0, len(analyses))
	for _, a := range analyses {
		out = append(out, store.Entry{Company: a.Company, Analysis: a})
	}
	return out
}
