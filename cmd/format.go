package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/esg-research/internal/cost"
	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/pipeline"
	"github.com/sells-group/esg-research/internal/store"
)

// Output formats accepted by --format on listing commands.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// companyRow is the listing view of a stored company.
type companyRow struct {
	Name         string    `json:"name" yaml:"name"`
	ResearchDate time.Time `json:"research_date" yaml:"research_date"`
	Fresh        bool      `json:"fresh" yaml:"fresh"`
	Score        *float64  `json:"score,omitempty" yaml:"score,omitempty"`
	Level        string    `json:"level,omitempty" yaml:"level,omitempty"`
}

func companyRows(entries []store.Entry) []companyRow {
	rows := make([]companyRow, 0, len(entries))
	for _, e := range entries {
		row := companyRow{Name: e.Company.Name, ResearchDate: e.Company.ResearchDate}
		if e.Analysis != nil && e.Analysis.Score != nil {
			score := e.Analysis.Score.FinalScore
			row.Fresh = true
			row.Score = &score
			row.Level = string(e.Analysis.Score.LevelOrDerive())
		}
		rows = append(rows, row)
	}
	return rows
}

// formatCompanies writes the company listing in the requested format.
func formatCompanies(w io.Writer, entries []store.Entry, format string) error {
	rows := companyRows(entries)
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case formatTable, "":
	default:
		return eris.Errorf("unknown format %q (want table, json or yaml)", format)
	}

	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No companies analyzed yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPANY\tSCORE\tLEVEL\tRESEARCHED\tSTATUS") //nolint:errcheck
	for _, r := range rows {
		score, level, status := "-", "-", "stale"
		if r.Score != nil {
			score = fmt.Sprintf("%.1f", *r.Score)
			level = r.Level
			status = "fresh"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck
			r.Name, score, level, r.ResearchDate.Format(time.DateOnly), status)
	}
	return tw.Flush()
}

// analyzeResult is one company's analyze command result.
type analyzeResult struct {
	Company string
	Outcome *pipeline.Outcome
	Err     error
}

// analyzeRow is the JSON view of an analyzeResult.
type analyzeRow struct {
	Company         string          `json:"company"`
	Status          string          `json:"status"`
	Cached          bool            `json:"cached"`
	Score           float64         `json:"score,omitempty"`
	Level           string          `json:"level,omitempty"`
	Environmental   float64         `json:"environmental,omitempty"`
	Social          float64         `json:"social,omitempty"`
	Governance      float64         `json:"governance,omitempty"`
	Confidence      float64         `json:"confidence,omitempty"`
	Fallback        bool            `json:"fallback,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`
	Cost            *cost.Breakdown `json:"cost,omitempty"`
	DurationMS      int64           `json:"duration_ms"`
	Error           string          `json:"error,omitempty"`
}

func newAnalyzeRow(r analyzeResult) analyzeRow {
	row := analyzeRow{Company: r.Company}
	if r.Err != nil {
		row.Status = "failed"
		if pipeline.IsNoSources(r.Err) {
			row.Status = "no_sources"
		}
		row.Error = r.Err.Error()
		return row
	}

	o := r.Outcome
	rec := o.Analysis.Score
	row.Status = string(o.Status)
	row.Cached = o.Cached
	row.Score = rec.FinalScore
	row.Level = string(o.Level())
	row.Environmental = rec.EnvironmentalScore
	row.Social = rec.SocialScore
	row.Governance = rec.GovernanceScore
	row.Confidence = rec.Confidence
	row.Fallback = o.Fallback
	row.Recommendations = o.Recommendations
	row.DurationMS = o.Duration.Milliseconds()
	if !o.Cached {
		c := o.Cost
		row.Cost = &c
	}
	return row
}

// formatAnalyzeResults writes a result table, or JSON when asJSON is set.
func formatAnalyzeResults(w io.Writer, results []analyzeResult, asJSON bool) error {
	if asJSON {
		rows := make([]analyzeRow, 0, len(results))
		for _, r := range results {
			rows = append(rows, newAnalyzeRow(r))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPANY\tSCORE\tLEVEL\tENV\tSOC\tGOV\tCOST\tDURATION\tNOTE") //nolint:errcheck
	for _, r := range results {
		row := newAnalyzeRow(r)
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t-\t%s\n", row.Company, row.Status) //nolint:errcheck
			continue
		}
		costCol := "$0.0000"
		if row.Cost != nil {
			costCol = fmt.Sprintf("$%.4f", row.Cost.Total)
		}
		var notes []string
		if row.Cached {
			notes = append(notes, "cached")
		}
		if row.Fallback {
			notes = append(notes, "fallback metrics")
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%.1f\t%.1f\t%.1f\t%s\t%s\t%s\n", //nolint:errcheck
			row.Company, row.Score, row.Level,
			row.Environmental, row.Social, row.Governance,
			costCol, r.Outcome.Duration.Round(time.Millisecond), strings.Join(notes, ", "))
	}
	return tw.Flush()
}

// formatScore writes one company's stored score breakdown.
func formatScore(w io.Writer, a *model.Analysis) error {
	rec := a.Score
	_, err := fmt.Fprintf(w, "%s\n  Score:      %.1f/100 (%s)\n  Confidence: %.0f%%\n  Researched: %s\n  Calculated: %s\n  Sources:    %d\n\n",
		a.Company.Name,
		rec.FinalScore, rec.LevelOrDerive(),
		rec.Confidence*100,
		a.Company.ResearchDate.Format(time.DateOnly),
		rec.CalculatedAt.Format(time.RFC3339),
		len(a.Sources),
	)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tWEIGHT\tSCORE\tLEVEL") //nolint:errcheck
	for _, c := range model.Categories {
		s := rec.CategoryScore(c)
		fmt.Fprintf(tw, "%s\t%.0f%%\t%.1f\t%s\n", c, c.Weight()*100, s, model.LevelFor(s)) //nolint:errcheck
	}
	return tw.Flush()
}
