package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/scorer"
)

const (
	longDate  = "January 2, 2006"
	shortDate = "Jan 2, 2006"
	footer    = "*Generated by ESG Research. This %s is based on publicly available data and AI analysis.*\n"
)

func (r *Renderer) writeMarkdown(b *bytes.Buffer, a *model.Analysis) error {
	sc := a.Score
	fmt.Fprintf(b, "# Sustainability Research Report: %s\n\n", a.Company.Name)
	fmt.Fprintf(b, "**Analysis Date:** %s  \n", a.Company.ResearchDate.Format(longDate))
	fmt.Fprintf(b, "**Generated:** %s\n\n", r.now().Format(longDate))

	b.WriteString("## Overall Score\n\n")
	fmt.Fprintf(b, "**%.1f/100** (%s), confidence %.0f%%\n\n", sc.FinalScore, sc.LevelOrDerive(), sc.Confidence*100)

	b.WriteString("## Category Scores\n\n")
	b.WriteString("| Category | Score | Weight | Rating |\n|---|---:|---:|---|\n")
	for _, c := range model.Categories {
		v := sc.CategoryScore(c)
		fmt.Fprintf(b, "| %s | %.1f | %.0f%% | %s |\n", c, v, c.Weight()*100, model.LevelFor(v))
	}
	b.WriteString("\n## Detailed Metrics\n\n")
	writeMetricTables(b, a, "### %s Metrics\n\n")

	recs := scorer.Recommendations(r.scorer.Restore(a.Score, a.Metrics))
	if len(recs) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, rec := range recs {
			fmt.Fprintf(b, "- %s\n", rec)
		}
		b.WriteString("\n")
	}

	if len(a.Sources) > 0 {
		b.WriteString("## Sources\n\n")
		for _, s := range a.Sources {
			fmt.Fprintf(b, "- <%s>", s.URL)
			if !s.ScrapedAt.IsZero() {
				fmt.Fprintf(b, " (scraped %s)", s.ScrapedAt.Format("2006-01-02"))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(b, footer, "report")
	return nil
}

func (r *Renderer) writeComparisonMarkdown(b *bytes.Buffer, analyses []*model.Analysis) error {
	names := make([]string, len(analyses))
	for i, a := range analyses {
		names[i] = a.Company.Name
	}
	fmt.Fprintf(b, "# Sustainability Comparison Report: %s\n\n", strings.Join(names, " vs "))
	fmt.Fprintf(b, "**Companies Compared:** %d  \n", len(analyses))
	fmt.Fprintf(b, "**Generated:** %s\n\n", r.now().Format(longDate))

	b.WriteString("## Overall Scores Comparison\n\n")
	b.WriteString("| Rank | Company | Final Score | Rating | Analysis Date |\n|---:|---|---:|---|---|\n")
	for i, a := range ranked(analyses) {
		fmt.Fprintf(b, "| %d | %s | %.1f | %s | %s |\n", i+1, cell(a.Company.Name),
			a.Score.FinalScore, a.Score.LevelOrDerive(), a.Company.ResearchDate.Format(shortDate))
	}

	b.WriteString("\n## Category Scores Comparison\n\n")
	b.WriteString("| Company |")
	for _, c := range model.Categories {
		fmt.Fprintf(b, " %s (%.0f%%) |", c, c.Weight()*100)
	}
	b.WriteString("\n|---|---:|---:|---:|\n")
	for _, a := range analyses {
		fmt.Fprintf(b, "| %s |", cell(a.Company.Name))
		for _, c := range model.Categories {
			fmt.Fprintf(b, " %.1f |", a.Score.CategoryScore(c))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Category Leaders\n\n")
	for _, c := range model.Categories {
		lead := categoryLeader(analyses, c)
		fmt.Fprintf(b, "- **%s:** %s (%.1f)\n", c, lead.Company.Name, lead.Score.CategoryScore(c))
	}
	b.WriteString("\n")

	for _, a := range analyses {
		fmt.Fprintf(b, "## Detailed Metrics: %s\n\n", a.Company.Name)
		writeMetricTables(b, a, "### %s\n\n")
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(b, footer, "comparison")
	return nil
}

// writeMetricTables writes one table per category that has metrics.
func writeMetricTables(b *bytes.Buffer, a *model.Analysis, heading string) {
	for _, c := range model.Categories {
		metrics := a.MetricsIn(c)
		if len(metrics) == 0 {
			continue
		}
		fmt.Fprintf(b, heading, c)
		b.WriteString("| Metric | Value | Confidence | Evidence |\n|---|---:|---:|---|\n")
		for _, m := range metrics {
			evidence := "-"
			if m.Evidence != "" {
				evidence = cell(m.Evidence)
			}
			fmt.Fprintf(b, "| %s | %.1f | %.0f%% | %s |\n", cell(m.Name), m.Value, m.Confidence*100, evidence)
		}
		b.WriteString("\n")
	}
}

// ranked returns analyses by final score, best first. Ties keep input order.
func ranked(analyses []*model.Analysis) []*model.Analysis {
	out := make([]*model.Analysis, len(analyses))
	copy(out, analyses)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.FinalScore > out[j].Score.FinalScore
	})
	return out
}

// categoryLeader returns the first analysis with the best score in c.
func categoryLeader(analyses []*model.Analysis, c model.Category) *model.Analysis {
	lead := analyses[0]
	for _, a := range analyses[1:] {
		if a.Score.CategoryScore(c) > lead.Score.CategoryScore(c) {
			lead = a
		}
	}
	return lead
}

var cellReplacer = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

// cell escapes s for use inside a Markdown table cell.
func cell(s string) string {
	return cellReplacer.Replace(s)
}
