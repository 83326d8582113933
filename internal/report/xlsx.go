package report

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/esg-research/internal/model"
)

const (
	summarySheet  = "Summary"
	maxSheetName  = 31
	scoreFormat   = "0.0"
	percentFormat = "0%"
)

var summaryHeader = []string{
	"Rank", "Company", "Final Score", "Rating", "Confidence",
	"Environmental", "Social", "Governance", "Analysis Date",
}

var metricHeader = []string{"Category", "Metric", "Value", "Confidence", "Evidence"}

// writeWorkbook writes a Summary sheet ranking every analysis, then one
// metrics sheet per company in input order.
func (r *Renderer) writeWorkbook(b *bytes.Buffer, analyses []*model.Analysis) error {
	f := xlsx.NewFile()
	header := headerStyle()

	summary, err := f.AddSheet(summarySheet)
	if err != nil {
		return err
	}
	addHeader(summary, summaryHeader, header)
	for i, a := range ranked(analyses) {
		row := summary.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(a.Company.Name)
		row.AddCell().SetFloatWithFormat(a.Score.FinalScore, scoreFormat)
		row.AddCell().SetString(string(a.Score.LevelOrDerive()))
		row.AddCell().SetFloatWithFormat(a.Score.Confidence, percentFormat)
		for _, c := range model.Categories {
			row.AddCell().SetFloatWithFormat(a.Score.CategoryScore(c), scoreFormat)
		}
		row.AddCell().SetString(a.Company.ResearchDate.Format("2006-01-02"))
	}

	used := map[string]bool{}
	for _, a := range analyses {
		sheet, err := f.AddSheet(sheetName(a.Company.Name, used))
		if err != nil {
			return err
		}
		addHeader(sheet, metricHeader, header)
		for _, c := range model.Categories {
			for _, m := range a.MetricsIn(c) {
				row := sheet.AddRow()
				row.AddCell().SetString(string(m.Category))
				row.AddCell().SetString(m.Name)
				row.AddCell().SetFloatWithFormat(m.Value, scoreFormat)
				row.AddCell().SetFloatWithFormat(m.Confidence, percentFormat)
				row.AddCell().SetString(m.Evidence)
			}
		}
	}

	return f.Write(b)
}

func addHeader(sheet *xlsx.Sheet, titles []string, style *xlsx.Style) {
	row := sheet.AddRow()
	for _, t := range titles {
		c := row.AddCell()
		c.SetString(t)
		c.SetStyle(style)
	}
}

func headerStyle() *xlsx.Style {
	s := xlsx.NewStyle()
	s.Font.Bold = true
	s.Font.Color = "FFFFFFFF"
	s.Fill = *xlsx.NewFill("solid", "FF374151", "FF374151")
	s.ApplyFont = true
	s.ApplyFill = true
	return s
}

var sheetNameReplacer = strings.NewReplacer(
	"[", "", "]", "", ":", "", "*", "", "?", "", "/", "", `\`, "",
)

// sheetName returns a valid, unused worksheet name for company and marks it
// used. Names are capped at 31 characters; duplicates get a numeric suffix.
func sheetName(company string, used map[string]bool) string {
	base := strings.Trim(strings.TrimSpace(sheetNameReplacer.Replace(company)), "'")
	if base == "" {
		base = "Company"
	}
	name := truncateRunes(base, maxSheetName)
	for n := 2; used[strings.ToLower(name)] || strings.EqualFold(name, summarySheet); n++ {
		suffix := " (" + strconv.Itoa(n) + ")"
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
