// Package report renders stored analyses as Markdown, XLSX workbooks and PNG
// score cards, for one company or a comparison.
package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/scorer"
)

// Format is a report output format.
type Format string

// Supported formats.
const (
	Markdown Format = "md"
	XLSX     Format = "xlsx"
	PNG      Format = "png"
)

// Formats lists every supported format.
var Formats = []Format{Markdown, XLSX, PNG}

// ParseFormat returns the format named s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Markdown, XLSX, PNG:
		return f, nil
	case "markdown":
		return Markdown, nil
	}
	return "", eris.Errorf("report: unknown format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case PNG:
		return "image/png"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Renderer renders analyses. It is safe for concurrent use.
type Renderer struct {
	scorer *scorer.Scorer
	now    func() time.Time
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock sets the clock used for generation dates and file names.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithScorer sets the scorer used to recompute breakdowns and
// recommendations from stored metrics.
func WithScorer(s *scorer.Scorer) Option {
	return func(r *Renderer) { r.scorer = s }
}

// NewRenderer returns a Renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{scorer: scorer.New(), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render renders analyses in format f. One analysis yields a company report;
// more yield a comparison.
func (r *Renderer) Render(ctx context.Context, f Format, analyses []*model.Analysis) ([]byte, error) {
	if len(analyses) == 0 {
		return nil, eris.New("report: no analyses to render")
	}
	for _, a := range analyses {
		if a == nil || a.Score == nil {
			return nil, eris.New("report: analysis has no score")
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "report: render")
	}

	var buf bytes.Buffer
	var err error
	switch f {
	case Markdown:
		if len(analyses) == 1 {
			err = r.writeMarkdown(&buf, analyses[0])
		} else {
			err = r.writeComparisonMarkdown(&buf, analyses)
		}
	case XLSX:
		err = r.writeWorkbook(&buf, analyses)
	case PNG:
		err = r.writeScoreCards(&buf, analyses)
	default:
		return nil, eris.Errorf("report: unknown format %q", f)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "report: render %s", f)
	}
	return buf.Bytes(), nil
}

// FileName returns the download name for a report on analyses in format f.
func (r *Renderer) FileName(f Format, analyses []*model.Analysis) string {
	date := r.now().Format("2006-01-02")
	if len(analyses) == 1 {
		return slug(analyses[0].Company.Name) + "_Sustainability_Report_" + date + "." + string(f)
	}
	parts := make([]string, len(analyses))
	for i, a := range analyses {
		parts[i] = slug(a.Company.Name)
	}
	return "Comparison_" + strings.Join(parts, "_vs_") + "_" + date + "." + string(f)
}

var titleCase = cases.Title(language.English, cases.NoLower)

// slug title-cases name and joins its words with underscores, dropping
// characters that are unsafe in file names.
func slug(name string) string {
	var words []string
	for _, w := range strings.Fields(titleCase.String(name)) {
		w = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.' || r == '&' {
				return r
			}
			return -1
		}, w)
		if w != "" {
			words = append(words, w)
		}
	}
	s := strings.Trim(strings.Join(words, "_"), "._")
	if s == "" {
		return "Company"
	}
	return s
}

// Exporter writes rendered reports to a directory.
type Exporter struct {
	renderer *Renderer
	dir      string
	formats  []Format
}

// NewExporter writes reports in formats (all formats when empty) under dir.
func NewExporter(r *Renderer, dir string, formats ...Format) *Exporter {
	if len(formats) == 0 {
		formats = Formats
	}
	return &Exporter{renderer: r, dir: dir, formats: formats}
}

// Export renders every configured format concurrently and writes the files.
// It returns the written paths in format order.
func (e *Exporter) Export(ctx context.Context, analyses []*model.Analysis) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create %s", e.dir)
	}

	paths := make([]string, len(e.formats))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range e.formats {
		g.Go(func() error {
			data, err := e.renderer.Render(gctx, f, analyses)
			if err != nil {
				return err
			}
			path := filepath.Join(e.dir, e.renderer.FileName(f, analyses))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return eris.Wrapf(err, "report: write %s", path)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("report: exported",
		zap.Int("companies", len(analyses)),
		zap.Strings("files", paths),
	)
	return paths, nil
}

// levelColors are the rating colors shared by the workbook and score cards.
var levelColors = map[model.Level]string{
	model.LevelExcellent: "#059669",
	model.LevelGood:      "#10b981",
	model.LevelFair:      "#f59e0b",
	model.LevelPoor:      "#ef4444",
	model.LevelVeryPoor:  "#dc2626",
}

var categoryColors = map[model.Category]string{
	model.Environmental: "#10b981",
	model.Social:        "#3b82f6",
	model.Governance:    "#8b5cf6",
}

func levelColor(l model.Level) string {
	if c, ok := levelColors[l]; ok {
		return c
	}
	return "#6b7280"
}
