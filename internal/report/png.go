package report

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/rotisserie/eris"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/sells-group/esg-research/internal/model"
)

// Score card geometry, in pixels.
const (
	cardWidth  = 800
	cardHeight = 340
	margin     = 40.0
	barX       = 220.0
	barWidth   = 460.0
	barHeight  = 20.0
)

var loadFonts = sync.OnceValues(func() (*fonts, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, eris.Wrap(err, "report: parse regular font")
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, eris.Wrap(err, "report: parse bold font")
	}
	return &fonts{regular: regular, bold: bold}, nil
})

type fonts struct {
	regular *truetype.Font
	bold    *truetype.Font
}

// face returns a new face; faces cache glyphs and are not shared between
// renders.
func (f *fonts) face(bold bool, size float64) font.Face {
	ttf := f.regular
	if bold {
		ttf = f.bold
	}
	return truetype.NewFace(ttf, &truetype.Options{Size: size})
}

// writeScoreCards draws one score card per analysis, stacked vertically.
func (r *Renderer) writeScoreCards(b *bytes.Buffer, analyses []*model.Analysis) error {
	fs, err := loadFonts()
	if err != nil {
		return err
	}

	dc := gg.NewContext(cardWidth, cardHeight*len(analyses))
	dc.SetHexColor("#ffffff")
	dc.Clear()
	for i, a := range analyses {
		drawCard(dc, fs, a, float64(i*cardHeight))
	}
	return dc.EncodePNG(b)
}

func drawCard(dc *gg.Context, fs *fonts, a *model.Analysis, top float64) {
	sc := a.Score
	level := sc.LevelOrDerive()

	dc.SetHexColor(levelColor(level))
	dc.DrawRectangle(0, top, cardWidth, 8)
	dc.Fill()

	dc.SetHexColor("#111827")
	dc.SetFontFace(fs.face(true, 30))
	dc.DrawString(a.Company.Name, margin, top+60)

	dc.SetHexColor(levelColor(level))
	dc.SetFontFace(fs.face(true, 48))
	dc.DrawString(fmt.Sprintf("%.1f/100", sc.FinalScore), margin, top+130)
	dc.SetFontFace(fs.face(false, 22))
	dc.DrawString(string(level), margin, top+165)

	dc.SetFontFace(fs.face(false, 18))
	for i, c := range model.Categories {
		y := top + 215 + float64(i)*40
		v := clampPercent(sc.CategoryScore(c))

		dc.SetHexColor("#374151")
		dc.DrawString(string(c), margin, y)

		dc.SetHexColor("#e5e7eb")
		dc.DrawRoundedRectangle(barX, y-barHeight+4, barWidth, barHeight, 4)
		dc.Fill()
		if v > 0 {
			dc.SetHexColor(categoryColors[c])
			dc.DrawRoundedRectangle(barX, y-barHeight+4, barWidth*v/100, barHeight, 4)
			dc.Fill()
		}

		dc.SetHexColor("#374151")
		dc.DrawStringAnchored(fmt.Sprintf("%.1f", sc.CategoryScore(c)), cardWidth-margin, y, 1, 0)
	}

	if top > 0 {
		dc.SetHexColor("#d1d5db")
		dc.SetLineWidth(1)
		dc.DrawLine(0, top, cardWidth, top)
		dc.Stroke()
	}
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
