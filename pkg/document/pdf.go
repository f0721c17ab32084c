package document

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const (
	// wordGapRatio is the horizontal gap, relative to the font size, above
	// which two neighbouring glyphs belong to different words.
	wordGapRatio = 0.15

	// lineShiftRatio is the baseline shift, relative to the font size, that
	// starts a new line.
	lineShiftRatio = 0.5
)

type pdfPages struct {
	r *pdf.Reader
}

// DecodePDF opens a PDF held in memory.
func DecodePDF(data []byte) (Pages, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &pdfPages{r: r}, nil
}

func (p *pdfPages) NumPage() int {
	return p.r.NumPage()
}

// Fragments returns the positioned text runs of page n in content order.
func (p *pdfPages) Fragments(n int) ([]string, error) {
	page := p.r.Page(n)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d is missing", n)
	}
	return fragmentsOf(page.Content().Text), nil
}

// fragmentsOf groups glyphs into runs. A run ends at whitespace, at a font or
// baseline change, or where the next glyph is not placed right after the
// previous one.
func fragmentsOf(glyphs []pdf.Text) []string {
	var (
		fragments []string
		b         strings.Builder
		prev      *pdf.Text
	)
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			fragments = append(fragments, s)
		}
		b.Reset()
	}

	for i := range glyphs {
		g := &glyphs[i]
		if strings.TrimFunc(g.S, unicode.IsSpace) == "" {
			flush()
			prev = nil
			continue
		}
		if prev != nil && breaksRun(prev, g) {
			flush()
		}
		b.WriteString(g.S)
		prev = g
	}
	flush()
	return fragments
}

func breaksRun(prev, next *pdf.Text) bool {
	if prev.Font != next.Font {
		return true
	}

	size := math.Max(math.Abs(prev.FontSize), math.Abs(next.FontSize))
	if size == 0 {
		size = 1
	}
	if math.Abs(next.Y-prev.Y) > lineShiftRatio*size {
		return true
	}

	gap := next.X - (prev.X + prev.W)
	return gap > wordGapRatio*size || gap < -size
}
