package compose

import (
	"bytes"
	"fmt"
	"sync"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// Measurer reports the horizontal advance of text set at a point size.
type Measurer interface {
	Advance(text string, size float64) float64
}

// GlyphMeasurer measures text with HarfBuzz shaping against a TrueType face,
// so wrapping decisions use the same advances the embedded font renders with.
type GlyphMeasurer struct {
	mu     sync.Mutex
	face   *gofont.Face
	shaper shaping.HarfbuzzShaper
}

// NewGlyphMeasurer parses ttf and returns a measurer for it.
func NewGlyphMeasurer(ttf []byte) (*GlyphMeasurer, error) {
	face, err := gofont.ParseTTF(bytes.NewReader(ttf))
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &GlyphMeasurer{face: face}, nil
}

// Advance returns the width of text in points at the given size.
func (m *GlyphMeasurer) Advance(text string, size float64) float64 {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}
	script := detectScript(runes)

	m.mu.Lock()
	out := m.shaper.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      m.face,
		Size:      fixed.Int26_6(size * 64),
		Script:    script,
		Language:  language.DefaultLanguage(),
	})
	m.mu.Unlock()

	var total fixed.Int26_6
	for _, g := range out.Glyphs {
		total += g.XAdvance
	}
	return float64(total) / 64.0
}

// Covers reports whether the face has a glyph for r.
func (m *GlyphMeasurer) Covers(r rune) bool {
	_, ok := m.face.NominalGlyph(r)
	return ok
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

// detectScript picks the most frequent script in runes, defaulting to Latin.
func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	best, bestCount := language.Latin, 0
	for _, r := range runes {
		s, ok := scriptOf(r)
		if !ok {
			continue
		}
		counts[s]++
		if counts[s] > bestCount {
			best, bestCount = s, counts[s]
		}
	}
	return best
}

var scriptTables = []struct {
	table  *unicode.RangeTable
	script language.Script
}{
	{unicode.Latin, language.Latin},
	{unicode.Cyrillic, language.Cyrillic},
	{unicode.Greek, language.Greek},
	{unicode.Arabic, language.Arabic},
	{unicode.Hebrew, language.Hebrew},
	{unicode.Han, language.Han},
	{unicode.Hiragana, language.Hiragana},
	{unicode.Katakana, language.Katakana},
	{unicode.Hangul, language.Hangul},
	{unicode.Thai, language.Thai},
	{unicode.Devanagari, language.Devanagari},
}

func scriptOf(r rune) (language.Script, bool) {
	for _, st := range scriptTables {
		if unicode.Is(st.table, r) {
			return st.script, true
		}
	}
	return 0, false
}
