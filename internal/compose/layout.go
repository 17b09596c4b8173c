package compose

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// PageText is one source page's translated text.
type PageText struct {
	PageNumber int
	Text       string
}

// Sheet is one output page: a header and the body lines drawn under it.
// An empty line is vertical space.
type Sheet struct {
	SourcePage int
	Header     string
	Lines      []string
}

// Geometry describes the output page and type sizes, in points.
type Geometry struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64
	FontSize   float64
	LineHeight float64
	HeaderSize float64
}

// A4 is the default geometry: A4 with 48pt margins and 11pt body text.
var A4 = Geometry{
	PageWidth:  595,
	PageHeight: 842,
	Margin:     48,
	FontSize:   11,
	LineHeight: 15,
	HeaderSize: 9,
}

// UsableWidth is the width available to a body line.
func (g Geometry) UsableWidth() float64 {
	return g.PageWidth - 2*g.Margin
}

// headerBlock is the vertical space reserved above the body.
func (g Geometry) headerBlock() float64 {
	return g.HeaderSize * 2
}

// LinesPerSheet is how many body lines fit under the header.
func (g Geometry) LinesPerSheet() int {
	n := int(math.Floor((g.PageHeight - 2*g.Margin - g.headerBlock()) / g.LineHeight))
	if n < 1 {
		return 1
	}
	return n
}

// Layout sorts pages by number, wraps their text to the usable width and
// splits each page over as many sheets as it needs.
func Layout(pages []PageText, m Measurer, g Geometry) []Sheet {
	sorted := make([]PageText, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PageNumber < sorted[j].PageNumber
	})

	perSheet := g.LinesPerSheet()
	var sheets []Sheet
	for _, p := range sorted {
		lines := Wrap(Normalize(p.Text), m, g.FontSize, g.UsableWidth())

		header := fmt.Sprintf("Page %d", p.PageNumber)
		if len(lines) == 0 {
			sheets = append(sheets, Sheet{SourcePage: p.PageNumber, Header: header})
			continue
		}
		for start := 0; start < len(lines); {
			end := min(start+perSheet, len(lines))
			sheets = append(sheets, Sheet{
				SourcePage: p.PageNumber,
				Header:     header,
				Lines:      lines[start:end],
			})
			header = fmt.Sprintf("Page %d (cont.)", p.PageNumber)

			start = end
			for start < len(lines) && lines[start] == "" {
				start++
			}
		}
	}
	return sheets
}

var lineBreaks = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u2028", "\n",
	"\u2029", "\n",
	"\t", "    ",
)

// Normalize unifies line breaks, trims trailing space per line and
// converts the text to NFC.
func Normalize(text string) string {
	text = lineBreaks.Replace(text)
	text = strings.Map(func(r rune) rune {
		if r == '\f' || r == '\v' {
			return '\n'
		}
		if r != '\n' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	return norm.NFC.String(strings.Join(lines, "\n"))
}

// Wrap breaks text into lines no wider than width. Runs of blank lines
// become a single empty line. Words wider than a line are split by rune.
func Wrap(text string, m Measurer, size, width float64) []string {
	var out []string
	blank := func() {
		if len(out) > 0 && out[len(out)-1] != "" {
			out = append(out, "")
		}
	}

	for _, src := range strings.Split(text, "\n") {
		words := strings.Fields(src)
		if len(words) == 0 {
			blank()
			continue
		}

		current := ""
		for _, w := range words {
			if m.Advance(w, size) > width {
				if current != "" {
					out = append(out, current)
				}
				pieces := splitWord(w, m, size, width)
				out = append(out, pieces[:len(pieces)-1]...)
				current = pieces[len(pieces)-1]
				continue
			}
			candidate := w
			if current != "" {
				candidate = current + " " + w
			}
			if m.Advance(candidate, size) <= width {
				current = candidate
				continue
			}
			out = append(out, current)
			current = w
		}
		if current != "" {
			out = append(out, current)
		}
	}

	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

// splitWord breaks a single word into pieces that each fit width.
// Every piece holds at least one rune.
func splitWord(word string, m Measurer, size, width float64) []string {
	var pieces []string
	var b strings.Builder
	for _, r := range word {
		if b.Len() > 0 && m.Advance(b.String()+string(r), size) > width {
			pieces = append(pieces, b.String())
			b.Reset()
		}
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		pieces = append(pieces, b.String())
	}
	return pieces
}
