package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	// spaceGap is the horizontal gap, in font sizes, that separates words.
	spaceGap = 0.25
	// paragraphGap is the vertical gap, in typical line pitches, that separates paragraphs.
	paragraphGap = 1.8
	// defaultFontSize is assumed when a run reports no size.
	defaultFontSize = 10.0
)

type line struct {
	y    float64
	size float64
	runs []pdf.Text
}

var manyNewlines = regexp.MustCompile(`\n{3,}`)

// joinText rebuilds reading-order text from positioned glyph runs.
func joinText(runs []pdf.Text) string {
	lines := groupLines(runs)
	if len(lines) == 0 {
		return ""
	}

	pitch := typicalPitch(lines)
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
			if pitch > 0 && lines[i-1].y-l.y > paragraphGap*pitch {
				b.WriteByte('\n')
			}
		}
		b.WriteString(strings.TrimRightFunc(l.text(), unicode.IsSpace))
	}

	out := manyNewlines.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

// groupLines buckets runs by baseline and orders lines top to bottom and
// runs left to right.
func groupLines(runs []pdf.Text) []*line {
	var lines []*line
	for _, r := range runs {
		if r.S == "" {
			continue
		}
		size := r.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		var target *line
		for _, l := range lines {
			if abs(l.y-r.Y) <= size*0.5 {
				target = l
				break
			}
		}
		if target == nil {
			target = &line{y: r.Y, size: size}
			lines = append(lines, target)
		}
		target.runs = append(target.runs, r)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })
	for _, l := range lines {
		sort.SliceStable(l.runs, func(i, j int) bool { return l.runs[i].X < l.runs[j].X })
	}
	return lines
}

func (l *line) text() string {
	var b strings.Builder
	for i, r := range l.runs {
		if i > 0 {
			prev := l.runs[i-1]
			size := prev.FontSize
			if size <= 0 {
				size = defaultFontSize
			}
			gap := r.X - (prev.X + prev.W)
			if gap > spaceGap*size && !endsWithSpace(prev.S) && !startsWithSpace(r.S) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(r.S)
	}
	return b.String()
}

// typicalPitch is the median distance between consecutive baselines.
func typicalPitch(lines []*line) float64 {
	if len(lines) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(lines)-1)
	for i := 1; i < len(lines); i++ {
		if d := lines[i-1].y - lines[i].y; d > 0 {
			gaps = append(gaps, d)
		}
	}
	if len(gaps) == 0 {
		return 0
	}
	sort.Float64s(gaps)
	return gaps[(len(gaps)-1)/2]
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
