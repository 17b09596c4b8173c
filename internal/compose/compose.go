// Package compose renders translated page text into a new paginated PDF
// with an embedded Unicode font.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/goregular"
)

const fontFamily = "body"

// MaxReplacedShare is the largest fraction of visible runes the font may
// lack before Compose fails instead of printing placeholders.
const MaxReplacedShare = 0.05

// ErrMissingGlyphs is wrapped by the CompositionError returned when the
// font cannot render too much of the text.
var ErrMissingGlyphs = errors.New("font is missing glyphs")

// CompositionError is returned when the output document cannot be built.
// It aborts the job.
type CompositionError struct {
	Op  string
	Err error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("composition %s: %v", e.Op, e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }

func (e *CompositionError) Fatal() bool { return true }

// Config configures a Composer.
type Config struct {
	FontPath string  // TTF to embed; empty uses Go Regular (Latin, Greek, Cyrillic only)
	FontSize float64 // Body size in points (default 11)
	Logger   *slog.Logger
}

// Composer lays out and writes translated documents.
type Composer struct {
	fontPath string
	geometry Geometry
	logger   *slog.Logger

	once     sync.Once
	fontData []byte
	measurer *GlyphMeasurer
	fontErr  error
}

// New creates a composer. The font is loaded on first use.
func New(cfg Config) *Composer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := A4
	if cfg.FontSize > 0 {
		g.LineHeight = g.LineHeight * cfg.FontSize / g.FontSize
		g.FontSize = cfg.FontSize
	}
	return &Composer{
		fontPath: cfg.FontPath,
		geometry: g,
		logger:   logger,
	}
}

// Geometry returns the page geometry used by the composer.
func (c *Composer) Geometry() Geometry {
	return c.geometry
}

func (c *Composer) loadFont() error {
	c.once.Do(func() {
		data := goregular.TTF
		if c.fontPath != "" {
			b, err := os.ReadFile(c.fontPath)
			if err != nil {
				c.fontErr = err
				return
			}
			data = b
		}
		m, err := NewGlyphMeasurer(data)
		if err != nil {
			c.fontErr = err
			return
		}
		c.fontData, c.measurer = data, m
		c.logger.Debug("font loaded", "path", c.fontPath, "bytes", len(data))
	})
	return c.fontErr
}

// Compose lays out pages and writes the PDF to outputPath, returning the
// path written.
func (c *Composer) Compose(ctx context.Context, pages []PageText, outputPath, title string) (string, error) {
	if err := c.loadFont(); err != nil {
		return "", &CompositionError{Op: "load font", Err: err}
	}

	var replaced, visible int
	prepared := make([]PageText, len(pages))
	for i, p := range pages {
		text, miss, seen := c.coverable(Normalize(p.Text))
		replaced += miss
		visible += seen
		prepared[i] = PageText{PageNumber: p.PageNumber, Text: text}
	}
	if replaced > 0 {
		if float64(replaced) > MaxReplacedShare*float64(visible) {
			return "", &CompositionError{Op: "cover text", Err: fmt.Errorf(
				"%w: %d of %d characters cannot be rendered with %s; set compose.font_path to a font covering the target script",
				ErrMissingGlyphs, replaced, visible, c.fontName())}
		}
		c.logger.Warn("font is missing glyphs, printing placeholders",
			"font", c.fontName(), "replaced", replaced, "characters", visible)
	}
	sheets := Layout(prepared, c.measurer, c.geometry)

	g := c.geometry
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: g.PageWidth, H: g.PageHeight}})
	pdf.SetInfo(gopdf.PdfInfo{
		Title:        title,
		Creator:      "folio",
		Producer:     "folio",
		CreationDate: time.Now(),
	})
	if err := pdf.AddTTFFontData(fontFamily, c.fontData); err != nil {
		return "", &CompositionError{Op: "embed font", Err: err}
	}

	if len(sheets) == 0 {
		sheets = []Sheet{{Header: title}}
	}
	for _, s := range sheets {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := c.drawSheet(pdf, s); err != nil {
			return "", &CompositionError{Op: "draw", Err: err}
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", &CompositionError{Op: "write", Err: err}
	}
	if err := pdf.WritePdf(outputPath); err != nil {
		return "", &CompositionError{Op: "write", Err: err}
	}

	c.logger.Info("composed document", "path", outputPath, "sheets", len(sheets), "pages", len(pages))
	return outputPath, nil
}

func (c *Composer) drawSheet(pdf *gopdf.GoPdf, s Sheet) error {
	g := c.geometry
	pdf.AddPage()

	if err := pdf.SetFont(fontFamily, "", g.HeaderSize); err != nil {
		return err
	}
	pdf.SetXY(g.Margin, g.Margin)
	if err := pdf.Cell(nil, s.Header); err != nil {
		return fmt.Errorf("header: %w", err)
	}

	if err := pdf.SetFont(fontFamily, "", g.FontSize); err != nil {
		return err
	}
	y := g.Margin + g.headerBlock()
	for _, line := range s.Lines {
		if line != "" {
			pdf.SetXY(g.Margin, y)
			if err := pdf.Cell(nil, line); err != nil {
				return fmt.Errorf("line %q: %w", line, err)
			}
		}
		y += g.LineHeight
	}
	return nil
}

// coverable replaces runes the embedded font has no glyph for. It returns
// the number replaced and the number of non-space runes seen.
func (c *Composer) coverable(text string) (string, int, int) {
	var replaced, visible int
	out := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			if r == '\n' || c.measurer.Covers(r) {
				return r
			}
			return ' '
		}
		visible++
		if c.measurer.Covers(r) {
			return r
		}
		replaced++
		return '?'
	}, text)
	return out, replaced, visible
}

func (c *Composer) fontName() string {
	if c.fontPath == "" {
		return "the built-in Go Regular font"
	}
	return c.fontPath
}
