// Package extract pulls selectable text out of each page of a PDF and flags
// pages that look scanned.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/jackzampolin/folio/internal/jobs"
)

// DefaultMinWords is the word count below which a page is sent to OCR.
const DefaultMinWords = 20

// OCRPolicy decides whether extracted text is too thin to trust.
type OCRPolicy interface {
	NeedsOCR(text string) bool
}

// WordCountPolicy flags pages with fewer than MinWords words.
type WordCountPolicy struct {
	MinWords int
}

// NeedsOCR reports whether text has fewer words than the threshold.
func (p WordCountPolicy) NeedsOCR(text string) bool {
	min := p.MinWords
	if min <= 0 {
		min = DefaultMinWords
	}
	return len(strings.Fields(text)) < min
}

// ExtractionError is returned when the document cannot be opened or read.
// It aborts the job.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return "extraction failed: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Fatal() bool { return true }

// Config configures a PDFExtractor.
type Config struct {
	Policy OCRPolicy // Default WordCountPolicy{MinWords: DefaultMinWords}
	Logger *slog.Logger
}

// PDFExtractor reads text-drawing operators page by page.
type PDFExtractor struct {
	policy OCRPolicy
	logger *slog.Logger
}

// New creates a PDFExtractor.
func New(cfg Config) *PDFExtractor {
	policy := cfg.Policy
	if policy == nil {
		policy = WordCountPolicy{MinWords: DefaultMinWords}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{policy: policy, logger: logger}
}

// Extract returns one pending record per page, in document order.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) ([]jobs.PageRecord, error) {
	r, err := open(data)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}

	n := r.NumPage()
	if n == 0 {
		return nil, &ExtractionError{Err: errors.New("document has no pages")}
	}

	records := make([]jobs.PageRecord, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := pageText(r, i)
		if err != nil {
			e.logger.Warn("page content unreadable", "page", i, "error", err)
			text = ""
		}
		records = append(records, jobs.PageRecord{
			PageNumber:   i,
			OriginalText: text,
			NeedsOCR:     e.policy.NeedsOCR(text),
			Status:       jobs.PagePending,
		})
	}

	e.logger.Debug("extracted pages", "pages", n)
	return records, nil
}

// open parses the document. The parser panics on some malformed input.
func open(data []byte) (r *pdf.Reader, err error) {
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func pageText(r *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("decode content: %v", p)
		}
	}()

	page := r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return joinText(page.Content().Text), nil
}
