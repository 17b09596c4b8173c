//go:build tesseract

package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOCR implements OCRProvider with the local Tesseract library.
type TesseractOCR struct {
	languages []string
}

// NewTesseractOCR creates a Tesseract backed provider.
func NewTesseractOCR(cfg TesseractConfig) (OCRProvider, error) {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = DefaultTesseractLanguages
	}
	return &TesseractOCR{languages: langs}, nil
}

// Name returns the provider identifier.
func (t *TesseractOCR) Name() string {
	return TesseractName
}

// RequestsPerSecond is unbounded for a local engine; callers serialize pages.
func (t *TesseractOCR) RequestsPerSecond() float64 {
	return 0
}

// MaxRetries returns the max retry count.
func (t *TesseractOCR) MaxRetries() int {
	return 0
}

// RetryDelayBase returns the base retry delay.
func (t *TesseractOCR) RetryDelayBase() time.Duration {
	return 0
}

// ProcessImage runs Tesseract with orientation detection on a page image.
func (t *TesseractOCR) ProcessImage(ctx context.Context, image []byte, pageNum int) (*OCRResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return &OCRResult{ErrorMessage: err.Error()}, err
	}

	c := gosseract.NewClient()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PSM_AUTO_OSD); err != nil {
		return nil, fmt.Errorf("set page seg mode: %w", err)
	}
	if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), "300"); err != nil {
		return nil, fmt.Errorf("set dpi: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return &OCRResult{ErrorMessage: err.Error(), ExecutionTime: time.Since(start)}, fmt.Errorf("recognize text: %w", err)
	}

	return &OCRResult{
		Success: true,
		Text:    strings.TrimSpace(text),
		Metadata: map[string]any{
			"page_num":  pageNum,
			"languages": t.languages,
		},
		ExecutionTime: time.Since(start),
	}, nil
}

var _ OCRProvider = (*TesseractOCR)(nil)
