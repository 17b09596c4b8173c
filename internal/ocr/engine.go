// Package ocr recovers text from pages that carry no usable text layer.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultLanguages is the tesseract language profile used when none is configured.
var DefaultLanguages = []string{"eng", "chi_sim", "jpn"}

// DefaultTimeout bounds a single page recognition.
const DefaultTimeout = 3 * time.Minute

// Recognizer turns a single-page PDF into text.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, pagePDF, workDir string) (string, error)
}

// Splitter writes page n of src into a standalone PDF at dst.
type Splitter interface {
	Split(ctx context.Context, src string, page int, dst string) error
}

// SplitterFunc adapts a function to Splitter.
type SplitterFunc func(ctx context.Context, src string, page int, dst string) error

func (f SplitterFunc) Split(ctx context.Context, src string, page int, dst string) error {
	return f(ctx, src, page, dst)
}

// TrimPage isolates one page with pdfcpu.
func TrimPage(ctx context.Context, src string, page int, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.TrimFile(src, dst, []string{strconv.Itoa(page)}, conf); err != nil {
		return fmt.Errorf("isolate page %d: %w", page, err)
	}
	return nil
}

// Config configures an Engine.
type Config struct {
	Recognizer Recognizer
	Splitter   Splitter      // Default TrimPage
	Timeout    time.Duration // Per page (default 3m)
	Logger     *slog.Logger
}

// Engine runs OCR one page at a time.
type Engine struct {
	recognizer Recognizer
	splitter   Splitter
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates an Engine.
func New(cfg Config) *Engine {
	splitter := cfg.Splitter
	if splitter == nil {
		splitter = SplitterFunc(TrimPage)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		recognizer: cfg.Recognizer,
		splitter:   splitter,
		timeout:    timeout,
		logger:     logger,
	}
}

// Backend names the configured recognizer.
func (e *Engine) Backend() string {
	if e.recognizer == nil {
		return "none"
	}
	return e.recognizer.Name()
}

// OCRPage recognizes one page of pdfPath. Scratch files go to workDir.
// On failure it returns "" with the error; callers keep the direct text.
func (e *Engine) OCRPage(ctx context.Context, pdfPath string, page int, workDir string) (string, error) {
	if e.recognizer == nil {
		return "", fmt.Errorf("no OCR backend configured")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}

	pagePDF := filepath.Join(workDir, fmt.Sprintf("page_%04d.pdf", page))
	if err := e.splitter.Split(ctx, pdfPath, page, pagePDF); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	text, err := e.recognizer.Recognize(ctx, pagePDF, workDir)
	if err != nil {
		return "", fmt.Errorf("%s: %w", e.recognizer.Name(), err)
	}

	text = strings.TrimSpace(text)
	e.logger.Debug("page recognized",
		"page", page,
		"backend", e.recognizer.Name(),
		"chars", len(text),
		"duration", time.Since(start))
	return text, nil
}
