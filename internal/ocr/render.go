package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/folio/internal/providers"
)

// RenderFunc rasterizes the first page of a PDF to PNG bytes.
type RenderFunc func(ctx context.Context, pagePDF, workDir string) ([]byte, error)

// RenderPNG renders with pdftoppm (poppler-utils) at 300 DPI.
func RenderPNG(ctx context.Context, pagePDF, workDir string) ([]byte, error) {
	prefix := filepath.Join(workDir, strings.TrimSuffix(filepath.Base(pagePDF), filepath.Ext(pagePDF)))

	// -singlefile writes <prefix>.png without a page suffix
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", "1",
		"-l", "1",
		"-r", "300",
		"-singlefile",
		pagePDF,
		prefix,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, tail(output, 512))
	}

	data, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return data, nil
}

// ProviderRecognizer renders the page and sends the image to an OCR
// provider (tesseract, mistral). The provider is resolved on every call so
// a config reload takes effect on the next page.
type ProviderRecognizer struct {
	Provider string
	Lookup   func(name string) (providers.OCRProvider, error)
	Render   RenderFunc // Default RenderPNG
}

func (p *ProviderRecognizer) Name() string { return p.Provider }

// Recognize renders pagePDF and returns the provider's text.
func (p *ProviderRecognizer) Recognize(ctx context.Context, pagePDF, workDir string) (string, error) {
	provider, err := p.Lookup(p.Provider)
	if err != nil {
		return "", err
	}

	render := p.Render
	if render == nil {
		render = RenderPNG
	}
	img, err := render(ctx, pagePDF, workDir)
	if err != nil {
		return "", err
	}

	result, err := provider.ProcessImage(ctx, img, 1)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("%s: %s", provider.Name(), result.ErrorMessage)
	}
	return result.Text, nil
}
