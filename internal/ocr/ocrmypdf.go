package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// OCRmyPDF runs the ocrmypdf CLI on the host.
type OCRmyPDF struct {
	Binary    string   // Default "ocrmypdf"
	Languages []string // Default DefaultLanguages
}

func (o *OCRmyPDF) Name() string { return "ocrmypdf" }

// Recognize runs ocrmypdf with a sidecar text file and returns its contents.
func (o *OCRmyPDF) Recognize(ctx context.Context, pagePDF, workDir string) (string, error) {
	bin := o.Binary
	if bin == "" {
		bin = "ocrmypdf"
	}

	base := strings.TrimSuffix(filepath.Base(pagePDF), filepath.Ext(pagePDF))
	sidecar := filepath.Join(workDir, base+".txt")
	out := filepath.Join(workDir, base+".ocr.pdf")

	cmd := exec.CommandContext(ctx, bin, ocrmypdfArgs(o.Languages, pagePDF, out, sidecar)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ocrmypdf failed: %w (output: %s)", err, tail(output, 512))
	}
	return readSidecar(sidecar)
}

// ocrmypdfArgs builds the CLI arguments shared by the host and docker backends.
func ocrmypdfArgs(langs []string, in, out, sidecar string) []string {
	if len(langs) == 0 {
		langs = DefaultLanguages
	}
	return []string{
		"--rotate-pages",
		"--deskew",
		"--force-ocr",
		"-l", strings.Join(langs, "+"),
		"--sidecar", sidecar,
		"--output-type", "pdf",
		in, out,
	}
}

// readSidecar loads ocrmypdf's text output. Pages are separated by form feeds.
func readSidecar(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read sidecar: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\f", "\n\n")
	return strings.TrimSpace(text), nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}
