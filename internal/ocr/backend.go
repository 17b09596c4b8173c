package ocr

import (
	"fmt"

	"github.com/jackzampolin/folio/internal/providers"
)

// Backend names accepted by NewRecognizer besides registry OCR providers.
const (
	BackendNone           = "none"
	BackendOCRmyPDF       = "ocrmypdf"
	BackendOCRmyPDFDocker = "ocrmypdf-docker"
)

// BackendConfig selects and configures a recognizer.
type BackendConfig struct {
	Backend     string
	Binary      string
	DockerImage string
	UseDocker   bool
	Languages   []string
	Registry    *providers.Registry
}

// NewRecognizer builds the recognizer named by cfg.Backend. Any name other
// than the ocrmypdf variants is looked up in the provider registry.
// BackendNone returns a nil recognizer.
func NewRecognizer(cfg BackendConfig) (Recognizer, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendOCRmyPDF:
		if !cfg.UseDocker {
			return &OCRmyPDF{Binary: cfg.Binary, Languages: cfg.Languages}, nil
		}
		fallthrough
	case BackendOCRmyPDFDocker:
		d, err := NewDockerOCRmyPDF(cfg.DockerImage, cfg.Languages)
		if err != nil {
			return nil, err
		}
		return d, nil
	}

	if cfg.Registry == nil {
		return nil, fmt.Errorf("unknown OCR backend %q", cfg.Backend)
	}
	if _, err := cfg.Registry.GetOCR(cfg.Backend); err != nil {
		return nil, fmt.Errorf("OCR backend %q: %w", cfg.Backend, err)
	}
	return &ProviderRecognizer{Provider: cfg.Backend, Lookup: cfg.Registry.GetOCR}, nil
}
