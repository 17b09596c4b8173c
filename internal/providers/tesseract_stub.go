//go:build !tesseract

package providers

// NewTesseractOCR reports that Tesseract support is not compiled in.
func NewTesseractOCR(cfg TesseractConfig) (OCRProvider, error) {
	return nil, ErrTesseractUnavailable
}
