package providers

import "errors"

const TesseractName = "tesseract"

// DefaultTesseractLanguages covers Latin scripts plus simplified Chinese and Japanese.
var DefaultTesseractLanguages = []string{"eng", "chi_sim", "jpn"}

// ErrTesseractUnavailable is returned by binaries built without the tesseract tag.
var ErrTesseractUnavailable = errors.New("tesseract support not compiled in (build with -tags tesseract)")

// TesseractConfig configures the Tesseract provider.
type TesseractConfig struct {
	Languages []string
}
