package jobs

import (
	"fmt"
	"strings"
)

// MergePolicy decides how OCR text combines with directly extracted text.
type MergePolicy string

const (
	// MergePreferOCR uses the OCR text when it is non-empty.
	MergePreferOCR MergePolicy = "prefer-ocr"
	// MergeAppend keeps the direct text and adds OCR text it does not already contain.
	MergeAppend MergePolicy = "append"
)

// ParseMergePolicy validates a configured policy name. Empty means MergePreferOCR.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch p := MergePolicy(strings.TrimSpace(s)); p {
	case "":
		return MergePreferOCR, nil
	case MergePreferOCR, MergeAppend:
		return p, nil
	default:
		return "", fmt.Errorf("unknown OCR merge policy %q", s)
	}
}

// Merge combines direct and OCR text for one page.
func (p MergePolicy) Merge(direct, ocr string) string {
	direct = strings.TrimSpace(direct)
	ocr = strings.TrimSpace(ocr)
	if ocr == "" {
		return direct
	}
	if direct == "" {
		return ocr
	}

	switch p {
	case MergeAppend:
		if strings.Contains(collapse(direct), collapse(ocr)) {
			return direct
		}
		return direct + "\n\n" + ocr
	default:
		return ocr
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
