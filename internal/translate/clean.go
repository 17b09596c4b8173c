package translate

import (
	"regexp"
	"strings"
)

var (
	fencePattern    = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*[ \\t]*\\n(.*?)\\n?```$")
	preamblePattern = regexp.MustCompile(`(?i)^(?:sure[,!.]?\s*)?(?:here(?:'s| is| are)\s+(?:the\s+|your\s+|a\s+)?(?:[\p{L}-]+\s+)?translat(?:ion|ed text)[^:\n]*:|translation\s*:|translated text\s*:)[ \t]*\n?`)
)

// Clean strips wrappers models add around a translation: a surrounding
// code fence and a leading "Here is the translation:" line.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if loc := preamblePattern.FindStringIndex(s); loc != nil {
		s = strings.TrimSpace(s[loc[1]:])
	}
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	return s
}
