// Package chunk splits page text into bounded, paragraph-aligned pieces
// for translation and reassembles the results.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Separator joins paragraphs inside a chunk and chunks in Join.
const Separator = "\n\n"

// DefaultMaxChunkSize is the chunk budget in runes.
const DefaultMaxChunkSize = 3000

var blankLine = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// Paragraphs splits text on blank lines and drops empty paragraphs.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range blankLine.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Chunk greedily packs paragraphs into chunks of at most maxChunkSize runes.
// A single paragraph longer than the budget is emitted whole as its own
// chunk. A non-positive budget returns all paragraphs in one chunk.
func Chunk(text string, maxChunkSize int) []string {
	paras := Paragraphs(text)
	if len(paras) == 0 {
		return nil
	}
	if maxChunkSize <= 0 {
		return []string{strings.Join(paras, Separator)}
	}

	sepLen := utf8.RuneCountInString(Separator)
	var (
		chunks  []string
		current []string
		size    int
	)
	for _, p := range paras {
		n := utf8.RuneCountInString(p)
		if len(current) > 0 && size+sepLen+n > maxChunkSize {
			chunks = append(chunks, strings.Join(current, Separator))
			current, size = nil, 0
		}
		if len(current) > 0 {
			size += sepLen
		}
		current = append(current, p)
		size += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, Separator))
	}
	return chunks
}

// Join reassembles translated chunks in order.
func Join(chunks []string) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, Separator)
}
