package testutil

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	pdfTop   = 720
	pdfPitch = 16
)

// BuildPDF assembles a minimal PDF with one page per argument. Each string
// becomes one line of 12pt Helvetica; an empty string leaves an extra gap,
// which the extractor reads as a paragraph break.
func BuildPDF(pages ...[]string) []byte {
	var objects []string

	// 1: catalog, 2: page tree, 3: font, then content+page pairs.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>", glyphWidths()),
	)

	for i, lines := range pages {
		stream := contentStream(lines)
		objects = append(objects,
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 4+2*i),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func contentStream(lines []string) string {
	var sb strings.Builder
	y := pdfTop
	for _, line := range lines {
		if line == "" {
			y -= pdfPitch
			continue
		}
		fmt.Fprintf(&sb, "BT /F1 12 Tf 72 %d Td (%s) Tj ET\n", y, escapePDF(line))
		y -= pdfPitch
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// glyphWidths gives every printable ASCII glyph the same 500/1000 em advance.
func glyphWidths() string {
	w := make([]string, 126-32+1)
	for i := range w {
		w[i] = "500"
	}
	return strings.Join(w, " ")
}

func escapePDF(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// Words returns n space-separated filler words.
func Words(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i+1)
	}
	return strings.Join(words, " ")
}
