package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want []string
	}{
		{
			name: "empty",
			text: "  \n\n ",
			max:  100,
			want: nil,
		},
		{
			name: "single paragraph fits",
			text: "hello world",
			max:  100,
			want: []string{"hello world"},
		},
		{
			name: "packs paragraphs up to budget",
			text: "aaaa\n\nbbbb\n\ncccc",
			max:  10,
			want: []string{"aaaa\n\nbbbb", "cccc"},
		},
		{
			name: "blank lines with spaces split paragraphs",
			text: "one\n   \ntwo",
			max:  3,
			want: []string{"one", "two"},
		},
		{
			name: "single newline stays inside paragraph",
			text: "line one\nline two",
			max:  100,
			want: []string{"line one\nline two"},
		},
		{
			name: "oversized paragraph emitted whole",
			text: "short\n\n" + strings.Repeat("x", 50) + "\n\nend",
			max:  20,
			want: []string{"short", strings.Repeat("x", 50), "end"},
		},
		{
			name: "zero budget returns one chunk",
			text: "a\n\nb",
			max:  0,
			want: []string{"a\n\nb"},
		},
		{
			name: "budget counts runes",
			text: "ééé\n\nààà",
			max:  8,
			want: []string{"ééé\n\nààà"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.text, tt.max)
			if len(got) != len(tt.want) {
				t.Fatalf("Chunk() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunk_RespectsBudget(t *testing.T) {
	var paras []string
	for i := 0; i < 40; i++ {
		paras = append(paras, strings.Repeat("word ", i%7+1))
	}
	text := strings.Join(paras, "\n\n")

	for _, c := range Chunk(text, 60) {
		if n := utf8.RuneCountInString(c); n > 60 {
			t.Errorf("chunk has %d runes, budget 60: %q", n, c)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := "alpha beta\n\ngamma\n\ndelta epsilon zeta\n\neta"
	first := Chunk(text, 15)
	for i := 0; i < 5; i++ {
		again := Chunk(text, 15)
		if strings.Join(again, "|") != strings.Join(first, "|") {
			t.Fatalf("run %d differs: %q vs %q", i, again, first)
		}
	}
}

func TestJoin_PreservesParagraphCount(t *testing.T) {
	texts := []string{
		"one",
		"one\n\ntwo\n\nthree",
		"para with\nline break\n\nsecond para\n\n\n\nthird after extra blanks",
		strings.Repeat("long paragraph text ", 200) + "\n\ntail",
	}

	for _, text := range texts {
		for _, max := range []int{1, 10, 100, DefaultMaxChunkSize} {
			joined := Join(Chunk(text, max))
			if got, want := len(Paragraphs(joined)), len(Paragraphs(text)); got != want {
				t.Errorf("max=%d: paragraphs after round trip = %d, want %d", max, got, want)
			}
		}
	}
}

func TestChunk_SingleLongParagraph(t *testing.T) {
	text := strings.Repeat("a", 10000)

	got := Chunk(text, DefaultMaxChunkSize)
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if got[0] != text {
		t.Error("oversized paragraph was altered")
	}
}

func TestJoin_SkipsEmpty(t *testing.T) {
	got := Join([]string{"a", "  ", "", "b\n"})
	if got != "a\n\nb" {
		t.Errorf("Join() = %q, want %q", got, "a\n\nb")
	}
}
