package translate

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Bonjour le monde", "Bonjour le monde"},
		{"surrounding whitespace", "\n  Bonjour  \n", "Bonjour"},
		{"bare fence", "```\nBonjour\n```", "Bonjour"},
		{"tagged fence", "```text\nBonjour\nmonde\n```", "Bonjour\nmonde"},
		{"here is the translation", "Here is the translation:\nHola", "Hola"},
		{"sure with language", "Sure! Here's the French translation:\n\nBonjour", "Bonjour"},
		{"long preamble", "Here is the translation of your text into Spanish:\nHola", "Hola"},
		{"translation label", "Translation: Hola", "Hola"},
		{"preamble then fence", "Here is the translation:\n```\nHola\n```", "Hola"},
		{"keeps paragraphs", "a\n\nb\n1. c", "a\n\nb\n1. c"},
		{"word translation in body kept", "Translation is an art.\nMore text", "Translation is an art.\nMore text"},
		{"inner fence kept", "Code:\n```\nx\n```\ndone", "Code:\n```\nx\n```\ndone"},
		{"surrounding quotes kept", "\"Bonjour le monde\"", "\"Bonjour le monde\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
