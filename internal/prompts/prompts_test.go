package prompts

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"no vars", []string{}},
		{"into {{.TargetLanguage}}", []string{"TargetLanguage"}},
		{"{{ .B }} {{.A}} {{.B}}", []string{"A", "B"}},
		{"{{.Doc.Title}}", []string{"Doc.Title"}},
		{"{{if .Glossary}}use {{.Glossary}}{{end}}", []string{"Glossary"}},
		{"{{.Broken", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ExtractVariables(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractVariables(%q) = %#v, want %#v", tt.text, got, tt.want)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	defs := Defaults()
	if len(defs) == 0 {
		t.Fatal("no embedded prompts")
	}
	var found bool
	for _, p := range defs {
		if p.Hash != HashText(p.Text) {
			t.Errorf("%s: stale hash", p.Key)
		}
		if p.Key == TranslateSystem {
			found = true
			if !reflect.DeepEqual(p.Variables, []string{"TargetLanguage"}) {
				t.Errorf("variables = %v", p.Variables)
			}
		}
	}
	if !found {
		t.Errorf("missing %s", TranslateSystem)
	}
}

func TestRender(t *testing.T) {
	out, err := Render(TranslateSystem, TranslateData{TargetLanguage: "French"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "into French.") || strings.HasSuffix(out, "\n") {
		t.Errorf("unexpected render: %q", out)
	}
	if _, err := Render("nope", nil); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestResolver(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(dir, quiet())

	p, err := r.Resolve(TranslateSystem)
	if err != nil {
		t.Fatal(err)
	}
	if p.IsOverride {
		t.Error("expected embedded default without override file")
	}

	override := "Translate into {{.TargetLanguage}} like a pirate.\n"
	if err := os.WriteFile(filepath.Join(dir, TranslateSystem+".tmpl"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := r.Render(TranslateSystem, TranslateData{TargetLanguage: "German"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Translate into German like a pirate." {
		t.Errorf("override render = %q", out)
	}

	// A broken override falls back to the default.
	if err := os.WriteFile(filepath.Join(dir, TranslateSystem+".tmpl"), []byte("{{.Missing}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = r.Render(TranslateSystem, TranslateData{TargetLanguage: "German"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "professional translator") {
		t.Errorf("fallback render = %q", out)
	}
}

func TestResolver_NoDir(t *testing.T) {
	r := NewResolver("", nil)
	if _, err := r.Resolve("unknown"); err == nil {
		t.Error("expected error for unknown key")
	}
	p, err := r.Resolve(TranslateSystem)
	if err != nil || p.IsOverride {
		t.Errorf("Resolve = %+v, %v", p, err)
	}
}
