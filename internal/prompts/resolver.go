package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var loadEmbedded = sync.OnceValue(func() map[string]EmbeddedPrompt {
	out := make(map[string]EmbeddedPrompt)
	entries, err := fs.ReadDir(templatesFS, "templates")
	if err != nil {
		panic(err)
	}
	for _, e := range entries {
		data, err := templatesFS.ReadFile(path.Join("templates", e.Name()))
		if err != nil {
			panic(err)
		}
		key := strings.TrimSuffix(e.Name(), ".tmpl")
		text := strings.TrimRight(string(data), "\n")
		out[key] = EmbeddedPrompt{
			Key:       key,
			Text:      text,
			Variables: ExtractVariables(text),
			Hash:      HashText(text),
		}
	}
	return out
})

// Defaults returns the embedded prompts sorted by key.
func Defaults() []EmbeddedPrompt {
	m := loadEmbedded()
	out := make([]EmbeddedPrompt, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Render renders the embedded default for key.
func Render(key string, data any) (string, error) {
	p, ok := loadEmbedded()[key]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", key)
	}
	return execute(key, p.Text, data)
}

// Resolver resolves prompts with file overrides.
// Override files are read on every call, so edits apply to the next chunk.
type Resolver struct {
	dir    string
	logger *slog.Logger
}

// NewResolver creates a resolver that looks for overrides in dir.
// An empty dir disables overrides.
func NewResolver(dir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{dir: dir, logger: logger}
}

// Resolve returns the override for key if present, else the embedded default.
func (r *Resolver) Resolve(key string) (*ResolvedPrompt, error) {
	def, ok := loadEmbedded()[key]
	if !ok {
		return nil, fmt.Errorf("unknown prompt %q", key)
	}

	if r.dir != "" {
		p := filepath.Join(r.dir, key+".tmpl")
		data, err := os.ReadFile(p)
		switch {
		case err == nil:
			text := strings.TrimRight(string(data), "\n")
			return &ResolvedPrompt{
				Key:        key,
				Text:       text,
				Variables:  ExtractVariables(text),
				IsOverride: true,
				Path:       p,
				Hash:       HashText(text),
			}, nil
		case !errors.Is(err, fs.ErrNotExist):
			r.logger.Warn("failed to read prompt override", "key", key, "path", p, "error", err)
		}
	}

	return &ResolvedPrompt{
		Key:       key,
		Text:      def.Text,
		Variables: def.Variables,
		Hash:      def.Hash,
	}, nil
}

// Render resolves key and executes it with data. A broken override falls
// back to the embedded default.
func (r *Resolver) Render(key string, data any) (string, error) {
	p, err := r.Resolve(key)
	if err != nil {
		return "", err
	}
	out, err := execute(key, p.Text, data)
	if err != nil && p.IsOverride {
		r.logger.Warn("prompt override failed, using default", "key", key, "path", p.Path, "error", err)
		return Render(key, data)
	}
	return out, err
}

func execute(key, text string, data any) (string, error) {
	tmpl, err := template.New(key).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse prompt %s: %w", key, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", key, err)
	}
	return buf.String(), nil
}
