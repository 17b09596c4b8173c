// Package prompts provides prompt templates with embedded defaults and
// file-based overrides.
//
// Resolution order for a key:
//  1. <override dir>/<key>.tmpl, if it exists
//  2. Embedded default (from templates/*.tmpl)
package prompts

// TranslateSystem is the system prompt sent with every translation chunk.
const TranslateSystem = "translate.system"

// TranslateData is the data rendered into TranslateSystem.
type TranslateData struct {
	TargetLanguage string
}

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key       string   `json:"key"`       // e.g. translate.system
	Text      string   `json:"text"`      // Go template
	Variables []string `json:"variables"` // Extracted template variables
	Hash      string   `json:"hash"`      // SHA256 of Text
}

// ResolvedPrompt is the result of resolving a prompt key.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"`
	Path       string   `json:"path,omitempty"` // Override file, if any
	Hash       string   `json:"hash"`
}
