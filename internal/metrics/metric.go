// Package metrics provides usage tracking for LLM calls.
package metrics

import "time"

// Metric represents a single recorded LLM call.
type Metric struct {
	// Provider info
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`

	// Tokens
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	// Timing
	ExecutionSeconds float64 `json:"execution_seconds,omitempty"`

	// Status
	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Summary aggregates metrics for one provider and model.
type Summary struct {
	Provider         string  `json:"provider"`
	Model            string  `json:"model,omitempty"`
	Calls            int     `json:"calls"`
	Failures         int     `json:"failures"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	TotalSeconds     float64 `json:"total_seconds"`
	AvgSeconds       float64 `json:"avg_seconds"`
}

func (s *Summary) add(m Metric) {
	s.Calls++
	if !m.Success {
		s.Failures++
	}
	s.PromptTokens += m.PromptTokens
	s.CompletionTokens += m.CompletionTokens
	s.TotalTokens += m.TotalTokens
	s.TotalSeconds += m.ExecutionSeconds
	s.AvgSeconds = s.TotalSeconds / float64(s.Calls)
}
