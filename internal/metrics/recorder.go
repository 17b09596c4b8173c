package metrics

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackzampolin/folio/internal/providers"
)

type key struct {
	provider string
	model    string
}

// Recorder aggregates metrics in memory. The zero value is not usable;
// use NewRecorder.
type Recorder struct {
	mu        sync.Mutex
	summaries map[key]*Summary
}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{summaries: make(map[key]*Summary)}
}

// Record adds a single metric.
func (r *Recorder) Record(m Metric) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{provider: m.Provider, model: m.Model}
	s, ok := r.summaries[k]
	if !ok {
		s = &Summary{Provider: m.Provider, Model: m.Model}
		r.summaries[k] = s
	}
	s.add(m)
}

// RecordLLMCall records the outcome of one chat call. result may be nil
// when err is set.
func (r *Recorder) RecordLLMCall(provider string, result *providers.ChatResult, err error, elapsed time.Duration) {
	m := Metric{
		Provider:         provider,
		Success:          err == nil,
		ErrorType:        errorType(err),
		ExecutionSeconds: elapsed.Seconds(),
	}
	if result != nil {
		if result.Provider != "" {
			m.Provider = result.Provider
		}
		m.Model = result.ModelUsed
		m.PromptTokens = result.PromptTokens
		m.CompletionTokens = result.CompletionTokens
		m.TotalTokens = result.TotalTokens
		if result.ExecutionTime > 0 {
			m.ExecutionSeconds = result.ExecutionTime.Seconds()
		}
	}
	r.Record(m)
}

// Summaries returns a snapshot sorted by provider then model.
func (r *Recorder) Summaries() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Summary, 0, len(r.summaries))
	for _, s := range r.summaries {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Model < out[j].Model
	})
	return out
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case providers.IsRetryable(err):
		return "transient"
	default:
		return "error"
	}
}

// instrumented records every Chat call made through an LLMClient.
type instrumented struct {
	providers.LLMClient
	recorder *Recorder
}

// Instrument wraps client so each call is recorded on r.
func Instrument(client providers.LLMClient, r *Recorder) providers.LLMClient {
	if r == nil {
		return client
	}
	return &instrumented{LLMClient: client, recorder: r}
}

func (c *instrumented) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
	start := time.Now()
	result, err := c.LLMClient.Chat(ctx, req)
	c.recorder.RecordLLMCall(c.Name(), result, err, time.Since(start))
	return result, err
}
