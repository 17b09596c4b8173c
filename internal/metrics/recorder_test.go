package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackzampolin/folio/internal/providers"
)

func TestRecorder_Summaries(t *testing.T) {
	r := NewRecorder()
	r.Record(Metric{Provider: "openai", Model: "gpt-4o-mini", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, ExecutionSeconds: 1, Success: true})
	r.Record(Metric{Provider: "openai", Model: "gpt-4o-mini", PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30, ExecutionSeconds: 3, Success: true})
	r.Record(Metric{Provider: "openai", Model: "gpt-4o-mini", ExecutionSeconds: 2, ErrorType: "error"})
	r.Record(Metric{Provider: "eino", Model: "m", TotalTokens: 1, Success: true})

	got := r.Summaries()
	if len(got) != 2 {
		t.Fatalf("got %d summaries, want 2", len(got))
	}
	if got[0].Provider != "eino" || got[1].Provider != "openai" {
		t.Errorf("order = %s, %s", got[0].Provider, got[1].Provider)
	}

	s := got[1]
	if s.Calls != 3 || s.Failures != 1 {
		t.Errorf("calls=%d failures=%d", s.Calls, s.Failures)
	}
	if s.TotalTokens != 45 || s.PromptTokens != 30 || s.CompletionTokens != 15 {
		t.Errorf("tokens = %+v", s)
	}
	if s.TotalSeconds != 6 || s.AvgSeconds != 2 {
		t.Errorf("seconds total=%v avg=%v", s.TotalSeconds, s.AvgSeconds)
	}
}

func TestInstrument(t *testing.T) {
	mock := providers.NewMockClient()
	r := NewRecorder()
	client := Instrument(mock, r)

	if client.Name() != providers.MockClientName {
		t.Errorf("Name() = %q", client.Name())
	}
	if _, err := client.Chat(context.Background(), &providers.ChatRequest{Messages: []providers.Message{providers.UserMessage("hi")}}); err != nil {
		t.Fatal(err)
	}

	mock.Respond = func(*providers.ChatRequest) (string, error) {
		return "", errors.New("boom")
	}
	if _, err := client.Chat(context.Background(), &providers.ChatRequest{}); err == nil {
		t.Fatal("expected error")
	}

	got := r.Summaries()
	if len(got) == 0 {
		t.Fatal("no summaries recorded")
	}
	var calls, failures int
	for _, s := range got {
		calls += s.Calls
		failures += s.Failures
	}
	if calls != 2 || failures != 1 {
		t.Errorf("calls=%d failures=%d, want 2 and 1", calls, failures)
	}
}

func TestInstrument_NilRecorder(t *testing.T) {
	mock := providers.NewMockClient()
	if got := Instrument(mock, nil); got != providers.LLMClient(mock) {
		t.Error("nil recorder should return the client unchanged")
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{context.Canceled, "cancelled"},
		{context.DeadlineExceeded, "cancelled"},
		{&providers.RateLimitError{RetryAfter: time.Second}, "transient"},
		{errors.New("bad request"), "error"},
	}
	for _, tt := range tests {
		if got := errorType(tt.err); got != tt.want {
			t.Errorf("errorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
