package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	MockClientName = "mock"
	MockOCRName    = "mock-ocr"
)

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string

	// Respond, when set, produces the reply (or error) for each request
	// and overrides ResponseText and the failure switches.
	Respond func(req *ChatRequest) (string, error)

	requestCount atomic.Int64

	mu       sync.Mutex
	requests []*ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat returns the configured response.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	content := c.ResponseText
	switch {
	case c.Respond != nil:
		out, err := c.Respond(req)
		if err != nil {
			return nil, err
		}
		content = out
	case c.ShouldFail:
		return nil, fmt.Errorf("mock client configured to fail")
	case c.FailAfter > 0 && int(count) > c.FailAfter:
		return nil, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	return &ChatResult{
		Content:          content,
		PromptTokens:     promptTokens,
		CompletionTokens: len(content) / 4,
		TotalTokens:      promptTokens + len(content)/4,
		ExecutionTime:    time.Since(start),
		Provider:         MockClientName,
		ModelUsed:        req.Model,
		RequestID:        fmt.Sprintf("mock-%d", count),
	}, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns the requests received so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

var _ LLMClient = (*MockClient)(nil)

// MockOCRProvider is an OCRProvider for testing.
type MockOCRProvider struct {
	ProviderName string
	Latency      time.Duration
	ShouldFail   bool
	ResponseText string

	requestCount atomic.Int64
}

// NewMockOCRProvider creates a new mock OCR provider.
func NewMockOCRProvider() *MockOCRProvider {
	return &MockOCRProvider{
		ProviderName: MockOCRName,
		ResponseText: "mock OCR text",
	}
}

// Name returns the provider identifier.
func (p *MockOCRProvider) Name() string {
	return p.ProviderName
}

// RequestsPerSecond returns the rate limit.
func (p *MockOCRProvider) RequestsPerSecond() float64 {
	return 10
}

// MaxRetries returns the max retry count.
func (p *MockOCRProvider) MaxRetries() int {
	return 0
}

// RetryDelayBase returns the base retry delay.
func (p *MockOCRProvider) RetryDelayBase() time.Duration {
	return 0
}

// ProcessImage returns ResponseText for any image.
func (p *MockOCRProvider) ProcessImage(ctx context.Context, image []byte, pageNum int) (*OCRResult, error) {
	start := time.Now()
	p.requestCount.Add(1)

	if p.ShouldFail {
		err := fmt.Errorf("mock OCR provider configured to fail")
		return &OCRResult{ErrorMessage: err.Error()}, err
	}
	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return &OCRResult{ErrorMessage: ctx.Err().Error()}, ctx.Err()
		}
	}

	return &OCRResult{
		Success: true,
		Text:    p.ResponseText,
		Metadata: map[string]any{
			"page_num":    pageNum,
			"image_bytes": len(image),
		},
		ExecutionTime: time.Since(start),
	}, nil
}

// RequestCount returns the number of requests made.
func (p *MockOCRProvider) RequestCount() int64 {
	return p.requestCount.Load()
}

var _ OCRProvider = (*MockOCRProvider)(nil)
