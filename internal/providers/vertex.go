package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	VertexName          = "vertex"
	VertexDefaultModel  = "gemini-2.0-flash"
	VertexDefaultRegion = "us-central1"
)

// VertexConfig holds configuration for the Vertex AI Gemini client.
type VertexConfig struct {
	Project string
	Region  string
	Model   string
}

// VertexClient implements LLMClient with Gemini models on Vertex AI.
type VertexClient struct {
	model  string
	client *genai.Client
}

// NewVertexClient connects to Vertex AI with application default credentials.
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("vertex: project is required")
	}
	if cfg.Region == "" {
		cfg.Region = VertexDefaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = VertexDefaultModel
	}

	client, err := genai.NewClient(ctx, cfg.Project, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexClient{model: cfg.Model, client: client}, nil
}

// Name returns the client identifier.
func (c *VertexClient) Name() string {
	return VertexName
}

// Close releases the underlying connection.
func (c *VertexClient) Close() error {
	return c.client.Close()
}

// Chat sends system messages as the system instruction and the rest as
// the user prompt.
func (c *VertexClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	name := req.Model
	if name == "" {
		name = c.model
	}
	model := c.client.GenerativeModel(name)

	var system []genai.Part
	var prompt []genai.Part
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, genai.Text(m.Content))
			continue
		}
		prompt = append(prompt, genai.Text(m.Content))
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: system}
	}
	if req.Temperature > 0 {
		model.GenerationConfig.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.GenerationConfig.MaxOutputTokens = genai.Ptr(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, prompt...)
	if err != nil {
		return nil, mapVertexError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &APIError{Provider: VertexName, StatusCode: http.StatusBadGateway, Message: "no candidates in response"}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	result := &ChatResult{
		Content:       sb.String(),
		ExecutionTime: time.Since(start),
		Provider:      VertexName,
		ModelUsed:     name,
		RequestID:     req.RequestID,
	}
	if u := resp.UsageMetadata; u != nil {
		result.PromptTokens = int(u.PromptTokenCount)
		result.CompletionTokens = int(u.CandidatesTokenCount)
		result.TotalTokens = int(u.TotalTokenCount)
	}
	return result, nil
}

// mapVertexError converts gRPC status codes into provider errors.
func mapVertexError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return &RateLimitError{Message: st.Message(), StatusCode: http.StatusTooManyRequests}
	case codes.Unavailable:
		return &APIError{Provider: VertexName, StatusCode: http.StatusServiceUnavailable, Message: st.Message()}
	case codes.DeadlineExceeded:
		return &APIError{Provider: VertexName, StatusCode: http.StatusGatewayTimeout, Message: st.Message()}
	case codes.Internal:
		return &APIError{Provider: VertexName, StatusCode: http.StatusInternalServerError, Message: st.Message()}
	}
	return fmt.Errorf("vertex: %w", err)
}

var _ LLMClient = (*VertexClient)(nil)
