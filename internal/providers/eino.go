package providers

import (
	"context"
	"fmt"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const EinoName = "eino"

// EinoConfig holds configuration for the eino backed chat client.
type EinoConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// EinoClient implements LLMClient through an eino ChatModel.
type EinoClient struct {
	model string
	chat  einomodel.BaseChatModel
}

// NewEinoClient builds the underlying eino OpenAI chat model.
func NewEinoClient(ctx context.Context, cfg EinoConfig) (*EinoClient, error) {
	if cfg.Model == "" {
		cfg.Model = OpenAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	mc := &einoopenai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	if cfg.BaseURL != "" {
		mc.BaseURL = cfg.BaseURL
	}
	chat, err := einoopenai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return &EinoClient{model: cfg.Model, chat: chat}, nil
}

// Name returns the client identifier.
func (c *EinoClient) Name() string {
	return EinoName
}

// Chat sends the conversation through the eino chat model.
func (c *EinoClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	msgs := make([]*schema.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, schema.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(m.Content))
		}
	}

	var opts []einomodel.Option
	if req.Temperature > 0 {
		opts = append(opts, einomodel.WithTemperature(float32(req.Temperature)))
	}
	if req.Model != "" {
		opts = append(opts, einomodel.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, einomodel.WithMaxTokens(req.MaxTokens))
	}

	resp, err := c.chat.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, fmt.Errorf("eino generate: %w", err)
	}

	result := &ChatResult{
		Content:       resp.Content,
		ExecutionTime: time.Since(start),
		Provider:      EinoName,
		ModelUsed:     c.model,
		RequestID:     req.RequestID,
	}
	if req.Model != "" {
		result.ModelUsed = req.Model
	}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		result.PromptTokens = resp.ResponseMeta.Usage.PromptTokens
		result.CompletionTokens = resp.ResponseMeta.Usage.CompletionTokens
		result.TotalTokens = resp.ResponseMeta.Usage.TotalTokens
	}
	return result, nil
}

var _ LLMClient = (*EinoClient)(nil)
