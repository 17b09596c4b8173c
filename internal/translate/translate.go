// Package translate sends page text to a language model and cleans up
// what comes back.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/prompts"
	"github.com/jackzampolin/folio/internal/providers"
)

const (
	DefaultTemperature   = 0.2
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 2 * time.Second
	maxRetryDelay        = time.Minute
)

// ErrEmptyTranslation is returned when the model answers a non-empty
// chunk with nothing.
var ErrEmptyTranslation = errors.New("model returned an empty translation")

// TranslationError is the final error after retries are exhausted.
// It is recorded on the page and never aborts the job.
type TranslationError struct {
	Attempts int
	Err      error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// Retryable reports whether the underlying failure was transient.
func (e *TranslationError) Retryable() bool {
	return retryable(e.Err)
}

// SystemPrompt is the default instruction sent with every chunk.
func SystemPrompt(targetLanguage string) string {
	out, err := prompts.Render(prompts.TranslateSystem, prompts.TranslateData{TargetLanguage: targetLanguage})
	if err != nil {
		panic(err)
	}
	return out
}

// Config configures a Client.
type Config struct {
	LLM           providers.LLMClient
	Model         string            // Provider default when empty
	Temperature   float64           // Default 0.2
	RetryAttempts int               // Total attempts including the first (default 3)
	RetryDelay    time.Duration     // Base backoff delay (default 2s)
	Prompts       *prompts.Resolver // Nil uses the embedded system prompt
	Logger        *slog.Logger
}

// Client translates text through an LLMClient.
type Client struct {
	llm         providers.LLMClient
	model       string
	temperature float64
	attempts    uint
	delay       time.Duration
	prompts     *prompts.Resolver
	logger      *slog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	temp := cfg.Temperature
	if temp <= 0 {
		temp = DefaultTemperature
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	delay := cfg.RetryDelay
	if delay < 0 {
		delay = 0
	} else if delay == 0 {
		delay = DefaultRetryDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		llm:         cfg.LLM,
		model:       cfg.Model,
		temperature: temp,
		attempts:    uint(attempts),
		delay:       delay,
		prompts:     cfg.Prompts,
		logger:      logger,
	}
}

// Translate returns text rendered in targetLanguage. Whitespace-only input
// returns "" without calling the model.
func (c *Client) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if c.llm == nil {
		return "", &TranslationError{Err: errors.New("no LLM provider configured")}
	}

	req := &providers.ChatRequest{
		Messages: []providers.Message{
			providers.SystemMessage(c.systemPrompt(targetLanguage)),
			providers.UserMessage(text),
		},
		Model:       c.model,
		Temperature: c.temperature,
	}

	var (
		out      string
		attempts int
	)
	err := retry.Do(
		func() error {
			attempts++
			res, err := c.llm.Chat(ctx, req)
			if err != nil {
				return err
			}
			out = Clean(res.Content)
			if out == "" {
				return ErrEmptyTranslation
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(delayFor),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("translation attempt failed",
				"attempt", n+1,
				"provider", c.llm.Name(),
				"error", err)
		}),
	)
	if err != nil {
		return "", &TranslationError{Attempts: attempts, Err: err}
	}
	return out, nil
}

func (c *Client) systemPrompt(targetLanguage string) string {
	if c.prompts == nil {
		return SystemPrompt(targetLanguage)
	}
	out, err := c.prompts.Render(prompts.TranslateSystem, prompts.TranslateData{TargetLanguage: targetLanguage})
	if err != nil {
		c.logger.Warn("failed to render system prompt, using default", "error", err)
		return SystemPrompt(targetLanguage)
	}
	return out
}

func retryable(err error) bool {
	return errors.Is(err, ErrEmptyTranslation) || providers.IsRetryable(err)
}

// delayFor honors a provider's Retry-After and otherwise backs off exponentially.
func delayFor(n uint, err error, cfg *retry.Config) time.Duration {
	if rle, ok := providers.IsRateLimitError(err); ok && rle.RetryAfter > 0 {
		return rle.RetryAfter
	}
	return retry.BackOffDelay(n, err, cfg)
}

var _ jobs.Translator = (*Client)(nil)
