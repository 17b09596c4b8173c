package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the configured LLM clients and OCR providers by name.
// Reload swaps them in place when configuration changes.
type Registry struct {
	mu           sync.RWMutex
	llmClients   map[string]LLMClient
	ocrProviders map[string]OCRProvider
	llmConfigs   map[string]LLMProviderConfig
	ocrConfigs   map[string]OCRProviderConfig
	logger       *slog.Logger
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	LLMProviders map[string]LLMProviderConfig
	OCRProviders map[string]OCRProviderConfig
}

// LLMProviderConfig describes one chat backend with its API key resolved.
type LLMProviderConfig struct {
	Type      string // "openai", "openrouter", "eino", "vertex", "mock"
	Model     string
	APIKey    string
	BaseURL   string
	Project   string // vertex only
	Region    string // vertex only
	RateLimit int    // Requests per minute (0 = unlimited)
	Enabled   bool
}

// OCRProviderConfig describes one image OCR backend with its API key resolved.
type OCRProviderConfig struct {
	Type      string // "mistral", "tesseract", "mock"
	Model     string
	APIKey    string
	BaseURL   string
	Languages []string // tesseract only
	RateLimit float64  // Requests per second
	Enabled   bool
}

// NewRegistry creates a new empty provider registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		llmClients:   make(map[string]LLMClient),
		ocrProviders: make(map[string]OCRProvider),
		llmConfigs:   make(map[string]LLMProviderConfig),
		ocrConfigs:   make(map[string]OCRProviderConfig),
		logger:       logger,
	}
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	delete(r.llmConfigs, name)
	r.logger.Info("registered LLM client", "name", name)
}

// RegisterOCR registers an OCR provider by name.
func (r *Registry) RegisterOCR(name string, provider OCRProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocrProviders[name] = provider
	delete(r.ocrConfigs, name)
	r.logger.Info("registered OCR provider", "name", name)
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// GetOCR returns an OCR provider by name.
func (r *Registry) GetOCR(name string) (OCRProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.ocrProviders[name]
	if !ok {
		return nil, fmt.Errorf("OCR provider not found: %s", name)
	}
	return provider, nil
}

// ListLLM returns registered LLM client names, sorted.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.llmClients)
}

// ListOCR returns registered OCR provider names, sorted.
func (r *Registry) ListOCR() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.ocrProviders)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reload reconciles the registry with cfg. Providers whose config is
// unchanged keep their client; changed ones are rebuilt; missing or
// disabled ones are removed. A provider that fails to build is logged and
// skipped.
func (r *Registry) Reload(ctx context.Context, cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, pc := range cfg.LLMProviders {
		if !pc.usable() {
			continue
		}
		if prev, ok := r.llmConfigs[name]; ok && prev == pc {
			continue
		}
		client, err := createLLMClient(ctx, pc)
		if err != nil {
			r.logger.Warn("failed to create LLM client", "name", name, "type", pc.Type, "error", err)
			continue
		}
		_, existed := r.llmClients[name]
		r.llmClients[name] = WithRateLimit(client, pc.RateLimit)
		r.llmConfigs[name] = pc
		if existed {
			r.logger.Info("updated LLM client", "name", name, "type", pc.Type)
		} else {
			r.logger.Info("registered LLM client", "name", name, "type", pc.Type)
		}
	}

	for name, pc := range cfg.OCRProviders {
		if !pc.usable() {
			continue
		}
		if prev, ok := r.ocrConfigs[name]; ok && prev.equal(pc) {
			continue
		}
		provider, err := createOCRProvider(pc)
		if err != nil {
			r.logger.Warn("failed to create OCR provider", "name", name, "type", pc.Type, "error", err)
			continue
		}
		r.ocrProviders[name] = provider
		r.ocrConfigs[name] = pc
		r.logger.Info("registered OCR provider", "name", name, "type", pc.Type)
	}

	for name := range r.llmConfigs {
		if pc, ok := cfg.LLMProviders[name]; !ok || !pc.usable() {
			delete(r.llmClients, name)
			delete(r.llmConfigs, name)
			r.logger.Info("unregistered LLM client", "name", name)
		}
	}
	for name := range r.ocrConfigs {
		if pc, ok := cfg.OCRProviders[name]; !ok || !pc.usable() {
			delete(r.ocrProviders, name)
			delete(r.ocrConfigs, name)
			r.logger.Info("unregistered OCR provider", "name", name)
		}
	}
}

func (c LLMProviderConfig) usable() bool {
	if !c.Enabled {
		return false
	}
	switch c.Type {
	case MockClientName:
		return true
	case VertexName:
		return c.Project != ""
	}
	return c.APIKey != ""
}

func (c OCRProviderConfig) usable() bool {
	if !c.Enabled {
		return false
	}
	switch c.Type {
	case MockOCRName, TesseractName:
		return true
	}
	return c.APIKey != ""
}

func (c OCRProviderConfig) equal(o OCRProviderConfig) bool {
	if c.Type != o.Type || c.Model != o.Model || c.APIKey != o.APIKey ||
		c.BaseURL != o.BaseURL || c.RateLimit != o.RateLimit || c.Enabled != o.Enabled {
		return false
	}
	if len(c.Languages) != len(o.Languages) {
		return false
	}
	for i := range c.Languages {
		if c.Languages[i] != o.Languages[i] {
			return false
		}
	}
	return true
}

func createLLMClient(ctx context.Context, cfg LLMProviderConfig) (LLMClient, error) {
	switch cfg.Type {
	case OpenAIName:
		return NewOpenAIClient(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model}), nil
	case OpenRouterName:
		return NewOpenRouterClient(OpenRouterConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, DefaultModel: cfg.Model}), nil
	case EinoName:
		return NewEinoClient(ctx, EinoConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
	case VertexName:
		return NewVertexClient(ctx, VertexConfig{Project: cfg.Project, Region: cfg.Region, Model: cfg.Model})
	case MockClientName:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider type %q", cfg.Type)
	}
}

func createOCRProvider(cfg OCRProviderConfig) (OCRProvider, error) {
	switch cfg.Type {
	case MistralOCRName:
		return NewMistralOCRClient(MistralOCRConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			RateLimit: cfg.RateLimit,
		}), nil
	case TesseractName:
		return NewTesseractOCR(TesseractConfig{Languages: cfg.Languages})
	case MockOCRName:
		return NewMockOCRProvider(), nil
	default:
		return nil, fmt.Errorf("unknown OCR provider type %q", cfg.Type)
	}
}

// Named returns a client that resolves name on every call, so a reload
// reaches callers holding it without rebuilding them.
func (r *Registry) Named(name string) LLMClient {
	return &namedClient{registry: r, name: name}
}

type namedClient struct {
	registry *Registry
	name     string
}

func (c *namedClient) Name() string { return c.name }

func (c *namedClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	client, err := c.registry.GetLLM(c.name)
	if err != nil {
		return nil, err
	}
	return client.Chat(ctx, req)
}
