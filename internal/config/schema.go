package config

import (
	"fmt"
	"time"
)

// Config holds folio configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
	Store        StoreCfg                  `mapstructure:"store" yaml:"store"`
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	OCRProviders map[string]OCRProviderCfg `mapstructure:"ocr_providers" yaml:"ocr_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Pipeline     PipelineCfg               `mapstructure:"pipeline" yaml:"pipeline"`
	Compose      ComposeCfg                `mapstructure:"compose" yaml:"compose"`
	Output       OutputCfg                 `mapstructure:"output" yaml:"output"`
	OCRmyPDF     OCRmyPDFCfg               `mapstructure:"ocrmypdf" yaml:"ocrmypdf"`
}

// ServerCfg is the HTTP listener.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// Addr returns host:port.
func (s ServerCfg) Addr() string {
	return s.Host + ":" + s.Port
}

// StoreCfg selects the job store backend.
type StoreCfg struct {
	Driver              string `mapstructure:"driver" yaml:"driver"` // "memory", "postgres", "firestore"
	PostgresURL         string `mapstructure:"postgres_url" yaml:"postgres_url"`
	FirestoreProject    string `mapstructure:"firestore_project" yaml:"firestore_project"`
	FirestoreCollection string `mapstructure:"firestore_collection" yaml:"firestore_collection"`
}

// LLMProviderCfg configures a chat backend used for translation.
type LLMProviderCfg struct {
	Type      string `mapstructure:"type" yaml:"type"` // "openai", "openrouter", "eino", "vertex", "mock"
	Model     string `mapstructure:"model" yaml:"model"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	Project   string `mapstructure:"project" yaml:"project"`
	Region    string `mapstructure:"region" yaml:"region"`
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
}

// OCRProviderCfg configures an image OCR backend.
type OCRProviderCfg struct {
	Type      string   `mapstructure:"type" yaml:"type"` // "mistral", "tesseract", "mock-ocr"
	Model     string   `mapstructure:"model" yaml:"model"`
	APIKey    string   `mapstructure:"api_key" yaml:"api_key"`
	BaseURL   string   `mapstructure:"base_url" yaml:"base_url"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
	RateLimit float64  `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg picks the providers a job uses.
type DefaultsCfg struct {
	LLMProvider string `mapstructure:"llm_provider" yaml:"llm_provider"`
	OCRBackend  string `mapstructure:"ocr_backend" yaml:"ocr_backend"` // "none", "ocrmypdf", "ocrmypdf-docker" or an ocr_providers name
}

// PipelineCfg tunes the translation pipeline.
type PipelineCfg struct {
	Workers       int           `mapstructure:"workers" yaml:"workers"`
	QueueSize     int           `mapstructure:"queue_size" yaml:"queue_size"`
	MaxChunkChars int           `mapstructure:"max_chunk_chars" yaml:"max_chunk_chars"`
	OCRMinWords   int           `mapstructure:"ocr_min_words" yaml:"ocr_min_words"`
	OCRLanguages  []string      `mapstructure:"ocr_languages" yaml:"ocr_languages"`
	OCRMerge      string        `mapstructure:"ocr_merge" yaml:"ocr_merge"`
	OCRTimeout    time.Duration `mapstructure:"ocr_timeout" yaml:"ocr_timeout"`
	FlushEvery    int           `mapstructure:"flush_every" yaml:"flush_every"`
	KeepScratch   bool          `mapstructure:"keep_scratch" yaml:"keep_scratch"`
	RetryAttempts int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	Temperature   float64       `mapstructure:"temperature" yaml:"temperature"`
}

// ComposeCfg configures the output PDF.
type ComposeCfg struct {
	FontPath string  `mapstructure:"font_path" yaml:"font_path"` // Empty uses the embedded Go font
	FontSize float64 `mapstructure:"font_size" yaml:"font_size"`
}

// OutputCfg configures where finished PDFs are published.
type OutputCfg struct {
	GCSBucket string `mapstructure:"gcs_bucket" yaml:"gcs_bucket"`
}

// OCRmyPDFCfg configures the page OCR backend.
type OCRmyPDFCfg struct {
	Binary      string `mapstructure:"binary" yaml:"binary"`
	DockerImage string `mapstructure:"docker_image" yaml:"docker_image"`
	UseDocker   bool   `mapstructure:"use_docker" yaml:"use_docker"`
}

// Validate checks values that would otherwise fail deep inside a job.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for the postgres driver")
		}
	case "firestore":
		if c.Store.FirestoreProject == "" {
			return fmt.Errorf("store.firestore_project is required for the firestore driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	switch c.Pipeline.OCRMerge {
	case "", "prefer-ocr", "append":
	default:
		return fmt.Errorf("unknown pipeline.ocr_merge %q", c.Pipeline.OCRMerge)
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if c.Pipeline.MaxChunkChars < 1 {
		return fmt.Errorf("pipeline.max_chunk_chars must be at least 1")
	}
	if c.Compose.FontSize <= 0 {
		return fmt.Errorf("compose.font_size must be positive")
	}
	return nil
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// GetOCRProvider returns an OCR provider config by name.
func (c *Config) GetOCRProvider(name string) (OCRProviderCfg, bool) {
	cfg, ok := c.OCRProviders[name]
	return cfg, ok
}
