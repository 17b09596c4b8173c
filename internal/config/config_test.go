package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret123")

	tests := []struct {
		in, want string
	}{
		{"${TEST_API_KEY}", "secret123"},
		{"${DEFINITELY_NOT_SET_12345}", ""},
		{"literal-value", "literal-value"},
		{"prefix-${TEST_API_KEY}-suffix", "prefix-secret123-suffix"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ResolveEnvVars(tt.in); got != tt.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		t.Setenv("TEST_OPENAI_KEY", "sk-test")
		path := writeConfig(t, `
pipeline:
  workers: 5
  retry_delay: 250ms
llm_providers:
  openai:
    api_key: "${TEST_OPENAI_KEY}"
  local:
    type: mock
    enabled: true
defaults:
  llm_provider: local
`)
		mgr, err := NewManager(path)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Pipeline.Workers != 5 {
			t.Errorf("workers = %d, want 5", cfg.Pipeline.Workers)
		}
		if cfg.Pipeline.RetryDelay != 250*time.Millisecond {
			t.Errorf("retry_delay = %v", cfg.Pipeline.RetryDelay)
		}
		if got := cfg.LLMProviders["openai"]; got.APIKey != "sk-test" || got.Type != "openai" {
			t.Errorf("openai provider = %+v, want merged defaults with resolved key", got)
		}
		if got := cfg.LLMProviders["local"]; got.Type != "mock" || !got.Enabled {
			t.Errorf("local provider = %+v", got)
		}
		if cfg.Defaults.LLMProvider != "local" {
			t.Errorf("llm_provider = %q", cfg.Defaults.LLMProvider)
		}
		if cfg.Pipeline.MaxChunkChars != 3000 {
			t.Errorf("unset keys keep defaults, max_chunk_chars = %d", cfg.Pipeline.MaxChunkChars)
		}
		if mgr.ConfigFile() != path {
			t.Errorf("ConfigFile() = %q, want %q", mgr.ConfigFile(), path)
		}
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("FOLIO_PIPELINE_WORKERS", "7")
		t.Setenv("FOLIO_STORE_DRIVER", "postgres")
		t.Setenv("FOLIO_STORE_POSTGRES_URL", "postgres://x")
		path := writeConfig(t, "pipeline:\n  workers: 3\n")

		mgr, err := NewManager(path)
		if err != nil {
			t.Fatal(err)
		}
		cfg := mgr.Get()
		if cfg.Pipeline.Workers != 7 {
			t.Errorf("workers = %d, want 7", cfg.Pipeline.Workers)
		}
		if cfg.Store.Driver != "postgres" || cfg.Store.PostgresURL != "postgres://x" {
			t.Errorf("store = %+v", cfg.Store)
		}
	})

	t.Run("missing search path file uses defaults", func(t *testing.T) {
		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if mgr.Get().Store.Driver != "memory" {
			t.Errorf("driver = %q", mgr.Get().Store.Driver)
		}
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		path := writeConfig(t, "pipeline:\n  ocr_merge: sometimes\n")
		if _, err := NewManager(path); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("explicit missing file", func(t *testing.T) {
		if _, err := NewManager(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing explicit config file")
		}
	})
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "server:\n  port: \"9000\"\n"))
	if err != nil {
		t.Fatal(err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "server:\n  port: \"9000\"\n"))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = mgr.Get().Server.Port
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, "defaults:\n  llm_provider: first\n")

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if got := mgr.Get().Defaults.LLMProvider; got != "first" {
		t.Fatalf("initial llm_provider = %q", got)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value
	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Defaults.LLMProvider)
	})

	mgr.WatchConfig(nil)

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("defaults:\n  llm_provider: second\n"), 0o644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && callbackCount.Load() == 0 {
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Defaults.LLMProvider; got != "second" {
		t.Errorf("config not updated: got %q", got)
	}
	if v := lastValue.Load(); v != "second" {
		t.Errorf("callback received %v, want second", v)
	}
}

func TestConfig_ToProviderRegistryConfig(t *testing.T) {
	t.Setenv("TEST_MISTRAL_KEY", "m-key")

	cfg := &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"vertex": {Type: "vertex", Project: "proj", Region: "us-central1", Model: "gemini", Enabled: true},
		},
		OCRProviders: map[string]OCRProviderCfg{
			"mistral": {Type: "mistral", APIKey: "${TEST_MISTRAL_KEY}", RateLimit: 6, Enabled: true},
		},
	}

	rc := cfg.ToProviderRegistryConfig()
	if got := rc.OCRProviders["mistral"]; got.APIKey != "m-key" || got.RateLimit != 6 {
		t.Errorf("mistral = %+v", got)
	}
	if got := rc.LLMProviders["vertex"]; got.Project != "proj" || got.Region != "us-central1" || !got.Enabled {
		t.Errorf("vertex = %+v", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }, true},
		{"postgres without url", func(c *Config) { c.Store.Driver = "postgres"; c.Store.PostgresURL = "" }, true},
		{"postgres with url", func(c *Config) { c.Store.Driver = "postgres"; c.Store.PostgresURL = "postgres://x" }, false},
		{"firestore without project", func(c *Config) { c.Store.Driver = "firestore"; c.Store.FirestoreProject = "" }, true},
		{"bad merge", func(c *Config) { c.Pipeline.OCRMerge = "both" }, true},
		{"append merge", func(c *Config) { c.Pipeline.OCRMerge = "append" }, false},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }, true},
		{"zero chunk", func(c *Config) { c.Pipeline.MaxChunkChars = 0 }, true},
		{"zero font", func(c *Config) { c.Compose.FontSize = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerCfg_Addr(t *testing.T) {
	if got := (ServerCfg{Host: "0.0.0.0", Port: "80"}).Addr(); got != "0.0.0.0:80" {
		t.Errorf("Addr() = %q", got)
	}
}
