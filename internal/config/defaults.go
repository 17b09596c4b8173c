package config

import (
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Entry is one default configuration key.
type Entry struct {
	Key         string
	Value       any
	Description string
}

// DefaultEntries returns every configuration key with its default value.
// Registering keys one by one lets FOLIO_* environment variables override
// any of them.
func DefaultEntries() []Entry {
	return []Entry{
		{Key: "server.host", Value: "127.0.0.1", Description: "HTTP listen host"},
		{Key: "server.port", Value: "8080", Description: "HTTP listen port"},

		{Key: "store.driver", Value: "memory", Description: "Job store: memory, postgres or firestore"},
		{Key: "store.postgres_url", Value: "${FOLIO_POSTGRES_URL}", Description: "Postgres connection URL"},
		{Key: "store.firestore_project", Value: "${GOOGLE_CLOUD_PROJECT}", Description: "Firestore project id"},
		{Key: "store.firestore_collection", Value: "translation_jobs", Description: "Firestore collection for jobs"},

		// LLM providers
		{Key: "llm_providers.openai.type", Value: "openai", Description: "LLM provider type for OpenAI"},
		{Key: "llm_providers.openai.model", Value: "gpt-4o-mini", Description: "OpenAI chat model"},
		{Key: "llm_providers.openai.api_key", Value: "${OPENAI_API_KEY}", Description: "OpenAI API key"},
		{Key: "llm_providers.openai.rate_limit", Value: 500, Description: "Requests per minute"},
		{Key: "llm_providers.openai.enabled", Value: true, Description: "Whether OpenAI is enabled"},

		{Key: "llm_providers.openrouter.type", Value: "openrouter", Description: "LLM provider type for OpenRouter"},
		{Key: "llm_providers.openrouter.model", Value: "anthropic/claude-sonnet-4", Description: "OpenRouter model"},
		{Key: "llm_providers.openrouter.api_key", Value: "${OPENROUTER_API_KEY}", Description: "OpenRouter API key"},
		{Key: "llm_providers.openrouter.rate_limit", Value: 150, Description: "Requests per minute"},
		{Key: "llm_providers.openrouter.enabled", Value: true, Description: "Whether OpenRouter is enabled"},

		{Key: "llm_providers.vertex.type", Value: "vertex", Description: "LLM provider type for Vertex AI Gemini"},
		{Key: "llm_providers.vertex.model", Value: "gemini-2.0-flash", Description: "Vertex AI model"},
		{Key: "llm_providers.vertex.project", Value: "${GOOGLE_CLOUD_PROJECT}", Description: "Google Cloud project"},
		{Key: "llm_providers.vertex.region", Value: "us-central1", Description: "Vertex AI region"},
		{Key: "llm_providers.vertex.enabled", Value: false, Description: "Whether Vertex AI is enabled"},

		// OCR providers
		{Key: "ocr_providers.mistral.type", Value: "mistral", Description: "OCR provider type for Mistral"},
		{Key: "ocr_providers.mistral.api_key", Value: "${MISTRAL_API_KEY}", Description: "Mistral API key"},
		{Key: "ocr_providers.mistral.rate_limit", Value: 6.0, Description: "Requests per second"},
		{Key: "ocr_providers.mistral.enabled", Value: true, Description: "Whether Mistral OCR is enabled"},

		{Key: "ocr_providers.tesseract.type", Value: "tesseract", Description: "Local tesseract (needs the tesseract build tag)"},
		{Key: "ocr_providers.tesseract.languages", Value: []string{"eng", "chi_sim", "jpn"}, Description: "Tesseract languages"},
		{Key: "ocr_providers.tesseract.enabled", Value: false, Description: "Whether tesseract is enabled"},

		{Key: "defaults.llm_provider", Value: "openai", Description: "LLM provider used for translation"},
		{Key: "defaults.ocr_backend", Value: "ocrmypdf", Description: "Page OCR: none, ocrmypdf, ocrmypdf-docker or an ocr_providers name"},

		// Pipeline
		{Key: "pipeline.workers", Value: 2, Description: "Jobs processed concurrently"},
		{Key: "pipeline.queue_size", Value: 256, Description: "Pending jobs accepted before submit fails"},
		{Key: "pipeline.max_chunk_chars", Value: 3000, Description: "Largest piece of text sent to the LLM"},
		{Key: "pipeline.ocr_min_words", Value: 20, Description: "Pages with fewer words are OCR'd; keep it generous"},
		{Key: "pipeline.ocr_languages", Value: []string{"eng", "chi_sim", "jpn"}, Description: "OCRmyPDF languages"},
		{Key: "pipeline.ocr_merge", Value: "prefer-ocr", Description: "How OCR text combines with direct text: prefer-ocr or append"},
		{Key: "pipeline.ocr_timeout", Value: "3m", Description: "Per-page OCR timeout"},
		{Key: "pipeline.flush_every", Value: 1, Description: "Persist pages every N pages"},
		{Key: "pipeline.keep_scratch", Value: false, Description: "Keep per-job scratch directories"},
		{Key: "pipeline.retry_attempts", Value: 3, Description: "Translation attempts per chunk"},
		{Key: "pipeline.retry_delay", Value: "2s", Description: "Base delay between translation attempts"},
		{Key: "pipeline.temperature", Value: 0.2, Description: "LLM sampling temperature"},

		{Key: "compose.font_path", Value: "", Description: "TrueType font for output (empty uses the embedded Go font)"},
		{Key: "compose.font_size", Value: 11.0, Description: "Body font size in points"},

		{Key: "output.gcs_bucket", Value: "", Description: "Mirror finished PDFs to this bucket"},

		{Key: "ocrmypdf.binary", Value: "ocrmypdf", Description: "ocrmypdf executable"},
		{Key: "ocrmypdf.docker_image", Value: "jbarlow83/ocrmypdf:latest", Description: "Image for the docker backend"},
		{Key: "ocrmypdf.use_docker", Value: false, Description: "Run ocrmypdf in a container"},
	}
}

// GetDefault returns the default entry for key, or nil.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	for _, e := range DefaultEntries() {
		v.SetDefault(e.Key, e.Value)
	}
}

// DefaultConfig returns configuration with only defaults applied.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("config: defaults do not decode: " + err.Error())
	}
	return &cfg
}

// defaultYAML nests the default entries in declaration order.
func defaultYAML() yaml.MapSlice {
	var root yaml.MapSlice
	for _, e := range DefaultEntries() {
		root = insert(root, strings.Split(e.Key, "."), e.Value)
	}
	return root
}

func insert(m yaml.MapSlice, path []string, value any) yaml.MapSlice {
	key := path[0]
	if len(path) == 1 {
		return append(m, yaml.MapItem{Key: key, Value: value})
	}
	for i := range m {
		if m[i].Key == key {
			child, _ := m[i].Value.(yaml.MapSlice)
			m[i].Value = insert(child, path[1:], value)
			return m
		}
	}
	return append(m, yaml.MapItem{Key: key, Value: insert(nil, path[1:], value)})
}
