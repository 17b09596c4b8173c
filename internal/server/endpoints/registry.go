package endpoints

import (
	"github.com/jackzampolin/folio/internal/api"
)

// DefaultMaxUploadBytes caps multipart uploads.
const DefaultMaxUploadBytes = 256 << 20

// Config holds settings needed by some endpoints.
type Config struct {
	MaxUploadBytes int64
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Translation endpoints
		&CreateTranslationEndpoint{},
		&UploadTranslationEndpoint{MaxBytes: cfg.MaxUploadBytes},
		&ListTranslationsEndpoint{},
		&GetTranslationEndpoint{},
		&TranslationPagesEndpoint{},
		&StopTranslationEndpoint{},
		&DownloadTranslationEndpoint{},
		&TranslationEventsEndpoint{},
	}
}
