package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackzampolin/folio/internal/compose"
	"github.com/jackzampolin/folio/internal/config"
	"github.com/jackzampolin/folio/internal/extract"
	"github.com/jackzampolin/folio/internal/home"
	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/jobstore"
	"github.com/jackzampolin/folio/internal/metrics"
	"github.com/jackzampolin/folio/internal/ocr"
	"github.com/jackzampolin/folio/internal/output"
	"github.com/jackzampolin/folio/internal/prompts"
	"github.com/jackzampolin/folio/internal/providers"
	"github.com/jackzampolin/folio/internal/translate"
)

// loadConfig opens the config manager and a provider registry built from it.
// The registry follows config reloads.
func loadConfig(ctx context.Context, h *home.Dir, logger *slog.Logger) (*config.Manager, *providers.Registry, error) {
	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, nil, err
	}
	if f := mgr.ConfigFile(); f != "" {
		logger.Info("loaded config", "file", f)
	}

	reg := providers.NewRegistry(logger)
	reg.Reload(ctx, mgr.Get().ToProviderRegistryConfig())
	mgr.OnChange(func(c *config.Config) {
		reg.Reload(ctx, c.ToProviderRegistryConfig())
		logger.Info("providers reloaded", "llm", reg.ListLLM(), "ocr", reg.ListOCR())
	})
	return mgr, reg, nil
}

// openStore returns the job store named by cfg.Driver.
func openStore(ctx context.Context, cfg config.StoreCfg, logger *slog.Logger) (jobs.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return jobs.NewMemoryStore(), nil
	case "postgres":
		s, err := jobstore.NewPostgres(ctx, jobstore.PostgresConfig{URL: cfg.PostgresURL, Logger: logger})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "firestore":
		s, err := jobstore.NewFirestore(ctx, jobstore.FirestoreConfig{
			ProjectID:  cfg.FirestoreProject,
			Collection: cfg.FirestoreCollection,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// pipelineDeps are the pieces a controller is built around.
type pipelineDeps struct {
	Config   *config.Config
	Registry *providers.Registry
	Home     *home.Dir
	Store    jobs.Store
	Notifier jobs.Notifier
	Metrics  *metrics.Recorder
	Logger   *slog.Logger

	// Publish enables the configured output sink.
	Publish bool
}

// buildController wires extraction, OCR, translation, composition and
// output into a job controller. The returned closers release clients the
// controller holds.
func buildController(ctx context.Context, d pipelineDeps) (*jobs.Controller, []io.Closer, error) {
	cfg := d.Config
	logger := d.Logger
	var closers []io.Closer

	merge, err := jobs.ParseMergePolicy(cfg.Pipeline.OCRMerge)
	if err != nil {
		return nil, nil, err
	}

	llmName := cfg.Defaults.LLMProvider
	if _, err := d.Registry.GetLLM(llmName); err != nil {
		return nil, nil, fmt.Errorf("default llm provider %q: %w", llmName, err)
	}
	var model string
	if pc, ok := cfg.GetLLMProvider(llmName); ok {
		model = pc.Model
	}

	if cfg.Compose.FontPath == "" {
		logger.Warn("compose.font_path is unset; output is limited to Latin, Greek and Cyrillic scripts")
	}

	ccfg := jobs.ControllerConfig{
		Store: d.Store,
		Pool: jobs.NewPool(jobs.PoolConfig{
			Workers:   cfg.Pipeline.Workers,
			QueueSize: cfg.Pipeline.QueueSize,
			Logger:    logger,
		}),
		Extractor: extract.New(extract.Config{
			Policy: extract.WordCountPolicy{MinWords: cfg.Pipeline.OCRMinWords},
			Logger: logger,
		}),
		Translator: translate.New(translate.Config{
			LLM:           metrics.Instrument(d.Registry.Named(llmName), d.Metrics),
			Model:         model,
			Temperature:   cfg.Pipeline.Temperature,
			RetryAttempts: cfg.Pipeline.RetryAttempts,
			RetryDelay:    cfg.Pipeline.RetryDelay,
			Prompts:       prompts.NewResolver(d.Home.PromptsDir(), logger),
			Logger:        logger,
		}),
		Composer: compose.New(compose.Config{
			FontPath: cfg.Compose.FontPath,
			FontSize: cfg.Compose.FontSize,
			Logger:   logger,
		}),
		Notifier:      d.Notifier,
		MaxChunkChars: cfg.Pipeline.MaxChunkChars,
		FlushEvery:    cfg.Pipeline.FlushEvery,
		MergePolicy:   merge,
		ScratchRoot:   d.Home.ScratchRoot(),
		OutputRoot:    d.Home.OutputsDir(),
		KeepScratch:   cfg.Pipeline.KeepScratch,
		Logger:        logger,
	}

	recognizer, err := ocr.NewRecognizer(ocr.BackendConfig{
		Backend:     cfg.Defaults.OCRBackend,
		Binary:      cfg.OCRmyPDF.Binary,
		DockerImage: cfg.OCRmyPDF.DockerImage,
		UseDocker:   cfg.OCRmyPDF.UseDocker,
		Languages:   cfg.Pipeline.OCRLanguages,
		Registry:    d.Registry,
	})
	if err != nil {
		return nil, nil, err
	}
	if recognizer != nil {
		if c, ok := recognizer.(io.Closer); ok {
			closers = append(closers, c)
		}
		ccfg.OCR = ocr.New(ocr.Config{
			Recognizer: recognizer,
			Timeout:    cfg.Pipeline.OCRTimeout,
			Logger:     logger,
		})
	} else {
		logger.Info("OCR disabled; pages without a text layer are translated as extracted")
	}

	if d.Publish {
		sink, err := output.New(ctx, output.Config{GCSBucket: cfg.Output.GCSBucket, Logger: logger})
		if err != nil {
			closeAll(closers, logger)
			return nil, nil, err
		}
		if c, ok := sink.(io.Closer); ok {
			closers = append(closers, c)
		}
		ccfg.Publisher = sink
	}

	controller, err := jobs.NewController(ccfg)
	if err != nil {
		closeAll(closers, logger)
		return nil, nil, err
	}
	return controller, closers, nil
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}
