package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/folio/internal/events"
	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/metrics"
	"github.com/jackzampolin/folio/internal/server"
	"github.com/jackzampolin/folio/internal/server/endpoints"
	"github.com/jackzampolin/folio/internal/svcctx"
)

var (
	serveHost      string
	servePort      string
	maxUploadBytes int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the folio server",
	Long: `Start the folio HTTP server and worker pool.

Jobs left queued or processing by a previous run are resumed on startup.
When the server shuts down (via Ctrl+C or SIGTERM), running jobs are
marked stopped.

The server provides:
  - /health                 - Basic server health check
  - /ready                  - Readiness check (includes the job store)
  - /api/translations       - Submit and list translation jobs
  - /api/translations/ws    - Live job updates over WebSocket

Examples:
  folio serve                    # Start on the configured address
  folio serve --port 3000        # Start on custom port
  folio serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := slog.Default()

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, reg, err := loadConfig(ctx, h, logger)
		if err != nil {
			return err
		}
		mgr.WatchConfig(func(err error) {
			logger.Warn("config reload rejected", "error", err)
		})
		cfg := mgr.Get()

		store, err := openStore(ctx, cfg.Store, logger)
		if err != nil {
			return err
		}
		if c, ok := store.(jobs.Closer); ok {
			defer c.Close()
		}
		logger.Info("job store ready", "driver", cfg.Store.Driver)

		hub := events.NewHub(logger)
		usage := metrics.NewRecorder()
		controller, closers, err := buildController(ctx, pipelineDeps{
			Config:   cfg,
			Registry: reg,
			Home:     h,
			Store:    store,
			Notifier: hub,
			Metrics:  usage,
			Logger:   logger,
			Publish:  true,
		})
		if err != nil {
			return err
		}
		defer closeAll(closers, logger)

		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host: host,
			Port: port,
			Services: &svcctx.Services{
				Controller: controller,
				Hub:        hub,
				Registry:   reg,
				Config:     mgr,
				Logger:     logger,
				Home:       h,
				Metrics:    usage,
			},
			Endpoints: endpoints.Config{MaxUploadBytes: maxUploadBytes},
			Logger:    logger,
		})
		if err != nil {
			return err
		}

		// Both block until ctx is cancelled
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return controller.Start(gctx) })
		g.Go(func() error { return srv.Start(gctx) })
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (overrides server.port)")
	serveCmd.Flags().Int64Var(&maxUploadBytes, "max-upload-bytes", endpoints.DefaultMaxUploadBytes, "Largest accepted upload")

	rootCmd.AddCommand(serveCmd)
}
