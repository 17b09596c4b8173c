package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/metrics"
)

var (
	translateTo    string
	translateTitle string
	translateOut   string
)

// progressPrinter reports job updates on stderr.
type progressPrinter struct {
	w    io.Writer
	last int
}

func (p *progressPrinter) JobUpdated(job *jobs.Job) {
	if job.Progress == p.last && !job.Status.Terminal() {
		return
	}
	p.last = job.Progress
	fmt.Fprintf(p.w, "[%3d%%] %s: %s\n", job.Progress, job.Status, job.Message)
}

var translateCmd = &cobra.Command{
	Use:   "translate <file.pdf>",
	Short: "Translate a PDF without a server",
	Long: `Translate a PDF in this process and write the result locally.

Jobs are kept in memory; nothing is published to the configured output
bucket. Providers and pipeline settings come from the config file.

Examples:
  folio translate report.pdf --to French
  folio translate report.pdf --to Japanese --file report_ja.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := slog.Default()

		input, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if _, err := os.Stat(input); err != nil {
			return err
		}

		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, reg, err := loadConfig(ctx, h, logger)
		if err != nil {
			return err
		}

		usage := metrics.NewRecorder()
		controller, closers, err := buildController(ctx, pipelineDeps{
			Config:   mgr.Get(),
			Registry: reg,
			Home:     h,
			Store:    jobs.NewMemoryStore(),
			Notifier: &progressPrinter{w: cmd.ErrOrStderr(), last: -1},
			Metrics:  usage,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		defer closeAll(closers, logger)

		job, err := controller.Submit(ctx, jobs.SubmitRequest{
			InputPath:      input,
			TargetLanguage: translateTo,
			Title:          translateTitle,
		})
		if err != nil {
			return err
		}
		if err := controller.Run(ctx, job.ID); err != nil {
			return err
		}

		job, err = controller.Get(ctx, job.ID)
		if err != nil {
			return err
		}
		for _, u := range usage.Summaries() {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %d calls (%d failed), %d tokens, %.1fs\n",
				u.Provider, u.Model, u.Calls, u.Failures, u.TotalTokens, u.TotalSeconds)
		}
		if job.Status != jobs.StatusCompleted {
			return fmt.Errorf("translation %s: %s", job.Status, job.Message)
		}

		if translateOut != "" {
			if err := copyFile(job.OutputPath, translateOut); err != nil {
				return err
			}
			job.OutputPath = translateOut
		}
		job.Pages = nil
		return api.Output(job)
	},
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func init() {
	translateCmd.Flags().StringVar(&translateTo, "to", "", "Target language (required)")
	translateCmd.Flags().StringVar(&translateTitle, "title", "", "Document title (default: file name)")
	translateCmd.Flags().StringVarP(&translateOut, "file", "f", "", "Copy the translated PDF here")
	translateCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(translateCmd)
}
