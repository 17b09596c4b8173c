package endpoints

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/svcctx"
)

// DownloadTranslationEndpoint handles GET /api/translations/{id}/download.
type DownloadTranslationEndpoint struct{}

func (e *DownloadTranslationEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/translations/{id}/download", e.handler
}

func (e *DownloadTranslationEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Download the translated PDF
//	@Tags			translations
//	@Produce		application/pdf
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse	"Job not completed"
//	@Failure		410	{object}	ErrorResponse	"Output file removed"
//	@Router			/api/translations/{id}/download [get]
func (e *DownloadTranslationEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	job, err := svcctx.ControllerFrom(r.Context()).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	if job.Status != jobs.StatusCompleted {
		writeError(w, http.StatusConflict, fmt.Sprintf("job is %s, not completed", job.Status))
		return
	}

	f, err := os.Open(job.OutputPath)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Warn("output missing for completed job", "job_id", job.ID, "path", job.OutputPath, "error", err)
		writeError(w, http.StatusGone, "output file is no longer available")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": DownloadName(job)}))
	http.ServeContent(w, r, "", info.ModTime(), f)
}

// DownloadName is the suggested file name for a job's output,
// e.g. "report_french.pdf".
func DownloadName(job *jobs.Job) string {
	base := job.Title
	if base == "" {
		base = job.ID
	}
	name := safeName(base) + "_" + safeName(strings.ToLower(job.TargetLanguage))
	return strings.Trim(name, "_") + ".pdf"
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

func (e *DownloadTranslationEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a completed translation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outFile == "" {
				outFile = args[0] + ".pdf"
			}
			f, err := os.Create(outFile)
			if err != nil {
				return err
			}
			n, err := api.NewClient(getServerURL()).Download(cmd.Context(), "/api/translations/"+args[0]+"/download", f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(outFile)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outFile, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "file", "f", "", "Output file (default <id>.pdf)")
	return cmd
}
