package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/svcctx"
)

// StopTranslationEndpoint handles POST /api/translations/{id}/stop.
type StopTranslationEndpoint struct{}

func (e *StopTranslationEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/translations/{id}/stop", e.handler
}

func (e *StopTranslationEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Request cancellation
//	@Description	The job stops at its next page boundary and keeps finished pages.
//	@Tags			translations
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		202	{object}	jobs.Job
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse	"Job already finished"
//	@Router			/api/translations/{id}/stop [post]
func (e *StopTranslationEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	job, err := svcctx.ControllerFrom(r.Context()).RequestStop(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	job.Pages = nil
	writeJSON(w, http.StatusAccepted, job)
}

func (e *StopTranslationEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a running translation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job jobs.Job
			if err := api.NewClient(getServerURL()).Post(cmd.Context(), "/api/translations/"+args[0]+"/stop", nil, &job); err != nil {
				return err
			}
			return api.Output(job)
		},
	}
}
