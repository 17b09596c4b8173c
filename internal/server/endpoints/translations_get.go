package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/svcctx"
)

// GetTranslationEndpoint handles GET /api/translations/{id}.
type GetTranslationEndpoint struct{}

func (e *GetTranslationEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/translations/{id}", e.handler
}

func (e *GetTranslationEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get translation job status
//	@Description	Safe to poll at any time. Page text is omitted; see /pages.
//	@Tags			translations
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	jobs.Job
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/translations/{id} [get]
func (e *GetTranslationEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	job, err := svcctx.ControllerFrom(r.Context()).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	job.Pages = nil
	writeJSON(w, http.StatusOK, job)
}

func (e *GetTranslationEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a translation job by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job jobs.Job
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/translations/"+args[0], &job); err != nil {
				return err
			}
			return api.Output(job)
		},
	}
}

// PagesResponse lists a job's pages in page order.
type PagesResponse struct {
	JobID string            `json:"job_id"`
	Pages []jobs.PageRecord `json:"pages"`
}

// TranslationPagesEndpoint handles GET /api/translations/{id}/pages.
type TranslationPagesEndpoint struct{}

func (e *TranslationPagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/translations/{id}/pages", e.handler
}

func (e *TranslationPagesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List translated pages
//	@Tags			translations
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	PagesResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/translations/{id}/pages [get]
func (e *TranslationPagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pages, err := svcctx.ControllerFrom(r.Context()).Pages(r.Context(), id)
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PagesResponse{JobID: id, Pages: pages})
}

func (e *TranslationPagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "pages <id>",
		Short: "Show a job's page texts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp PagesResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/translations/"+args[0]+"/pages", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
