package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/events"
	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/svcctx"
)

// TranslationEventsEndpoint handles GET /api/translations/ws.
type TranslationEventsEndpoint struct{}

func (e *TranslationEventsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/translations/ws", e.handler
}

func (e *TranslationEventsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Stream job progress
//	@Description	Websocket. Sends {"type":"initial_jobs"} then one {"type":"job_update"} per change.
//	@Tags			translations
//	@Param			user_id	query	string	false	"Only this owner's jobs"
//	@Param			job_id	query	string	false	"Only this job"
//	@Router			/api/translations/ws [get]
func (e *TranslationEventsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	hub := svcctx.HubFrom(r.Context())
	if hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream not enabled")
		return
	}

	filter := events.Filter{
		UserID: r.URL.Query().Get("user_id"),
		JobID:  r.URL.Query().Get("job_id"),
	}

	var initial []*jobs.Job
	controller := svcctx.ControllerFrom(r.Context())
	if filter.JobID != "" {
		if job, err := controller.Get(r.Context(), filter.JobID); err == nil {
			initial = []*jobs.Job{job}
		}
	} else {
		list, err := controller.List(r.Context(), jobs.ListFilter{UserID: filter.UserID})
		if err != nil {
			svcctx.LoggerFrom(r.Context()).Warn("initial job snapshot failed", "error", err)
		}
		initial = list
	}

	hub.ServeWS(w, r, filter, initial)
}

// Command is nil: websocket streams are for browsers and scripts.
func (e *TranslationEventsEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}
