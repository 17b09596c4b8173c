package endpoints

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/svcctx"
)

// CreateTranslationRequest is the body of POST /api/translations.
// InputPath must name a PDF inside the server's uploads directory; relative
// paths are resolved against it.
type CreateTranslationRequest struct {
	UserID         string `json:"user_id,omitempty"`
	InputPath      string `json:"input_path"`
	TargetLanguage string `json:"target_language"`
	Title          string `json:"title,omitempty"`
}

const createTranslationSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["input_path", "target_language"],
  "additionalProperties": false,
  "properties": {
    "user_id": {"type": "string", "maxLength": 256},
    "input_path": {"type": "string", "minLength": 1},
    "target_language": {"type": "string", "minLength": 1, "maxLength": 64, "pattern": "\\S"},
    "title": {"type": "string", "maxLength": 512}
  }
}`

var compileCreateSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("create_translation.json", strings.NewReader(createTranslationSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("create_translation.json")
})

// decodeCreateRequest validates body against the request schema before
// decoding it.
func decodeCreateRequest(body io.Reader) (CreateTranslationRequest, error) {
	var req CreateTranslationRequest

	raw, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return req, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}

	schema, err := compileCreateSchema()
	if err != nil {
		return req, fmt.Errorf("failed to compile request schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return req, fmt.Errorf("request does not match schema: %w", err)
	}

	if err := json.Unmarshal(raw, &req); err != nil {
		return req, err
	}
	return req, nil
}

// CreateTranslationEndpoint handles POST /api/translations.
type CreateTranslationEndpoint struct{}

var _ api.Endpoint = (*CreateTranslationEndpoint)(nil)

func (e *CreateTranslationEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/translations", e.handler
}

func (e *CreateTranslationEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Submit a translation job
//	@Description	Queue translation of a PDF already on the server's disk
//	@Tags			translations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateTranslationRequest	true	"Job request"
//	@Success		202		{object}	jobs.Job
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/translations [post]
func (e *CreateTranslationEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	homeDir := svcctx.HomeFrom(r.Context())
	if homeDir == nil {
		writeError(w, http.StatusServiceUnavailable, "home directory not initialized")
		return
	}
	input, err := homeDir.ResolveUpload(req.InputPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "input_path must name a file under the uploads directory")
		return
	}

	submit(w, r, jobs.SubmitRequest{
		UserID:         req.UserID,
		InputPath:      input,
		TargetLanguage: req.TargetLanguage,
		Title:          req.Title,
	})
}

// submit hands req to the controller and writes 202 with the new job.
func submit(w http.ResponseWriter, r *http.Request, req jobs.SubmitRequest) {
	controller := svcctx.ControllerFrom(r.Context())
	job, err := controller.Submit(r.Context(), req)
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (e *CreateTranslationEndpoint) Command(getServerURL func() string) *cobra.Command {
	var to, title, user string
	var remote bool
	cmd := &cobra.Command{
		Use:   "create <file.pdf>",
		Short: "Submit a PDF for translation",
		Long: `Submit a PDF for translation.

By default the file is uploaded. With --remote the argument is a path
inside the server's uploads directory and nothing is uploaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(to) == "" {
				return fmt.Errorf("--to is required")
			}
			client := api.NewClient(getServerURL())
			var job jobs.Job
			if remote {
				req := CreateTranslationRequest{UserID: user, InputPath: args[0], TargetLanguage: to, Title: title}
				if err := client.Post(cmd.Context(), "/api/translations", req, &job); err != nil {
					return err
				}
			} else {
				fields := map[string]string{"target_language": to, "user_id": user, "title": title}
				if err := client.Upload(cmd.Context(), "/api/translations/upload", args[0], fields, &job); err != nil {
					return err
				}
			}
			return api.Output(job)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Target language (required)")
	cmd.Flags().StringVar(&title, "title", "", "Document title (defaults to the file name)")
	cmd.Flags().StringVar(&user, "user", "", "Owner id")
	cmd.Flags().BoolVar(&remote, "remote", false, "Treat the argument as a path in the server's uploads directory")
	return cmd
}

// ListTranslationsResponse wraps a job listing.
type ListTranslationsResponse struct {
	Translations []*jobs.Job `json:"translations"`
}

// ListTranslationsEndpoint handles GET /api/translations.
type ListTranslationsEndpoint struct{}

func (e *ListTranslationsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/translations", e.handler
}

func (e *ListTranslationsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List translation jobs
//	@Description	Newest first. Page text is omitted.
//	@Tags			translations
//	@Produce		json
//	@Param			user_id	query		string	false	"Owner"
//	@Param			status	query		string	false	"Status filter"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	ListTranslationsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/translations [get]
func (e *ListTranslationsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := svcctx.ControllerFrom(r.Context()).List(r.Context(), filter)
	if err != nil {
		writeJobError(w, err)
		return
	}
	for _, job := range list {
		job.Pages = nil
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	writeJSON(w, http.StatusOK, ListTranslationsResponse{Translations: list})
}

func parseListFilter(r *http.Request) (jobs.ListFilter, error) {
	q := r.URL.Query()
	filter := jobs.ListFilter{
		UserID: q.Get("user_id"),
		Status: jobs.Status(q.Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return filter, fmt.Errorf("unknown status %q", filter.Status)
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid limit %q", s)
		}
		filter.Limit = n
	}
	return filter, nil
}

func (e *ListTranslationsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var user, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List translation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if user != "" {
				q.Set("user_id", user)
			}
			if status != "" {
				q.Set("status", status)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/translations"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			var resp ListTranslationsResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Filter by owner")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	return cmd
}
