package endpoints

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/svcctx"
)

var pdfMagic = []byte("%PDF-")

// UploadTranslationEndpoint handles POST /api/translations/upload.
type UploadTranslationEndpoint struct {
	MaxBytes int64
}

var _ api.Endpoint = (*UploadTranslationEndpoint)(nil)

func (e *UploadTranslationEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/translations/upload", e.handler
}

func (e *UploadTranslationEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Upload a PDF and submit it for translation
//	@Tags			translations
//	@Accept			mpfd
//	@Produce		json
//	@Param			file			formData	file	true	"PDF to translate"
//	@Param			target_language	formData	string	true	"Target language"
//	@Param			user_id			formData	string	false	"Owner"
//	@Param			title			formData	string	false	"Title (derived from filename if not provided)"
//	@Success		202				{object}	jobs.Job
//	@Failure		400				{object}	ErrorResponse
//	@Failure		413				{object}	ErrorResponse
//	@Failure		503				{object}	ErrorResponse
//	@Router			/api/translations/upload [post]
func (e *UploadTranslationEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	homeDir := svcctx.HomeFrom(r.Context())
	if homeDir == nil {
		writeError(w, http.StatusServiceUnavailable, "home directory not initialized")
		return
	}
	logger := svcctx.LoggerFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, e.MaxBytes)
	const maxMemory = 32 << 20
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	target := strings.TrimSpace(r.FormValue("target_language"))
	if target == "" {
		writeError(w, http.StatusBadRequest, "target_language is required")
		return
	}

	src, fh, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer src.Close()

	filename := filepath.Base(fh.Filename)
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF", filename))
		return
	}
	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(src, head); err != nil || !bytes.Equal(head, pdfMagic) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF", filename))
		return
	}

	if err := os.MkdirAll(homeDir.UploadsDir(), 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create uploads dir: %v", err))
		return
	}
	destPath := homeDir.UploadPath(uuid.NewString(), filename)
	if err := saveUpload(destPath, io.MultiReader(bytes.NewReader(head), src)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("upload saved", "path", destPath, "size", fh.Size)

	controller := svcctx.ControllerFrom(r.Context())
	job, err := controller.Submit(r.Context(), jobs.SubmitRequest{
		UserID:         r.FormValue("user_id"),
		InputPath:      destPath,
		StoredFilename: filename,
		TargetLanguage: target,
		Title:          r.FormValue("title"),
	})
	if err != nil {
		if job == nil {
			os.Remove(destPath)
		}
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return fmt.Errorf("failed to save file: %w", err)
	}
	return dst.Close()
}

// Command is nil: "translations create" uploads by default.
func (e *UploadTranslationEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}
