package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/jackzampolin/folio/internal/jobs"
)

// GCSSink copies finished documents into a Cloud Storage bucket as
// <job-id>/<name>.pdf. Objects are written once; a second publish of the
// same job is treated as already done.
type GCSSink struct {
	bucket string
	client *storage.Client
	logger *slog.Logger

	// newWriter opens a create-only writer for an object.
	newWriter func(ctx context.Context, object string) io.WriteCloser
}

// NewGCSSink connects to Cloud Storage with application default credentials.
func NewGCSSink(ctx context.Context, bucket string, logger *slog.Logger) (*GCSSink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs sink requires a bucket")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	s := &GCSSink{bucket: bucket, client: client, logger: logger}
	handle := client.Bucket(bucket)
	s.newWriter = func(ctx context.Context, object string) io.WriteCloser {
		w := handle.Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
		w.ContentType = "application/pdf"
		return w
	}
	return s, nil
}

// ObjectName returns the object key used for a job's output.
func ObjectName(job *jobs.Job) string {
	name := job.StoredFilename
	if name == "" {
		name = job.ID
	}
	name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return path.Join(job.ID, name+".pdf")
}

// Publish uploads localPath and returns its gs:// URI.
func (s *GCSSink) Publish(ctx context.Context, job *jobs.Job, localPath string) (string, error) {
	object := ObjectName(job)
	uri := fmt.Sprintf("gs://%s/%s", s.bucket, object)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	w := s.newWriter(ctx, object)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		if alreadyExists(err) {
			s.logger.Info("output already published", "object", object)
			return uri, nil
		}
		return "", fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		if alreadyExists(err) {
			s.logger.Info("output already published", "object", object)
			return uri, nil
		}
		return "", fmt.Errorf("failed to finalize GCS write: %w", err)
	}

	s.logger.Info("output published", "uri", uri)
	return uri, nil
}

// Close releases the storage client.
func (s *GCSSink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func alreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
