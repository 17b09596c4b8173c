// Package output publishes finished documents.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackzampolin/folio/internal/jobs"
)

// Sink publishes a composed PDF and returns the URI it can be fetched from.
// An empty URI means the local file is the only copy.
type Sink interface {
	Publish(ctx context.Context, job *jobs.Job, localPath string) (string, error)
}

// Local leaves the file where the composer wrote it.
type Local struct {
	// ReportURI makes Publish return a file:// URI instead of "".
	ReportURI bool
}

// Publish checks the file exists and reports its location.
func (l Local) Publish(ctx context.Context, job *jobs.Job, localPath string) (string, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("output %s: %w", localPath, err)
	}
	if !l.ReportURI {
		return "", nil
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Config selects a sink.
type Config struct {
	GCSBucket string
	Logger    *slog.Logger
}

// New returns a GCS sink when a bucket is configured, else a Local sink.
func New(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.GCSBucket == "" {
		return Local{}, nil
	}
	return NewGCSSink(ctx, cfg.GCSBucket, cfg.Logger)
}

var (
	_ jobs.Publisher = Local{}
	_ jobs.Publisher = (*GCSSink)(nil)
)
