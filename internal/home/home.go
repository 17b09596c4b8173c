package home

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDirName is the default name for the folio home directory.
	DefaultDirName = ".folio"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	uploadsDirName = "uploads"
	outputsDirName = "outputs"
	scratchDirName = "scratch"
)

// Dir represents the folio home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.folio).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}
	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// UploadsDir holds PDFs received over HTTP.
func (d *Dir) UploadsDir() string {
	return filepath.Join(d.path, uploadsDirName)
}

// OutputsDir holds composed PDFs.
func (d *Dir) OutputsDir() string {
	return filepath.Join(d.path, outputsDirName)
}

// ScratchRoot holds per-job working directories.
func (d *Dir) ScratchRoot() string {
	return filepath.Join(d.path, scratchDirName)
}

// PromptsDir holds optional prompt template overrides.
func (d *Dir) PromptsDir() string {
	return filepath.Join(d.path, "prompts")
}

// ScratchDir returns the working directory of one job.
func (d *Dir) ScratchDir(jobID string) string {
	return filepath.Join(d.ScratchRoot(), jobID)
}

// UploadPath returns where an uploaded file is stored. The stored name is
// prefixed with id so two uploads of the same file never collide.
func (d *Dir) UploadPath(id, filename string) string {
	return filepath.Join(d.UploadsDir(), id+"_"+filepath.Base(filename))
}

// ErrOutsideUploads is returned by ResolveUpload for paths that are not
// regular files inside the uploads directory.
var ErrOutsideUploads = errors.New("not a file under the uploads directory")

// ResolveUpload resolves path to a regular file inside UploadsDir, following
// symlinks. Relative paths are taken relative to UploadsDir. The error does
// not say whether the file exists.
func (d *Dir) ResolveUpload(path string) (string, error) {
	root, err := filepath.EvalSymlinks(d.UploadsDir())
	if err != nil {
		return "", ErrOutsideUploads
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return "", ErrOutsideUploads
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.UploadsDir(), path)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", ErrOutsideUploads
	}
	resolved, err = filepath.Abs(resolved)
	if err != nil {
		return "", ErrOutsideUploads
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideUploads
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrOutsideUploads
	}
	return resolved, nil
}

// EnsureExists creates the home directory and its subdirectories.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.UploadsDir(), d.OutputsDir(), d.ScratchRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
