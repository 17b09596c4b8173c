package home

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-folio")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-folio" {
			t.Errorf("expected path /tmp/test-folio, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		home, _ := os.UserHomeDir()
		if want := filepath.Join(home, DefaultDirName); dir.Path() != want {
			t.Errorf("expected path %s, got %s", want, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-folio")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ConfigPath", dir.ConfigPath(), "/tmp/test-folio/config.yaml"},
		{"UploadsDir", dir.UploadsDir(), "/tmp/test-folio/uploads"},
		{"OutputsDir", dir.OutputsDir(), "/tmp/test-folio/outputs"},
		{"PromptsDir", dir.PromptsDir(), "/tmp/test-folio/prompts"},
		{"ScratchDir", dir.ScratchDir("job1"), "/tmp/test-folio/scratch/job1"},
		{"UploadPath", dir.UploadPath("abc", "../../etc/report.pdf"), "/tmp/test-folio/uploads/abc_report.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}

func TestDir_EnsureExists(t *testing.T) {
	dir, err := New(filepath.Join(t.TempDir(), "folio-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir.Exists() {
		t.Error("directory should not exist yet")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}
	for _, p := range []string{dir.UploadsDir(), dir.OutputsDir(), dir.ScratchRoot()} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Errorf("%s not created", p)
		}
	}

	// Idempotent
	if err := dir.EnsureExists(); err != nil {
		t.Errorf("second EnsureExists failed: %v", err)
	}
	if dir.ConfigExists() {
		t.Error("config should not exist")
	}
}

func TestDir_ResolveUpload(t *testing.T) {
	base := t.TempDir()
	dir, _ := New(filepath.Join(base, "home"))
	if err := dir.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	inside := filepath.Join(dir.UploadsDir(), "doc.pdf")
	outside := filepath.Join(base, "secret.pdf")
	for _, p := range []string{inside, outside} {
		if err := os.WriteFile(p, []byte("%PDF-1.4"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(outside, filepath.Join(dir.UploadsDir(), "link.pdf")); err != nil {
		t.Fatal(err)
	}
	want, err := filepath.EvalSymlinks(inside)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"absolute inside", inside, false},
		{"relative inside", "doc.pdf", false},
		{"dot segments inside", filepath.Join(dir.UploadsDir(), "x", "..", "doc.pdf"), false},
		{"outside", outside, true},
		{"relative escape", "../../secret.pdf", true},
		{"dot segments escape", filepath.Join(dir.UploadsDir(), "..", "..", "secret.pdf"), true},
		{"symlink escape", filepath.Join(dir.UploadsDir(), "link.pdf"), true},
		{"uploads dir itself", dir.UploadsDir(), true},
		{"missing", filepath.Join(dir.UploadsDir(), "missing.pdf"), true},
		{"system file", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dir.ResolveUpload(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrOutsideUploads) {
					t.Errorf("ResolveUpload(%q) = %q, %v; want ErrOutsideUploads", tt.path, got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveUpload(%q) error = %v", tt.path, err)
			}
			if got != want {
				t.Errorf("ResolveUpload(%q) = %q, want %q", tt.path, got, want)
			}
		})
	}
}
