package main

import (
	"bytes"
	"testing"

	"github.com/jackzampolin/folio/internal/jobs"
)

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "****"},
		{"sk-1234567890", "sk-1****"},
	}
	for _, tt := range tests {
		if got := mask(tt.in); got != tt.want {
			t.Errorf("mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &progressPrinter{w: &buf, last: -1}

	p.JobUpdated(&jobs.Job{Status: jobs.StatusProcessing, Progress: 10, Message: "extracted 2 pages"})
	p.JobUpdated(&jobs.Job{Status: jobs.StatusProcessing, Progress: 10, Message: "again"})
	p.JobUpdated(&jobs.Job{Status: jobs.StatusCompleted, Progress: 100, Message: "completed"})

	want := "[ 10%] processing: extracted 2 pages\n[100%] completed: completed\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestNewLogger(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "warn", "error"} {
		if _, err := newLogger(lvl); err != nil {
			t.Errorf("newLogger(%q) = %v", lvl, err)
		}
	}
	if _, err := newLogger("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestCommandTree(t *testing.T) {
	want := map[string]bool{"serve": false, "translate": false, "config": false, "api": false, "version": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing command %q", name)
		}
	}
}
