package jobstore

import (
	"context"
	"testing"

	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/testutil"
)

func TestPostgres(t *testing.T) {
	url := testutil.StartPostgres(t)

	runStoreSuite(t, func(t *testing.T) jobs.Store {
		s, err := NewPostgres(context.Background(), PostgresConfig{URL: url})
		if err != nil {
			t.Fatalf("NewPostgres() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		if err := s.Ping(context.Background()); err != nil {
			t.Fatalf("Ping() error = %v", err)
		}
		return s
	})
}

func TestNewPostgres_RequiresURL(t *testing.T) {
	if _, err := NewPostgres(context.Background(), PostgresConfig{}); err == nil {
		t.Error("expected error for empty URL")
	}
}
