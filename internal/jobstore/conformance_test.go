package jobstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/folio/internal/jobs"
)

// runStoreSuite checks the behavior every jobs.Store must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) jobs.Store) {
	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		job := jobs.NewJob(jobs.SubmitRequest{UserID: "u1", InputPath: "/in/a.pdf", TargetLanguage: "French"})
		job.Pages = []jobs.PageRecord{{PageNumber: 1, OriginalText: "hello", Status: jobs.PageTranslated, TranslatedText: "bonjour"}}
		if err := s.Create(ctx, job); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := s.Create(ctx, job); err == nil {
			t.Error("duplicate Create() should fail")
		}

		got, err := s.Get(ctx, job.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.UserID != "u1" || got.Status != jobs.StatusQueued || got.Title != "a" {
			t.Errorf("Get() = %+v", got)
		}
		if len(got.Pages) != 1 || got.Pages[0].TranslatedText != "bonjour" {
			t.Errorf("pages = %+v", got.Pages)
		}
		if !got.CreatedAt.Equal(job.CreatedAt.Truncate(time.Microsecond)) && !got.CreatedAt.Equal(job.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, job.CreatedAt)
		}

		if _, err := s.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, jobs.ErrNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		job := jobs.NewJob(jobs.SubmitRequest{InputPath: "a.pdf", TargetLanguage: "French"})
		if err := s.Create(ctx, job); err != nil {
			t.Fatal(err)
		}

		updated, err := s.Update(ctx, job.ID, func(j *jobs.Job) error {
			j.Status = jobs.StatusProcessing
			j.Progress = 35
			j.Pages = append(j.Pages, jobs.PageRecord{PageNumber: 1, Status: jobs.PageFailed, Error: "translate: boom"})
			return nil
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if updated.Progress != 35 || len(updated.Pages) != 1 {
			t.Errorf("Update() = %+v", updated)
		}
		if !updated.UpdatedAt.After(job.UpdatedAt) && !updated.UpdatedAt.Equal(job.UpdatedAt) {
			t.Error("UpdatedAt moved backwards")
		}

		sentinel := errors.New("abort")
		if _, err := s.Update(ctx, job.ID, func(j *jobs.Job) error {
			j.Progress = 0
			return sentinel
		}); !errors.Is(err, sentinel) {
			t.Errorf("Update() error = %v, want sentinel", err)
		}
		got, _ := s.Get(ctx, job.ID)
		if got.Progress != 35 || got.Pages[0].Error != "translate: boom" {
			t.Errorf("aborted update was written: %+v", got)
		}

		if _, err := s.Update(ctx, "00000000-0000-0000-0000-000000000000", func(*jobs.Job) error { return nil }); !errors.Is(err, jobs.ErrNotFound) {
			t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent updates do not clobber", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		job := jobs.NewJob(jobs.SubmitRequest{InputPath: "a.pdf", TargetLanguage: "French"})
		if err := s.Create(ctx, job); err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Update(ctx, job.ID, func(j *jobs.Job) error {
					j.CurrentPage++
					return nil
				})
				if err != nil {
					t.Errorf("Update() error = %v", err)
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Update(ctx, job.ID, func(j *jobs.Job) error {
				j.StopRequested = true
				return nil
			})
		}()
		wg.Wait()

		got, _ := s.Get(ctx, job.ID)
		if got.CurrentPage != 10 || !got.StopRequested {
			t.Errorf("after concurrent updates: current=%d stop=%v", got.CurrentPage, got.StopRequested)
		}
	})

	t.Run("list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		user := fmt.Sprintf("user-%d", time.Now().UnixNano())
		base := time.Now().UTC().Truncate(time.Millisecond)

		for i, st := range []jobs.Status{jobs.StatusCompleted, jobs.StatusQueued, jobs.StatusCompleted} {
			j := jobs.NewJob(jobs.SubmitRequest{UserID: user, InputPath: fmt.Sprintf("%d.pdf", i), TargetLanguage: "French"})
			j.Status = st
			j.CreatedAt = base.Add(time.Duration(i) * time.Second)
			if err := s.Create(ctx, j); err != nil {
				t.Fatal(err)
			}
		}

		all, err := s.List(ctx, jobs.ListFilter{UserID: user})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 3 || all[0].StoredFilename != "2.pdf" || all[2].StoredFilename != "0.pdf" {
			t.Errorf("List() order = %v", names(all))
		}

		done, _ := s.List(ctx, jobs.ListFilter{UserID: user, Status: jobs.StatusCompleted})
		if len(done) != 2 {
			t.Errorf("status filter returned %d jobs", len(done))
		}

		limited, _ := s.List(ctx, jobs.ListFilter{UserID: user, Limit: 1})
		if len(limited) != 1 || limited[0].StoredFilename != "2.pdf" {
			t.Errorf("limited = %v", names(limited))
		}
	})
}

func names(js []*jobs.Job) []string {
	out := make([]string, len(js))
	for i, j := range js {
		out[i] = j.StoredFilename
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) jobs.Store { return jobs.NewMemoryStore() })
}
