package jobs

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a translation job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
	StatusStopped    Status = "stopped"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled, StatusStopped:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusQueued || s == StatusProcessing || s.Terminal()
}

// PageStatus tracks a single page through the pipeline.
type PageStatus string

const (
	PagePending    PageStatus = "pending"
	PageExtracted  PageStatus = "extracted"
	PageTranslated PageStatus = "translated"
	PageFailed     PageStatus = "failed"
)

// PageRecord is the per-page state kept on a job.
type PageRecord struct {
	PageNumber     int        `json:"page_number" firestore:"page_number"`
	OriginalText   string     `json:"original_text" firestore:"original_text"`
	TranslatedText string     `json:"translated_text" firestore:"translated_text"`
	NeedsOCR       bool       `json:"needs_ocr" firestore:"needs_ocr"`
	Status         PageStatus `json:"status" firestore:"status"`
	Error          string     `json:"error,omitempty" firestore:"error,omitempty"`
}

// Job is the persisted record of one translation request.
// The store owns it; everything else works on copies.
type Job struct {
	ID             string       `json:"id" firestore:"id"`
	UserID         string       `json:"user_id" firestore:"user_id"`
	InputPath      string       `json:"input_path" firestore:"input_path"`
	StoredFilename string       `json:"stored_filename" firestore:"stored_filename"`
	TargetLanguage string       `json:"target_language" firestore:"target_language"`
	Title          string       `json:"title,omitempty" firestore:"title,omitempty"`
	Status         Status       `json:"status" firestore:"status"`
	Progress       int          `json:"progress" firestore:"progress"`
	TotalPages     int          `json:"total_pages" firestore:"total_pages"`
	CurrentPage    int          `json:"current_page" firestore:"current_page"`
	Pages          []PageRecord `json:"pages,omitempty" firestore:"pages"`
	OutputPath     string       `json:"output_path,omitempty" firestore:"output_path,omitempty"`
	OutputURI      string       `json:"output_uri,omitempty" firestore:"output_uri,omitempty"`
	Message        string       `json:"message,omitempty" firestore:"message,omitempty"`
	StopRequested  bool         `json:"stop_requested" firestore:"stop_requested"`
	CreatedAt      time.Time    `json:"created_at" firestore:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" firestore:"updated_at"`
	StartedAt      time.Time    `json:"started_at,omitzero" firestore:"started_at,omitempty"`
	FinishedAt     time.Time    `json:"finished_at,omitzero" firestore:"finished_at,omitempty"`
}

// SubmitRequest carries the caller-supplied fields of a new job.
type SubmitRequest struct {
	UserID         string `json:"user_id"`
	InputPath      string `json:"input_path"`
	StoredFilename string `json:"stored_filename,omitempty"`
	TargetLanguage string `json:"target_language"`
	Title          string `json:"title,omitempty"`
}

// NewJob builds a queued job from a submit request.
func NewJob(req SubmitRequest) *Job {
	now := time.Now().UTC()
	stored := req.StoredFilename
	if stored == "" {
		stored = filepath.Base(req.InputPath)
	}
	title := req.Title
	if title == "" {
		title = strings.TrimSuffix(stored, filepath.Ext(stored))
	}
	return &Job{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		InputPath:      req.InputPath,
		StoredFilename: stored,
		TargetLanguage: strings.TrimSpace(req.TargetLanguage),
		Title:          title,
		Status:         StatusQueued,
		Message:        "queued",
		Pages:          []PageRecord{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Pages = ClonePages(j.Pages)
	return &c
}

// ClonePages copies a page slice so callers cannot alias store state.
func ClonePages(pages []PageRecord) []PageRecord {
	out := make([]PageRecord, len(pages))
	copy(out, pages)
	return out
}

// advance moves progress forward, never backwards, and never to 100
// unless the job is terminal.
func (j *Job) advance(p int) {
	if p > 99 {
		p = 99
	}
	if p > j.Progress {
		j.Progress = p
	}
}

// finish marks the job terminal.
func (j *Job) finish(status Status, message string) {
	j.Status = status
	j.Progress = 100
	j.Message = message
	j.FinishedAt = time.Now().UTC()
}

// ListFilter specifies criteria for listing jobs.
type ListFilter struct {
	UserID string // Filter by owner (empty = all)
	Status Status // Filter by status (empty = all)
	Limit  int    // Max results (0 = default 100)
}

// DefaultListLimit caps List results when the filter leaves Limit unset.
const DefaultListLimit = 100

// EffectiveLimit returns the limit to apply for f.
func (f ListFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Matches reports whether job satisfies the filter.
func (f ListFilter) Matches(job *Job) bool {
	if f.UserID != "" && job.UserID != f.UserID {
		return false
	}
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	return true
}
