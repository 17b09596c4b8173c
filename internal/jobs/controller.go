package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackzampolin/folio/internal/chunk"
	"github.com/jackzampolin/folio/internal/compose"
)

// Extractor produces one record per page of a PDF.
type Extractor interface {
	Extract(ctx context.Context, data []byte) ([]PageRecord, error)
}

// PageOCR recovers the text of a single page.
type PageOCR interface {
	OCRPage(ctx context.Context, pdfPath string, page int, workDir string) (string, error)
}

// Translator translates one chunk of text.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// Composer writes the translated document.
type Composer interface {
	Compose(ctx context.Context, pages []compose.PageText, outputPath, title string) (string, error)
}

// Publisher copies a finished document somewhere else and returns its URI.
type Publisher interface {
	Publish(ctx context.Context, job *Job, localPath string) (string, error)
}

// Notifier is told about every persisted job change.
type Notifier interface {
	JobUpdated(job *Job)
}

var (
	// errStopRequested ends the page loop when the caller asked to stop.
	errStopRequested = errors.New("stop requested")

	// errClaimed means another worker already started the job. A queued id
	// can be enqueued twice when Resume races a fresh Submit.
	errClaimed = errors.New("job already claimed")
)

// resumeLimit bounds how many records Resume inspects per status.
const resumeLimit = 10000

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Store      Store
	Pool       *Pool // Default NewPool with 2 workers
	Extractor  Extractor
	OCR        PageOCR // Nil skips the OCR pass
	Translator Translator
	Composer   Composer
	Publisher  Publisher // Optional
	Notifier   Notifier  // Optional

	MaxChunkChars int         // Default chunk.DefaultMaxChunkSize
	FlushEvery    int         // Persist pages every N pages (default 1)
	MergePolicy   MergePolicy // Default MergePreferOCR

	ScratchRoot string // Per-job scratch dirs live under here
	OutputRoot  string // Finished PDFs are written here
	KeepScratch bool

	Logger *slog.Logger
}

// Controller owns the job lifecycle: submission, execution, cancellation.
type Controller struct {
	store      Store
	pool       *Pool
	extractor  Extractor
	ocr        PageOCR
	translator Translator
	composer   Composer
	publisher  Publisher
	notifier   Notifier

	maxChunk    int
	flushEvery  int
	merge       MergePolicy
	scratchRoot string
	outputRoot  string
	keepScratch bool

	logger *slog.Logger
}

// NewController creates a controller. Store, Extractor, Translator, Composer
// and OutputRoot are required.
func NewController(cfg ControllerConfig) (*Controller, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("controller requires a store")
	case cfg.Extractor == nil:
		return nil, errors.New("controller requires an extractor")
	case cfg.Translator == nil:
		return nil, errors.New("controller requires a translator")
	case cfg.Composer == nil:
		return nil, errors.New("controller requires a composer")
	case cfg.OutputRoot == "":
		return nil, errors.New("controller requires an output directory")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pool := cfg.Pool
	if pool == nil {
		pool = NewPool(PoolConfig{Logger: logger})
	}
	maxChunk := cfg.MaxChunkChars
	if maxChunk <= 0 {
		maxChunk = chunk.DefaultMaxChunkSize
	}
	flushEvery := cfg.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 1
	}
	merge := cfg.MergePolicy
	if merge == "" {
		merge = MergePreferOCR
	}
	scratch := cfg.ScratchRoot
	if scratch == "" {
		scratch = filepath.Join(os.TempDir(), "folio-scratch")
	}

	return &Controller{
		store:       cfg.Store,
		pool:        pool,
		extractor:   cfg.Extractor,
		ocr:         cfg.OCR,
		translator:  cfg.Translator,
		composer:    cfg.Composer,
		publisher:   cfg.Publisher,
		notifier:    cfg.Notifier,
		maxChunk:    maxChunk,
		flushEvery:  flushEvery,
		merge:       merge,
		scratchRoot: scratch,
		outputRoot:  cfg.OutputRoot,
		keepScratch: cfg.KeepScratch,
		logger:      logger,
	}, nil
}

// Pool returns the worker pool jobs are queued on.
func (c *Controller) Pool() *Pool {
	return c.pool
}

// Store returns the backing job store.
func (c *Controller) Store() Store {
	return c.store
}

// Submit records a new queued job and hands it to the pool.
func (c *Controller) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return nil, fmt.Errorf("%w: input_path is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.TargetLanguage) == "" {
		return nil, fmt.Errorf("%w: target_language is required", ErrInvalidRequest)
	}

	job := NewJob(req)
	if err := c.store.Create(ctx, job); err != nil {
		return nil, &StoreWriteError{Op: "create", Err: err}
	}
	c.notify(job)
	c.logger.Info("job submitted", "job_id", job.ID, "user_id", job.UserID, "target_language", job.TargetLanguage)

	if err := c.pool.Enqueue(job.ID); err != nil {
		failed, uerr := c.store.Update(ctx, job.ID, func(j *Job) error {
			j.finish(StatusError, "rejected: "+err.Error())
			return nil
		})
		if uerr != nil {
			c.logger.Error("failed to record rejected job", "job_id", job.ID, "error", uerr)
			return job, err
		}
		c.notify(failed)
		return failed, err
	}
	return job, nil
}

// Get returns the current state of a job.
func (c *Controller) Get(ctx context.Context, id string) (*Job, error) {
	return c.store.Get(ctx, id)
}

// List returns jobs matching filter, newest first.
func (c *Controller) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	return c.store.List(ctx, filter)
}

// Pages returns a job's page records ordered by page number.
func (c *Controller) Pages(ctx context.Context, id string) ([]PageRecord, error) {
	job, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	pages := ClonePages(job.Pages)
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })
	return pages, nil
}

// RequestStop sets the cooperative stop flag. The worker notices it at the
// next checkpoint. Stopping a finished job returns ErrTerminal.
func (c *Controller) RequestStop(ctx context.Context, id string) (*Job, error) {
	job, err := c.store.Update(ctx, id, func(j *Job) error {
		if j.Status.Terminal() {
			return ErrTerminal
		}
		j.StopRequested = true
		j.Message = "stop requested"
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.notify(job)
	c.logger.Info("stop requested", "job_id", id)
	return job, nil
}

// Resume re-enqueues queued jobs left by a previous process and fails jobs
// that were mid-run when it died.
func (c *Controller) Resume(ctx context.Context) error {
	queued, err := c.store.List(ctx, ListFilter{Status: StatusQueued, Limit: resumeLimit})
	if err != nil {
		return fmt.Errorf("list queued jobs: %w", err)
	}
	// Oldest first so the queue keeps submission order.
	for i := len(queued) - 1; i >= 0; i-- {
		if err := c.pool.Enqueue(queued[i].ID); err != nil {
			c.logger.Warn("could not re-enqueue job", "job_id", queued[i].ID, "error", err)
		}
	}

	running, err := c.store.List(ctx, ListFilter{Status: StatusProcessing, Limit: resumeLimit})
	if err != nil {
		return fmt.Errorf("list processing jobs: %w", err)
	}
	for _, job := range running {
		updated, err := c.store.Update(ctx, job.ID, func(j *Job) error {
			if j.Status != StatusProcessing {
				return ErrTerminal
			}
			j.finish(StatusError, "interrupted by restart")
			return nil
		})
		if err != nil {
			if !errors.Is(err, ErrTerminal) {
				c.logger.Warn("could not mark interrupted job", "job_id", job.ID, "error", err)
			}
			continue
		}
		c.notify(updated)
	}

	if len(queued) > 0 || len(running) > 0 {
		c.logger.Info("resumed jobs", "requeued", len(queued), "interrupted", len(running))
	}
	return nil
}

// Start resumes persisted work and runs the worker pool until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.Resume(ctx); err != nil {
		return err
	}
	c.pool.Run(ctx, func(ctx context.Context, id string) {
		if err := c.Run(ctx, id); err != nil {
			c.logger.Error("job run failed", "job_id", id, "error", err)
		}
	})
	return nil
}

// Run executes one job to a terminal state. It returns an error only when
// the terminal state itself could not be persisted.
func (c *Controller) Run(ctx context.Context, id string) error {
	logger := c.logger.With("job_id", id)

	job, err := c.store.Update(ctx, id, func(j *Job) error {
		if j.Status.Terminal() {
			return ErrTerminal
		}
		if j.Status == StatusProcessing {
			return errClaimed
		}
		j.Status = StatusProcessing
		j.StartedAt = time.Now().UTC()
		j.Message = "starting"
		return nil
	})
	if errors.Is(err, ErrTerminal) || errors.Is(err, errClaimed) {
		logger.Debug("job not runnable, skipping", "reason", err)
		return nil
	}
	if err != nil {
		return &StoreWriteError{Op: "start", Err: err}
	}
	c.notify(job)

	r := &run{
		c:       c,
		job:     job,
		scratch: filepath.Join(c.scratchRoot, id),
		logger:  logger,
	}
	defer r.cleanup()

	if job.StopRequested {
		return r.terminate(ctx, StatusCancelled, "cancelled before start")
	}

	logger.Info("job started", "input", job.InputPath, "target_language", job.TargetLanguage)
	start := time.Now()

	err = r.execute(ctx)
	switch {
	case err == nil:
		logger.Info("job completed", "pages", len(r.pages), "duration", time.Since(start))
		return nil
	case errors.Is(err, errStopRequested):
		logger.Info("job cancelled", "pages_done", len(r.pages))
		return r.terminate(ctx, StatusCancelled, fmt.Sprintf("cancelled after %d of %d pages", len(r.pages), r.total))
	case ctx.Err() != nil:
		logger.Info("job stopped by shutdown", "pages_done", len(r.pages))
		return r.terminate(ctx, StatusStopped, fmt.Sprintf("stopped by shutdown after %d of %d pages", len(r.pages), r.total))
	default:
		logger.Error("job failed", "error", err, "fatal", IsFatal(err))
		return r.terminate(ctx, StatusError, err.Error())
	}
}

func (c *Controller) notify(job *Job) {
	if c.notifier != nil && job != nil {
		c.notifier.JobUpdated(job.Clone())
	}
}

// run is the state of one job execution.
type run struct {
	c       *Controller
	job     *Job
	scratch string
	logger  *slog.Logger

	total    int
	pages    []PageRecord // translated or failed, in order
	degraded int
	flushed  int
}

func (r *run) execute(ctx context.Context) error {
	data, err := os.ReadFile(r.job.InputPath)
	if err != nil {
		return &InputError{Path: r.job.InputPath, Err: err}
	}

	extracted, err := r.c.extractor.Extract(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	r.total = len(extracted)
	r.logger.Debug("extraction finished", "pages", r.total)

	if err := r.checkpoint(ctx, func(j *Job) {
		j.TotalPages = r.total
		j.advance(10)
		j.Message = fmt.Sprintf("extracted %d pages", r.total)
	}); err != nil {
		return err
	}

	if err := r.ocrPass(ctx, extracted); err != nil {
		return err
	}
	if err := r.translatePass(ctx, extracted); err != nil {
		return err
	}
	return r.finishDocument(ctx)
}

// ocrPass fills in pages the extractor flagged or left empty.
func (r *run) ocrPass(ctx context.Context, pages []PageRecord) error {
	var targets []int
	for i, p := range pages {
		if p.NeedsOCR || strings.TrimSpace(p.OriginalText) == "" {
			targets = append(targets, i)
		}
	}
	for i := range pages {
		pages[i].Status = PageExtracted
	}
	if len(targets) == 0 {
		return nil
	}
	if r.c.ocr == nil {
		r.logger.Warn("pages need OCR but no backend is configured", "pages", len(targets))
		return nil
	}

	for n, idx := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := &pages[idx]

		var text string
		err := safely(func() error {
			var err error
			text, err = r.c.ocr.OCRPage(ctx, r.job.InputPath, page.PageNumber, r.scratch)
			return err
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			perr := &PageError{Page: page.PageNumber, Stage: "ocr", Err: err}
			page.Error = perr.note()
			r.logger.Warn("OCR failed, keeping extracted text", "page", page.PageNumber, "error", err)
		} else {
			page.OriginalText = r.c.merge.Merge(page.OriginalText, text)
		}

		progress := 10 + 25*(n+1)/len(targets)
		if err := r.checkpoint(ctx, func(j *Job) {
			j.advance(progress)
			j.Message = fmt.Sprintf("ocr page %d (%d/%d)", page.PageNumber, n+1, len(targets))
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) translatePass(ctx context.Context, pages []PageRecord) error {
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec := r.translatePage(ctx, pages[i])
		if ctx.Err() != nil {
			// Interrupted mid-page; the page is not recorded.
			return ctx.Err()
		}
		r.pages = append(r.pages, rec)
		if rec.Status == PageFailed {
			r.degraded++
		}

		flush := len(r.pages)-r.flushed >= r.c.flushEvery || i == len(pages)-1
		progress := 35 + 55*(i+1)/len(pages)
		if err := r.checkpoint(ctx, func(j *Job) {
			j.CurrentPage = rec.PageNumber
			j.advance(progress)
			j.Message = fmt.Sprintf("translated page %d of %d", i+1, len(pages))
			if flush {
				j.Pages = ClonePages(r.pages)
			}
		}); err != nil {
			return err
		}
		if flush {
			r.flushed = len(r.pages)
		}
	}
	return nil
}

// translatePage never fails the job; problems are recorded on the page.
func (r *run) translatePage(ctx context.Context, page PageRecord) PageRecord {
	rec := page
	var parts []string
	err := safely(func() error {
		for _, piece := range chunk.Chunk(page.OriginalText, r.c.maxChunk) {
			out, err := r.c.translator.Translate(ctx, piece, r.job.TargetLanguage)
			if err != nil {
				return err
			}
			parts = append(parts, out)
		}
		return nil
	})
	if err != nil {
		perr := &PageError{Page: page.PageNumber, Stage: "translate", Err: err}
		rec.Status = PageFailed
		rec.TranslatedText = ""
		rec.Error = joinNotes(rec.Error, perr.note())
		if ctx.Err() == nil {
			r.logger.Warn("page translation failed", "page", page.PageNumber, "error", err)
		}
		return rec
	}

	rec.Status = PageTranslated
	rec.TranslatedText = chunk.Join(parts)
	return rec
}

func (r *run) finishDocument(ctx context.Context) error {
	if err := r.checkpoint(ctx, func(j *Job) {
		j.advance(90)
		j.Message = "composing document"
	}); err != nil && !errors.Is(err, errStopRequested) {
		return err
	}

	texts := make([]compose.PageText, len(r.pages))
	for i, p := range r.pages {
		text := p.TranslatedText
		if p.Status == PageFailed {
			text = p.OriginalText
		}
		texts[i] = compose.PageText{PageNumber: p.PageNumber, Text: text}
	}

	output := filepath.Join(r.c.outputRoot, r.job.ID+".pdf")
	path, err := r.c.composer.Compose(ctx, texts, output, r.job.Title)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	var uri string
	if r.c.publisher != nil {
		uri, err = r.c.publisher.Publish(ctx, r.job, path)
		if err != nil {
			r.logger.Warn("publishing output failed, keeping local copy", "path", path, "error", err)
			uri = ""
		}
	}

	message := "completed"
	if r.degraded > 0 {
		message = fmt.Sprintf("completed with %d failed page(s)", r.degraded)
	}
	job, err := r.c.store.Update(context.WithoutCancel(ctx), r.job.ID, func(j *Job) error {
		j.Pages = ClonePages(r.pages)
		j.CurrentPage = len(r.pages)
		j.OutputPath = path
		j.OutputURI = uri
		j.finish(StatusCompleted, message)
		return nil
	})
	if err != nil {
		return &StoreWriteError{Op: "complete", Err: err}
	}
	r.job = job
	r.c.notify(job)
	return nil
}

// checkpoint persists progress and reports a pending stop request.
func (r *run) checkpoint(ctx context.Context, fn func(*Job)) error {
	var stop bool
	job, err := r.c.store.Update(ctx, r.job.ID, func(j *Job) error {
		fn(j)
		stop = j.StopRequested
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &StoreWriteError{Op: "checkpoint", Err: err}
	}
	r.job = job
	r.c.notify(job)
	if stop {
		return errStopRequested
	}
	return nil
}

// terminate writes a terminal state with the pages finished so far. It
// runs even after ctx is cancelled so shutdown leaves a consistent record.
func (r *run) terminate(ctx context.Context, status Status, message string) error {
	job, err := r.c.store.Update(context.WithoutCancel(ctx), r.job.ID, func(j *Job) error {
		if j.Status.Terminal() {
			return ErrTerminal
		}
		if r.pages != nil {
			j.Pages = ClonePages(r.pages)
		}
		if r.total > 0 {
			j.TotalPages = r.total
		}
		j.finish(status, message)
		return nil
	})
	if errors.Is(err, ErrTerminal) {
		return nil
	}
	if err != nil {
		r.logger.Error("failed to persist terminal state", "status", status, "error", err)
		return &StoreWriteError{Op: "terminate", Err: err}
	}
	r.job = job
	r.c.notify(job)
	return nil
}

func (r *run) cleanup() {
	if r.c.keepScratch {
		return
	}
	if err := os.RemoveAll(r.scratch); err != nil {
		r.logger.Warn("failed to remove scratch dir", "dir", r.scratch, "error", err)
	}
}

// safely runs fn and turns a panic into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

func joinNotes(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
