package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jackzampolin/folio/internal/compose"
	"github.com/jackzampolin/folio/internal/events"
	"github.com/jackzampolin/folio/internal/extract"
	"github.com/jackzampolin/folio/internal/home"
	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/metrics"
	"github.com/jackzampolin/folio/internal/providers"
	"github.com/jackzampolin/folio/internal/svcctx"
	"github.com/jackzampolin/folio/internal/testutil"
	"github.com/jackzampolin/folio/internal/translate"
)

type harness struct {
	t          *testing.T
	url        string
	store      *jobs.MemoryStore
	controller *jobs.Controller
	home       *home.Dir
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := quietLogger()

	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatal(err)
	}

	llm := providers.NewMockClient()
	llm.Respond = func(req *providers.ChatRequest) (string, error) {
		return strings.ToUpper(req.Messages[len(req.Messages)-1].Content), nil
	}

	store := jobs.NewMemoryStore()
	hub := events.NewHub(logger)
	usage := metrics.NewRecorder()
	controller, err := jobs.NewController(jobs.ControllerConfig{
		Store:       store,
		Pool:        jobs.NewPool(jobs.PoolConfig{Workers: 1, Logger: logger}),
		Extractor:   extract.New(extract.Config{Logger: logger}),
		Translator:  translate.New(translate.Config{LLM: metrics.Instrument(llm, usage), RetryDelay: -1, Logger: logger}),
		Composer:    compose.New(compose.Config{Logger: logger}),
		Notifier:    hub,
		ScratchRoot: dir.ScratchRoot(),
		OutputRoot:  dir.OutputsDir(),
		Logger:      logger,
	})
	if err != nil {
		t.Fatal(err)
	}

	srv, err := New(Config{
		Services: &svcctx.Services{
			Controller: controller,
			Hub:        hub,
			Registry:   providers.NewRegistry(logger),
			Home:       dir,
			Logger:     logger,
			Metrics:    usage,
		},
		Logger: logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &harness{t: t, url: ts.URL, store: store, controller: controller, home: dir}
}

// start runs the worker pool until the test ends.
func (h *harness) start() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.controller.Start(ctx)
	}()
	h.t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (h *harness) writePDF(pages ...[]string) string {
	h.t.Helper()
	path := filepath.Join(h.home.UploadsDir(), "doc.pdf")
	if err := os.WriteFile(path, testutil.BuildPDF(pages...), 0o644); err != nil {
		h.t.Fatal(err)
	}
	return path
}

func (h *harness) do(method, path string, body any) (*http.Response, []byte) {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			r = strings.NewReader(s)
		} else {
			data, _ := json.Marshal(body)
			r = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, h.url+path, r)
	if err != nil {
		h.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (h *harness) getJob(id string) jobs.Job {
	h.t.Helper()
	resp, body := h.do("GET", "/api/translations/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		h.t.Fatalf("GET job = %d: %s", resp.StatusCode, body)
	}
	var job jobs.Job
	if err := json.Unmarshal(body, &job); err != nil {
		h.t.Fatal(err)
	}
	return job
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/health", "/ready", "/status"} {
		resp, body := h.do("GET", path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s = %d: %s", path, resp.StatusCode, body)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Errorf("%s: missing X-Request-ID", path)
		}
	}
}

func TestNotInitialized(t *testing.T) {
	srv, err := New(Config{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/ready", http.StatusServiceUnavailable},
		{"/api/translations", http.StatusServiceUnavailable},
		{"/api/translations/abc", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestTranslationLifecycle(t *testing.T) {
	h := newHarness(t)
	h.start()

	input := h.writePDF(
		[]string{testutil.Words(12), "second line of page one here"},
		[]string{testutil.Words(15)},
	)

	resp, body := h.do("POST", "/api/translations", map[string]string{
		"user_id":         "alice",
		"input_path":      input,
		"target_language": "French",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("create = %d: %s", resp.StatusCode, body)
	}
	var created jobs.Job
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}
	if created.Status != jobs.StatusQueued || created.TargetLanguage != "French" {
		t.Errorf("created = %+v", created)
	}

	var job jobs.Job
	if !testutil.WaitFor(20*time.Second, func() bool {
		job = h.getJob(created.ID)
		return job.Status.Terminal()
	}) {
		t.Fatalf("job never finished: %+v", job)
	}
	if job.Status != jobs.StatusCompleted || job.Progress != 100 || job.TotalPages != 2 {
		t.Fatalf("job = %+v", job)
	}
	if len(job.Pages) != 0 {
		t.Error("status response should omit pages")
	}

	resp, body = h.do("GET", "/api/translations/"+created.ID+"/pages", nil)
	var pages struct {
		Pages []jobs.PageRecord `json:"pages"`
	}
	if err := json.Unmarshal(body, &pages); err != nil || resp.StatusCode != 200 {
		t.Fatalf("pages = %d %v", resp.StatusCode, err)
	}
	if len(pages.Pages) != 2 || pages.Pages[0].PageNumber != 1 || pages.Pages[1].PageNumber != 2 {
		t.Fatalf("pages = %+v", pages.Pages)
	}
	if !strings.Contains(pages.Pages[0].TranslatedText, "WORD1") {
		t.Errorf("page 1 translated = %q", pages.Pages[0].TranslatedText)
	}

	resp, body = h.do("GET", "/api/translations/"+created.ID+"/download", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download = %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "doc_french.pdf") {
		t.Errorf("Content-Disposition = %q", resp.Header.Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(body, []byte("%PDF-")) {
		t.Errorf("download is not a PDF: %q", body[:min(len(body), 16)])
	}

	resp, body = h.do("GET", "/api/translations?user_id=alice", nil)
	var list struct {
		Translations []jobs.Job `json:"translations"`
	}
	if err := json.Unmarshal(body, &list); err != nil || resp.StatusCode != 200 {
		t.Fatalf("list = %d %v", resp.StatusCode, err)
	}
	if len(list.Translations) != 1 || list.Translations[0].ID != created.ID {
		t.Errorf("list = %+v", list.Translations)
	}

	resp, _ = h.do("POST", "/api/translations/"+created.ID+"/stop", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("stop on completed job = %d, want 409", resp.StatusCode)
	}

	_, body = h.do("GET", "/status", nil)
	var status struct {
		Usage []metrics.Summary `json:"usage"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatal(err)
	}
	if len(status.Usage) != 1 || status.Usage[0].Calls < 2 || status.Usage[0].Failures != 0 {
		t.Errorf("usage = %+v", status.Usage)
	}
}

func TestCreateTranslation_Validation(t *testing.T) {
	h := newHarness(t)
	input := h.writePDF([]string{testutil.Words(20)})
	outside := filepath.Join(t.TempDir(), "outside.pdf")
	if err := os.WriteFile(outside, testutil.BuildPDF([]string{testutil.Words(20)}), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"input_path":`},
		{"missing target", map[string]string{"input_path": input}},
		{"blank target", map[string]string{"input_path": input, "target_language": "   "}},
		{"unknown field", map[string]string{"input_path": input, "target_language": "French", "priority": "high"}},
		{"missing file", map[string]string{"input_path": filepath.Join(h.home.UploadsDir(), "nope.pdf"), "target_language": "French"}},
		{"outside uploads", map[string]string{"input_path": outside, "target_language": "French"}},
		{"relative escape", map[string]string{"input_path": "../config.yaml", "target_language": "French"}},
		{"dot segments escape", map[string]string{"input_path": h.home.UploadsDir() + "/../../outside.pdf", "target_language": "French"}},
		{"system file", map[string]string{"input_path": "/etc/passwd", "target_language": "French"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := h.do("POST", "/api/translations", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", resp.StatusCode, body)
			}
		})
	}

	list, _ := h.store.List(context.Background(), jobs.ListFilter{})
	if len(list) != 0 {
		t.Errorf("rejected requests created %d jobs", len(list))
	}

	resp, body := h.do("POST", "/api/translations", map[string]string{"input_path": "doc.pdf", "target_language": "French"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("relative upload name = %d: %s", resp.StatusCode, body)
	}
	var job jobs.Job
	if err := json.Unmarshal(body, &job); err != nil {
		t.Fatal(err)
	}
	if want, _ := filepath.EvalSymlinks(input); job.InputPath != want {
		t.Errorf("InputPath = %q, want %q", job.InputPath, want)
	}
}

func upload(t *testing.T, url, filename string, content []byte, fields map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	part, _ := mw.CreateFormFile("file", filename)
	part.Write(content)
	mw.Close()

	resp, err := http.Post(url+"/api/translations/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func TestUploadTranslation(t *testing.T) {
	h := newHarness(t)
	pdf := testutil.BuildPDF([]string{testutil.Words(20)})

	resp, body := upload(t, h.url, "Annual Report.pdf", pdf, map[string]string{"target_language": "German", "user_id": "bob"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload = %d: %s", resp.StatusCode, body)
	}
	var job jobs.Job
	if err := json.Unmarshal(body, &job); err != nil {
		t.Fatal(err)
	}
	if job.StoredFilename != "Annual Report.pdf" || job.Title != "Annual Report" || job.UserID != "bob" {
		t.Errorf("job = %+v", job)
	}
	if !strings.HasPrefix(job.InputPath, h.home.UploadsDir()) {
		t.Errorf("input stored at %q, want under %q", job.InputPath, h.home.UploadsDir())
	}
	saved, err := os.ReadFile(job.InputPath)
	if err != nil || !bytes.Equal(saved, pdf) {
		t.Errorf("saved upload differs: %v", err)
	}

	tests := []struct {
		name     string
		filename string
		content  []byte
		fields   map[string]string
	}{
		{"wrong extension", "notes.txt", pdf, map[string]string{"target_language": "German"}},
		{"not a pdf", "fake.pdf", []byte("hello world"), map[string]string{"target_language": "German"}},
		{"missing language", "doc.pdf", pdf, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := upload(t, h.url, tt.filename, tt.content, tt.fields)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", resp.StatusCode, body)
			}
		})
	}
}

func TestStopAndDownloadConflicts(t *testing.T) {
	h := newHarness(t)
	input := h.writePDF([]string{testutil.Words(20)})

	// The pool is not running, so the job stays queued.
	job, err := h.controller.Submit(context.Background(), jobs.SubmitRequest{InputPath: input, TargetLanguage: "French"})
	if err != nil {
		t.Fatal(err)
	}

	resp, body := h.do("GET", "/api/translations/"+job.ID+"/download", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("download queued = %d, want 409: %s", resp.StatusCode, body)
	}

	resp, body = h.do("POST", "/api/translations/"+job.ID+"/stop", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("stop = %d: %s", resp.StatusCode, body)
	}
	if got := h.getJob(job.ID); !got.StopRequested {
		t.Error("stop flag not persisted")
	}

	for _, path := range []string{"/api/translations/missing", "/api/translations/missing/pages", "/api/translations/missing/download"} {
		resp, _ := h.do("GET", path, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, resp.StatusCode)
		}
	}
	resp, _ = h.do("POST", "/api/translations/missing/stop", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("stop missing = %d, want 404", resp.StatusCode)
	}
}

func TestDownload_OutputRemoved(t *testing.T) {
	h := newHarness(t)
	job := jobs.NewJob(jobs.SubmitRequest{InputPath: "x.pdf", TargetLanguage: "French"})
	job.Status = jobs.StatusCompleted
	job.OutputPath = filepath.Join(t.TempDir(), "gone.pdf")
	if err := h.store.Create(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	resp, _ := h.do("GET", "/api/translations/"+job.ID+"/download", nil)
	if resp.StatusCode != http.StatusGone {
		t.Errorf("status = %d, want 410", resp.StatusCode)
	}
}

func TestListTranslations_BadQuery(t *testing.T) {
	h := newHarness(t)
	for _, q := range []string{"?status=bogus", "?limit=-1", "?limit=abc"} {
		resp, _ := h.do("GET", "/api/translations"+q, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestTranslationEvents(t *testing.T) {
	h := newHarness(t)
	input := h.writePDF([]string{testutil.Words(20)})
	job, err := h.controller.Submit(context.Background(), jobs.SubmitRequest{UserID: "carol", InputPath: input, TargetLanguage: "French"})
	if err != nil {
		t.Fatal(err)
	}

	wsURL := "ws" + strings.TrimPrefix(h.url, "http") + "/api/translations/ws?user_id=carol"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial struct {
		Type string         `json:"type"`
		Jobs []events.Event `json:"jobs"`
	}
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatal(err)
	}
	if initial.Type != "initial_jobs" || len(initial.Jobs) != 1 || initial.Jobs[0].JobID != job.ID {
		t.Fatalf("initial = %+v", initial)
	}

	h.start()

	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for completion: %v", err)
		}
		if ev.Type != "job_update" || ev.JobID != job.ID {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Status == jobs.StatusCompleted {
			if ev.Progress != 100 {
				t.Errorf("completed event progress = %d", ev.Progress)
			}
			return
		}
	}
}
