package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jackzampolin/folio/internal/jobs"
	"github.com/jackzampolin/folio/internal/testutil"
)

func dial(t *testing.T, h *Hub, filter Filter, initial []*jobs.Job) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, filter, initial)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_RejectsCrossOrigin(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, Filter{}, nil)
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"no origin", "", true},
		{"same origin", srv.URL, true},
		{"other origin", "http://evil.example", false},
		{"other port", "http://127.0.0.1:1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tt.ok {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				conn.Close()
				return
			}
			if err == nil {
				conn.Close()
				t.Fatal("cross-origin dial succeeded")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %v, want 403", resp)
			}
		})
	}
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestHub_InitialSnapshotAndUpdates(t *testing.T) {
	h := NewHub(nil)
	mine := jobs.NewJob(jobs.SubmitRequest{UserID: "alice", InputPath: "a.pdf", TargetLanguage: "French"})
	theirs := jobs.NewJob(jobs.SubmitRequest{UserID: "bob", InputPath: "b.pdf", TargetLanguage: "French"})

	conn := dial(t, h, Filter{UserID: "alice"}, []*jobs.Job{mine, theirs})

	var initial struct {
		Type string  `json:"type"`
		Jobs []Event `json:"jobs"`
	}
	readJSON(t, conn, &initial)
	if initial.Type != "initial_jobs" || len(initial.Jobs) != 1 || initial.Jobs[0].JobID != mine.ID {
		t.Fatalf("initial = %+v", initial)
	}

	if !testutil.WaitFor(2*time.Second, func() bool { return h.Clients() == 1 }) {
		t.Fatal("client never registered")
	}

	theirs.Progress = 50
	h.JobUpdated(theirs)
	mine.Status = jobs.StatusProcessing
	mine.Progress = 42
	mine.Pages = []jobs.PageRecord{{PageNumber: 1}}
	h.JobUpdated(mine)

	var ev Event
	readJSON(t, conn, &ev)
	if ev.JobID != mine.ID || ev.Progress != 42 || ev.PagesDone != 1 || ev.Status != jobs.StatusProcessing {
		t.Errorf("event = %+v, want alice's update only", ev)
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h, Filter{}, nil)

	var initial map[string]any
	readJSON(t, conn, &initial)
	if !testutil.WaitFor(2*time.Second, func() bool { return h.Clients() == 1 }) {
		t.Fatal("client never registered")
	}

	conn.Close()
	if !testutil.WaitFor(2*time.Second, func() bool { return h.Clients() == 0 }) {
		t.Error("client not removed after disconnect")
	}

	// Broadcasting with no clients is a no-op.
	h.JobUpdated(jobs.NewJob(jobs.SubmitRequest{InputPath: "x.pdf", TargetLanguage: "French"}))
}

func TestEvent_JSON(t *testing.T) {
	job := jobs.NewJob(jobs.SubmitRequest{UserID: "u", InputPath: "x.pdf", TargetLanguage: "French"})
	job.Pages = []jobs.PageRecord{{PageNumber: 1, OriginalText: "secret text"}}

	data, err := json.Marshal(NewEvent("job_update", job))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret text") {
		t.Error("event must not carry page text")
	}
}

func TestFilter(t *testing.T) {
	job := &jobs.Job{ID: "j1", UserID: "alice"}
	tests := []struct {
		filter Filter
		want   bool
	}{
		{Filter{}, true},
		{Filter{UserID: "alice"}, true},
		{Filter{UserID: "bob"}, false},
		{Filter{JobID: "j1"}, true},
		{Filter{JobID: "j2"}, false},
	}
	for _, tt := range tests {
		if got := tt.filter.matches(job); got != tt.want {
			t.Errorf("%+v.matches() = %v, want %v", tt.filter, got, tt.want)
		}
	}
}
