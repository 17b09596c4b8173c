// Package events streams job progress to websocket subscribers.
package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jackzampolin/folio/internal/jobs"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Event is the progress message sent to subscribers. Page text is left
// out; clients fetch it from the pages endpoint.
type Event struct {
	Type        string      `json:"type"`
	JobID       string      `json:"job_id"`
	UserID      string      `json:"user_id,omitempty"`
	Status      jobs.Status `json:"status"`
	Progress    int         `json:"progress"`
	CurrentPage int         `json:"current_page"`
	TotalPages  int         `json:"total_pages"`
	PagesDone   int         `json:"pages_done"`
	Message     string      `json:"message,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewEvent summarizes a job snapshot.
func NewEvent(typ string, job *jobs.Job) Event {
	return Event{
		Type:        typ,
		JobID:       job.ID,
		UserID:      job.UserID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentPage: job.CurrentPage,
		TotalPages:  job.TotalPages,
		PagesDone:   len(job.Pages),
		Message:     job.Message,
		UpdatedAt:   job.UpdatedAt,
	}
}

// Filter limits which jobs a subscriber hears about. Empty fields match all.
type Filter struct {
	UserID string
	JobID  string
}

func (f Filter) matches(job *jobs.Job) bool {
	if f.UserID != "" && job.UserID != f.UserID {
		return false
	}
	if f.JobID != "" && job.ID != f.JobID {
		return false
	}
	return true
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	filter Filter
}

// Hub fans job updates out to websocket clients. A slow client misses
// updates rather than blocking the job.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		// A nil CheckOrigin refuses browsers on other origins; clients
		// that send no Origin header are accepted.
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// JobUpdated implements jobs.Notifier.
func (h *Hub) JobUpdated(job *jobs.Job) {
	msg, err := json.Marshal(NewEvent("job_update", job))
	if err != nil {
		h.logger.Error("failed to marshal job update", "job_id", job.ID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.filter.matches(job) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("dropping update for slow client", "job_id", job.ID)
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request, sends the initial snapshot and then
// streams updates until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, filter Filter, initial []*jobs.Job) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), filter: filter}

	snapshot := make([]Event, 0, len(initial))
	for _, job := range initial {
		if filter.matches(job) {
			snapshot = append(snapshot, NewEvent("job_update", job))
		}
	}
	if msg, err := json.Marshal(map[string]any{"type": "initial_jobs", "jobs": snapshot}); err == nil {
		c.send <- msg
	}

	h.register(c)
	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

var _ jobs.Notifier = (*Hub)(nil)
