// Package ws is the push channel: job progress snapshots are fanned out
// to every connected client, and realtime listening sessions are driven
// by inbound client events on the same connection.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"partitiongen/internal/jobs"
	"partitiongen/internal/metrics"
	"partitiongen/internal/notes"
	"partitiongen/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler manages websocket connections with admission control.
type Handler struct {
	jobs        *jobs.Registry
	sessions    *realtime.Registry
	broadcaster *jobs.Broadcaster
	sem         chan struct{}
}

// NewHandler creates a websocket handler. maxConcurrent bounds open
// connections; zero or negative means 100.
func NewHandler(jobRegistry *jobs.Registry, sessionRegistry *realtime.Registry, broadcaster *jobs.Broadcaster, maxConcurrent int) *Handler {
	if maxConcurrent <= 0 {
		maxConcurrent = 100
	}
	return &Handler{
		jobs:        jobRegistry,
		sessions:    sessionRegistry,
		broadcaster: broadcaster,
		sem:         make(chan struct{}, maxConcurrent),
	}
}

// inbound is a client-sent event.
type inbound struct {
	Type     string  `json:"type"`
	JobID    string  `json:"job_id,omitempty"`
	Position float64 `json:"position,omitempty"`
	Playing  bool    `json:"playing,omitempty"`
}

// outbound is a server-pushed event.
type outbound struct {
	Type    string          `json:"type"`
	Job     *jobs.Job       `json:"job,omitempty"`
	State   *realtime.State `json:"state,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ServeHTTP upgrades the connection and serves it until the client
// disconnects. Returns 503 at capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	h.runConn(conn)
}

func (h *Handler) runConn(conn *websocket.Conn) {
	connID := uuid.NewString()
	defer h.sessions.Remove(connID)

	send := newEventSender(conn)

	// Forward job snapshots to this client for as long as it is
	// connected.
	updates := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(updates)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case snap, ok := <-updates:
				if !ok {
					return
				}
				send(outbound{Type: "job_update", Job: &snap})
			}
		}
	}()

	slog.Info("client connected", "conn_id", connID)

	for {
		var ev inbound
		if err := conn.ReadJSON(&ev); err != nil {
			slog.Info("client disconnected", "conn_id", connID, "error", err)
			return
		}
		h.handleEvent(connID, ev, send)
	}
}

func (h *Handler) handleEvent(connID string, ev inbound, send sender) {
	metrics.SessionEvents.WithLabelValues(ev.Type).Inc()

	if ev.Type == "realtime_start" {
		h.startSession(connID, ev.JobID, send)
		return
	}

	session := h.sessions.Get(connID)
	if session == nil {
		return
	}

	switch ev.Type {
	case "realtime_seek":
		session.Seek(ev.Position)
	case "realtime_pause":
		session.Pause()
	case "realtime_resume":
		session.Start()
	case "realtime_sync":
		session.Sync(ev.Position, ev.Playing)
	default:
		slog.Warn("unknown event", "conn_id", connID, "type", ev.Type)
		return
	}

	state := session.Snapshot()
	send(outbound{Type: "realtime_state", State: &state})
}

// startSession opens a listening session over a completed job, replacing
// any session this connection already had.
func (h *Handler) startSession(connID, jobID string, send sender) {
	job, err := h.jobs.Get(jobID)
	if err != nil || job.NoteCount() == 0 {
		send(outbound{Type: "error", Message: "Job not found or not ready"})
		return
	}

	session := realtime.NewSession(notes.NewStore(job.NoteEvents), job.Duration, time.Now)
	h.sessions.Put(connID, session)
	session.Start()

	slog.Info("realtime session started", "conn_id", connID, "job_id", jobID, "notes", job.NoteCount())

	state := session.Snapshot()
	send(outbound{Type: "realtime_state", State: &state})
}

type sender func(outbound)

// newEventSender serializes writes to the connection; the job-update
// forwarder and the read-loop handlers both push frames.
func newEventSender(conn *websocket.Conn) sender {
	var mu sync.Mutex
	return func(ev outbound) {
		mu.Lock()
		defer mu.Unlock()

		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if err = conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Error("write event", "type", ev.Type, "error", err)
		}
	}
}
