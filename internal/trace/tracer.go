package trace

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const maxDetailLen = 500

type traceMsg struct {
	kind string // "job_create", "job_end", "stage"
	// job fields
	jobID      string
	url        string
	instrument string
	durationMs float64
	title      string
	status     string
	errMsg     string
	// stage fields
	stage Stage
}

// Tracer writes trace data asynchronously via a buffered channel.
// All methods are nil-safe (no-op on nil receiver).
type Tracer struct {
	store *Store
	ch    chan traceMsg
	done  chan struct{}
}

// NewTracer creates a tracer. Must call Close when done.
func NewTracer(store *Store) *Tracer {
	t := &Tracer{
		store: store,
		ch:    make(chan traceMsg, 64),
		done:  make(chan struct{}),
	}
	go t.drain()
	return t
}

func (t *Tracer) drain() {
	defer close(t.done)
	for msg := range t.ch {
		t.handle(msg)
	}
}

func (t *Tracer) handle(m traceMsg) {
	var err error
	switch m.kind {
	case "job_create":
		err = t.store.CreateJob(m.jobID, m.url, m.instrument)
	case "job_end":
		err = t.store.EndJob(m.jobID, m.durationMs, m.title, m.status, m.errMsg)
	case "stage":
		err = t.store.CreateStage(m.stage)
	default:
		return
	}
	if err != nil {
		slog.Warn("trace write failed", "kind", m.kind, "error", err)
	}
}

// StartJob records the beginning of a pipeline execution.
func (t *Tracer) StartJob(jobID, url, instrument string) {
	if t == nil {
		return
	}
	t.ch <- traceMsg{kind: "job_create", jobID: jobID, url: url, instrument: instrument}
}

// EndJob finalizes a traced pipeline execution.
func (t *Tracer) EndJob(jobID string, durationMs float64, title, status, errMsg string) {
	if t == nil {
		return
	}
	t.ch <- traceMsg{
		kind:       "job_end",
		jobID:      jobID,
		durationMs: durationMs,
		title:      truncate(title, maxDetailLen),
		status:     status,
		errMsg:     truncate(errMsg, maxDetailLen),
	}
}

// RecordStage records a completed pipeline stage.
func (t *Tracer) RecordStage(jobID, name string, startedAt time.Time, durationMs float64, detail, status, errMsg string) {
	if t == nil {
		return
	}
	t.ch <- traceMsg{
		kind: "stage",
		stage: Stage{
			ID:         uuid.NewString(),
			JobID:      jobID,
			Name:       name,
			StartedAt:  startedAt,
			DurationMs: durationMs,
			Detail:     truncate(detail, maxDetailLen),
			Status:     status,
			Error:      truncate(errMsg, maxDetailLen),
		},
	}
}

// Close drains pending writes and shuts down the background goroutine.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	close(t.ch)
	<-t.done
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
