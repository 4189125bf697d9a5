// Package jobs owns the in-memory transcription job records: the registry
// is the single lifecycle authority, and the broadcaster fans job snapshots
// out to connected clients. Job state is ephemeral and lost on restart.
package jobs

import (
	"time"

	"partitiongen/internal/notes"
)

// Status is the coarse lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Step is the fine-grained pipeline stage marker.
type Step string

const (
	StepQueued       Step = "queued"
	StepDownloading  Step = "downloading"
	StepDownloaded   Step = "downloaded"
	StepTranscribing Step = "transcribing"
	StepTranscribed  Step = "transcribed"
	StepGenerating   Step = "generating"
	StepComplete     Step = "complete"
	StepError        Step = "error"
)

// Job is one end-to-end transcription request. File paths are opaque
// references kept server-side and never serialized to clients.
type Job struct {
	ID         string        `json:"id"`
	URL        string        `json:"url"`
	Instrument string        `json:"instrument"`
	Status     Status        `json:"status"`
	Step       Step          `json:"step"`
	Progress   int           `json:"progress"`
	Title      string        `json:"title"`
	Duration   float64       `json:"duration"`
	NoteEvents []notes.Event `json:"note_events,omitempty"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`

	AudioPath string `json:"-"`
	MIDIPath  string `json:"-"`
	PDFPath   string `json:"-"`
}

// Terminal reports whether the job has reached a final state. Terminal
// jobs never mutate again.
func (j *Job) Terminal() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}

// NoteCount returns the number of transcribed notes.
func (j *Job) NoteCount() int {
	return len(j.NoteEvents)
}
