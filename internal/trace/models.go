package trace

import "time"

// JobRecord is one traced pipeline execution.
type JobRecord struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	Instrument string     `json:"instrument"`
	Title      string     `json:"title,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	DurationMs float64    `json:"duration_ms,omitempty"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StageCount int        `json:"stage_count,omitempty"`
}

// Stage is one pipeline stage execution inside a traced job.
type Stage struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms"`
	Detail     string    `json:"detail,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}
