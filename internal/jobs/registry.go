package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for lookups of unknown job IDs.
var ErrNotFound = errors.New("job not found")

// Registry is the concurrency-safe owner of all job records. The pipeline
// runner mutates a job while status polls and websocket pushes read it, so
// every read hands out a snapshot copy, never the live record.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Create inserts a new pending job and returns its snapshot.
func (r *Registry) Create(url, instrument string) Job {
	job := &Job{
		ID:         uuid.NewString()[:8],
		URL:        url,
		Instrument: instrument,
		Status:     StatusPending,
		Step:       StepQueued,
		Progress:   0,
		CreatedAt:  time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return *job
}

// Get returns a snapshot of the job, or ErrNotFound.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

// Update applies fn to the job atomically and returns the resulting
// snapshot. Mutators must not retain the *Job past the call.
func (r *Registry) Update(id string, fn func(*Job)) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	fn(job)
	return *job, nil
}
