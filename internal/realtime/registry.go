package realtime

import (
	"sync"

	"partitiongen/internal/metrics"
)

// Registry maps connection IDs to their session. A session is mutated
// only by its own connection's handler; the registry just guards the map
// across connections.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Put installs the session for connID, silently replacing any prior one.
func (r *Registry) Put(connID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connID]; !exists {
		metrics.SessionsActive.Inc()
	}
	r.sessions[connID] = s
}

// Get returns the session for connID, or nil.
func (r *Registry) Get(connID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[connID]
}

// Remove drops the session for connID, if any.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connID]; exists {
		metrics.SessionsActive.Dec()
		delete(r.sessions, connID)
	}
}
