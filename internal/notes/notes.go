// Package notes holds the timed pitch events produced by transcription.
package notes

import "sort"

// Event is a single detected note. Immutable once stored.
type Event struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Pitch    int     `json:"pitch"`
	Velocity int     `json:"velocity"`
	Name     string  `json:"name"`
}

// Store is a start-ordered sequence of note events. It is never mutated
// after a job completes, so it can be shared across sessions without
// locking. Ties on Start keep original detection order.
type Store struct {
	events []Event
}

// NewStore copies events into a store, stably sorted by start time.
func NewStore(events []Event) *Store {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})
	return &Store{events: sorted}
}

// Events returns the underlying sorted slice. Callers must not mutate it.
func (s *Store) Events() []Event {
	return s.events
}

// Len returns the number of events.
func (s *Store) Len() int {
	return len(s.events)
}

// At returns the event at index i.
func (s *Store) At(i int) Event {
	return s.events[i]
}
