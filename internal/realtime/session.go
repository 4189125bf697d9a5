// Package realtime keeps a per-connection virtual playback clock over a
// completed job's notes and answers active/upcoming note queries against
// it. The client's audio player is the source of truth for position; the
// session converges to it on every sync.
package realtime

import (
	"math"
	"time"

	"partitiongen/internal/notes"
)

// Clock supplies the current time. Injectable so tests can drive a fake
// clock instead of sleeping.
type Clock func() time.Time

// upcomingWindow is how far ahead upcoming-note queries look.
const upcomingWindow = 2.0

// Session is one realtime listening session. It is owned by a single
// connection handler goroutine and needs no internal locking; only the
// registry holding sessions is shared.
type Session struct {
	store    *notes.Store
	duration float64
	now      Clock

	playing bool
	origin  time.Time // wall-clock origin of the virtual clock, valid while playing
	paused  float64   // virtual position in seconds, valid while paused
	cursor  int       // advisory index of the last note with start <= position
}

// NewSession creates a paused session at position zero. now defaults to
// time.Now when nil.
func NewSession(store *notes.Store, duration float64, now Clock) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{store: store, duration: duration, now: now}
}

// Start begins or resumes playback. No-op while already playing.
func (s *Session) Start() {
	if s.playing {
		return
	}
	s.origin = s.now().Add(-secondsToDuration(s.paused))
	s.playing = true
}

// Pause freezes the virtual clock. No-op while already paused.
func (s *Session) Pause() {
	if !s.playing {
		return
	}
	s.paused = s.now().Sub(s.origin).Seconds()
	s.playing = false
}

// Seek moves the virtual position. Positions outside [0, duration] are
// accepted as given; queries simply return nothing there. Playback state
// is unchanged: a playing session keeps playing from the new position.
func (s *Session) Seek(position float64) {
	s.paused = position
	if s.playing {
		s.origin = s.now().Add(-secondsToDuration(position))
	}

	s.cursor = 0
	for i := 0; i < s.store.Len(); i++ {
		if s.store.At(i).Start > position {
			break
		}
		s.cursor = i
	}
}

// Sync reconciles the session with the client's reported player state:
// a seek plus an explicit play/pause.
func (s *Session) Sync(position float64, playing bool) {
	s.Seek(position)
	if playing {
		s.Start()
	} else {
		s.Pause()
	}
}

// Playing reports whether the virtual clock is running.
func (s *Session) Playing() bool {
	return s.playing
}

// Position returns the current virtual position in seconds.
func (s *Session) Position() float64 {
	if s.playing {
		return s.now().Sub(s.origin).Seconds()
	}
	return s.paused
}

// ActiveNotes returns the notes sounding at the current position, in
// store order. The store is start-sorted, so scanning stops at the first
// note starting after the position; every earlier note must still be
// checked because a long note can span past later onsets.
func (s *Session) ActiveNotes() []notes.Event {
	pos := s.Position()
	active := make([]notes.Event, 0)
	for i := 0; i < s.store.Len(); i++ {
		ev := s.store.At(i)
		if ev.Start > pos {
			break
		}
		if pos <= ev.End {
			active = append(active, ev)
		}
	}
	return active
}

// UpcomingNotes returns the notes starting within the lookahead window
// after the current position.
func (s *Session) UpcomingNotes(window float64) []notes.Event {
	pos := s.Position()
	upcoming := make([]notes.Event, 0)
	for i := 0; i < s.store.Len(); i++ {
		ev := s.store.At(i)
		if ev.Start > pos+window {
			break
		}
		if ev.Start > pos {
			upcoming = append(upcoming, ev)
		}
	}
	return upcoming
}

// State is the wire representation of a session, pushed after every
// session-mutating call.
type State struct {
	Position      float64       `json:"position"`
	IsPlaying     bool          `json:"is_playing"`
	ActiveNotes   []notes.Event `json:"active_notes"`
	UpcomingNotes []notes.Event `json:"upcoming_notes"`
	Progress      float64       `json:"progress"`
}

// Snapshot captures the current session state.
func (s *Session) Snapshot() State {
	pos := s.Position()
	progress := 0.0
	if s.duration > 0 {
		progress = pos / s.duration
	}
	return State{
		Position:      round(pos, 3),
		IsPlaying:     s.playing,
		ActiveNotes:   s.ActiveNotes(),
		UpcomingNotes: s.UpcomingNotes(upcomingWindow),
		Progress:      round(progress, 4),
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
