// Package transcribe turns an audio file into note events using Spotify's
// basic-pitch CLI. The model is an external collaborator producing a MIDI
// file plus a note-event CSV; instrument pitch-range filtering and note
// naming happen here, around the model, not inside it.
package transcribe

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"partitiongen/internal/instrument"
	"partitiongen/internal/notes"
)

// Result is one finished transcription.
type Result struct {
	// MIDIPath is the intermediate score artifact consumed by engraving.
	MIDIPath string
	// Events are the range-filtered note events, sorted by start time.
	Events []notes.Event
}

// Transcriber shells out to the basic-pitch binary.
type Transcriber struct {
	bin string
}

// New creates a transcriber using the given basic-pitch binary.
func New(bin string) *Transcriber {
	return &Transcriber{bin: bin}
}

// Transcribe runs pitch detection on audioPath, writing model output into
// dir, and returns the events playable on inst.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string, inst instrument.Instrument, dir string) (*Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcription dir: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.bin, "--save-midi", "--save-note-events", dir, audioPath)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("basic-pitch: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	midiPath := filepath.Join(dir, base+"_basic_pitch.mid")
	csvPath := filepath.Join(dir, base+"_basic_pitch.csv")

	raw, err := readNoteEvents(csvPath)
	if err != nil {
		return nil, err
	}

	filtered := make([]notes.Event, 0, len(raw))
	for _, ev := range raw {
		if inst.InRange(ev.Pitch) {
			ev.Name = NoteName(ev.Pitch)
			filtered = append(filtered, ev)
		}
	}

	return &Result{
		MIDIPath: midiPath,
		Events:   notes.NewStore(filtered).Events(),
	}, nil
}

// readNoteEvents parses the basic-pitch note-event CSV
// (start_time_s, end_time_s, pitch_midi, velocity, ...).
func readNoteEvents(path string) ([]notes.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open note events: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse note events: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	events := make([]notes.Event, 0, len(records)-1)
	for i, rec := range records {
		if i == 0 || len(rec) < 4 {
			continue // header
		}
		start, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("note events row %d: %w", i, err)
		}
		end, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("note events row %d: %w", i, err)
		}
		pitch, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("note events row %d: %w", i, err)
		}
		velocity, err := strconv.Atoi(rec[3])
		if err != nil {
			return nil, fmt.Errorf("note events row %d: %w", i, err)
		}
		events = append(events, notes.Event{
			Start:    round3(start),
			End:      round3(end),
			Pitch:    pitch,
			Velocity: velocity,
		})
	}
	return events, nil
}

var pitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName returns the display name for a MIDI pitch, middle C (60) being
// C4.
func NoteName(pitch int) string {
	octave := pitch/12 - 1
	return fmt.Sprintf("%s%d", pitchClasses[((pitch%12)+12)%12], octave)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
