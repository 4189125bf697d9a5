// Package engrave typesets note events as printed sheet music. It renders
// a LilyPond source file from the transcribed notes and compiles it with
// the external lilypond binary under a hard timeout.
package engrave

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"partitiongen/internal/instrument"
	"partitiongen/internal/notes"
)

// Result points at the generated score files.
type Result struct {
	LyPath  string
	PDFPath string
}

// Engraver shells out to the lilypond binary.
type Engraver struct {
	bin     string
	timeout time.Duration
}

// New creates an engraver. timeout bounds one lilypond compilation; zero
// means 120s.
func New(bin string, timeout time.Duration) *Engraver {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Engraver{bin: bin, timeout: timeout}
}

// defaultTempo is assumed when the transcription carries no tempo
// information, which basic-pitch output never does.
const defaultTempo = 120

// notesPerLine keeps the generated source readable.
const notesPerLine = 8

// Engrave writes <name>.ly and compiles <name>.pdf into dir.
func (e *Engraver) Engrave(ctx context.Context, events []notes.Event, inst instrument.Instrument, title, dir, name string) (*Result, error) {
	if len(events) == 0 {
		return nil, errors.New("no notes to engrave")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	source := RenderSource(events, inst, title, defaultTempo)

	lyPath := filepath.Join(dir, name+".ly")
	pdfPath := filepath.Join(dir, name+".pdf")
	if err := os.WriteFile(lyPath, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("write lilypond source: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.bin, "-o", filepath.Join(dir, name), lyPath)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, errors.New("lilypond compilation timed out")
		}
		return nil, fmt.Errorf("lilypond: %w: %s", err, tail(stderr.String()))
	}

	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("lilypond produced no pdf: %w", err)
	}

	return &Result{LyPath: lyPath, PDFPath: pdfPath}, nil
}

// RenderSource builds the LilyPond source for a single staff.
func RenderSource(events []notes.Event, inst instrument.Instrument, title string, tempo int) string {
	beatsPerSecond := float64(tempo) / 60.0

	var body []string
	for i, ev := range events {
		if i > 0 {
			gap := (ev.Start - events[i-1].End) * beatsPerSecond
			if gap >= 0.125 {
				body = append(body, "r"+DurationToLily(gap))
			}
		}

		beats := (ev.End - ev.Start) * beatsPerSecond
		if beats < 0.125 {
			beats = 0.125
		}
		body = append(body, PitchToLily(ev.Pitch)+DurationToLily(beats))
	}

	var lines []string
	for i := 0; i < len(body); i += notesPerLine {
		end := min(i+notesPerLine, len(body))
		lines = append(lines, "    "+strings.Join(body[i:end], " "))
	}

	var b strings.Builder
	b.WriteString("\\version \"2.24.0\"\n\n")
	b.WriteString("\\header {\n")
	fmt.Fprintf(&b, "  title = %q\n", title)
	fmt.Fprintf(&b, "  subtitle = %q\n", inst.Name)
	b.WriteString("  tagline = \"Généré par Partition Generator\"\n")
	b.WriteString("}\n\n")
	b.WriteString("\\paper {\n  #(set-paper-size \"a4\")\n}\n\n")
	b.WriteString("\\score {\n  \\new Staff {\n")
	fmt.Fprintf(&b, "    \\clef %s\n", inst.Clef)
	fmt.Fprintf(&b, "    \\tempo 4 = %d\n", tempo)
	b.WriteString("    \\time 4/4\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n  }\n  \\layout { }\n  \\midi { }\n}\n")
	return b.String()
}

var pitchToLily = [12]string{"c", "cis", "d", "dis", "e", "f", "fis", "g", "gis", "a", "ais", "b"}

// PitchToLily converts a MIDI pitch to LilyPond absolute notation, where
// c' is middle C (MIDI 60).
func PitchToLily(pitch int) string {
	name := pitchToLily[((pitch%12)+12)%12]
	lilyOctave := (pitch/12 - 1) - 3
	switch {
	case lilyOctave > 0:
		return name + strings.Repeat("'", lilyOctave)
	case lilyOctave < 0:
		return name + strings.Repeat(",", -lilyOctave)
	default:
		return name
	}
}

// standardDurations maps beat counts to LilyPond duration marks, longest
// first.
var standardDurations = []struct {
	beats float64
	lily  string
}{
	{4.0, "1"},
	{3.0, "2."},
	{2.0, "2"},
	{1.5, "4."},
	{1.0, "4"},
	{0.75, "8."},
	{0.5, "8"},
	{0.375, "16."},
	{0.25, "16"},
	{0.125, "32"},
}

// DurationToLily quantizes a duration in beats to the nearest standard
// notation value.
func DurationToLily(beats float64) string {
	best := "4"
	bestDiff := -1.0
	for _, d := range standardDurations {
		diff := beats - d.beats
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
			best = d.lily
		}
	}
	return best
}

func tail(out string) string {
	out = strings.TrimSpace(out)
	if len(out) > 300 {
		out = out[len(out)-300:]
	}
	return out
}
