package transcribe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteName(t *testing.T) {
	cases := []struct {
		pitch int
		want  string
	}{
		{60, "C4"},
		{61, "C#4"},
		{69, "A4"},
		{21, "A0"},
		{108, "C8"},
		{0, "C-1"},
		{127, "G9"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NoteName(tc.pitch), "pitch %d", tc.pitch)
	}
}

func TestReadNoteEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song_basic_pitch.csv")
	csv := "start_time_s,end_time_s,pitch_midi,velocity\n" +
		"0.5012,1.2508,60,92\n" +
		"1.0,2.0,64,80\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	events, err := readNoteEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, 0.501, events[0].Start)
	assert.Equal(t, 1.251, events[0].End)
	assert.Equal(t, 60, events[0].Pitch)
	assert.Equal(t, 92, events[0].Velocity)
}

func TestReadNoteEvents_MalformedRow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("start_time_s,end_time_s,pitch_midi,velocity\nx,1,60,80\n"), 0o644))

	_, err := readNoteEvents(path)
	assert.Error(t, err)
}

func TestReadNoteEvents_MissingFile(t *testing.T) {
	_, err := readNoteEvents(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}
