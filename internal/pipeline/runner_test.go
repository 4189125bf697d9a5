package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partitiongen/internal/engrave"
	"partitiongen/internal/extract"
	"partitiongen/internal/instrument"
	"partitiongen/internal/jobs"
	"partitiongen/internal/notes"
	"partitiongen/internal/transcribe"
)

type fakeExtractor struct {
	res *extract.Result
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, url, dir string) (*extract.Result, error) {
	return f.res, f.err
}

type fakeTranscriber struct {
	res *transcribe.Result
	err error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string, inst instrument.Instrument, dir string) (*transcribe.Result, error) {
	return f.res, f.err
}

type fakeEngraver struct {
	res *engrave.Result
	err error
}

func (f *fakeEngraver) Engrave(ctx context.Context, events []notes.Event, inst instrument.Instrument, title, dir, name string) (*engrave.Result, error) {
	return f.res, f.err
}

func testEvents() []notes.Event {
	return []notes.Event{
		{Start: 0.0, End: 0.5, Pitch: 60, Velocity: 90, Name: "C4"},
		{Start: 0.5, End: 1.0, Pitch: 64, Velocity: 85, Name: "E4"},
	}
}

func newTestRunner(t *testing.T, ext AudioExtractor, tr NoteTranscriber, eng ScoreEngraver) (*Runner, *jobs.Registry, *jobs.Broadcaster) {
	t.Helper()
	reg := jobs.NewRegistry()
	bc := jobs.NewBroadcaster()
	r := NewRunner(Config{
		Registry:    reg,
		Broadcaster: bc,
		Extractor:   ext,
		Transcriber: tr,
		Engraver:    eng,
		TmpDir:      t.TempDir(),
		OutputDir:   t.TempDir(),
	})
	return r, reg, bc
}

func drain(ch chan jobs.Job) []jobs.Job {
	var snaps []jobs.Job
	for {
		select {
		case snap := <-ch:
			snaps = append(snaps, snap)
		default:
			return snaps
		}
	}
}

func TestRun_FullPipeline(t *testing.T) {
	r, reg, bc := newTestRunner(t,
		&fakeExtractor{res: &extract.Result{AudioPath: "/tmp/a.wav", Title: "Clair de Lune", Duration: 183.5}},
		&fakeTranscriber{res: &transcribe.Result{MIDIPath: "/tmp/a.mid", Events: testEvents()}},
		&fakeEngraver{res: &engrave.Result{LyPath: "/tmp/a.ly", PDFPath: "/tmp/a.pdf"}},
	)
	job := reg.Create("https://valid", "piano")
	ch := bc.Subscribe()
	defer bc.Unsubscribe(ch)

	require.NoError(t, r.Run(context.Background(), job.ID))

	snaps := drain(ch)
	require.Len(t, snaps, 6)

	wantSteps := []jobs.Step{
		jobs.StepDownloading, jobs.StepDownloaded, jobs.StepTranscribing,
		jobs.StepTranscribed, jobs.StepGenerating, jobs.StepComplete,
	}
	wantProgress := []int{10, 30, 40, 70, 80, 100}
	for i, snap := range snaps {
		assert.Equal(t, wantSteps[i], snap.Step, "snapshot %d", i)
		assert.Equal(t, wantProgress[i], snap.Progress, "snapshot %d", i)
	}

	final, err := reg.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusComplete, final.Status)
	assert.Equal(t, jobs.StepComplete, final.Step)
	assert.Equal(t, "Clair de Lune", final.Title)
	assert.Equal(t, 183.5, final.Duration)
	assert.Equal(t, 2, final.NoteCount())
	assert.Equal(t, "/tmp/a.pdf", final.PDFPath)
	assert.Empty(t, final.Error)
}

func TestRun_ProgressMonotonic(t *testing.T) {
	r, reg, bc := newTestRunner(t,
		&fakeExtractor{res: &extract.Result{AudioPath: "a.wav", Title: "t", Duration: 1}},
		&fakeTranscriber{res: &transcribe.Result{Events: testEvents()}},
		&fakeEngraver{res: &engrave.Result{PDFPath: "a.pdf"}},
	)
	job := reg.Create("https://valid", "violon")
	ch := bc.Subscribe()
	defer bc.Unsubscribe(ch)

	require.NoError(t, r.Run(context.Background(), job.ID))

	last := -1
	for _, snap := range drain(ch) {
		assert.GreaterOrEqual(t, snap.Progress, last)
		last = snap.Progress
	}
	assert.Equal(t, 100, last)
}

func TestRun_DownloadFailureIsTerminal(t *testing.T) {
	r, reg, bc := newTestRunner(t,
		&fakeExtractor{err: errors.New("video unavailable")},
		&fakeTranscriber{},
		&fakeEngraver{},
	)
	job := reg.Create("https://invalid", "piano")
	ch := bc.Subscribe()
	defer bc.Unsubscribe(ch)

	err := r.Run(context.Background(), job.ID)
	require.Error(t, err)

	snaps := drain(ch)
	require.Len(t, snaps, 2) // downloading, then error; nothing after
	last := snaps[len(snaps)-1]
	assert.Equal(t, jobs.StatusError, last.Status)
	assert.Equal(t, jobs.StepError, last.Step)
	assert.Contains(t, last.Error, "video unavailable")

	final, _ := reg.Get(job.ID)
	assert.True(t, final.Terminal())
	assert.NotEmpty(t, final.Error)
}

func TestRun_TranscribeFailureIsTerminal(t *testing.T) {
	r, reg, _ := newTestRunner(t,
		&fakeExtractor{res: &extract.Result{AudioPath: "a.wav", Title: "t", Duration: 1}},
		&fakeTranscriber{err: errors.New("model crashed")},
		&fakeEngraver{},
	)
	job := reg.Create("https://valid", "piano")

	require.Error(t, r.Run(context.Background(), job.ID))

	final, _ := reg.Get(job.ID)
	assert.Equal(t, jobs.StatusError, final.Status)
	assert.Equal(t, jobs.StepError, final.Step)
	assert.Contains(t, final.Error, "model crashed")
	// Metadata from the completed download stage is retained.
	assert.Equal(t, "t", final.Title)
}

func TestRun_EngraveFailureIsTerminal(t *testing.T) {
	r, reg, _ := newTestRunner(t,
		&fakeExtractor{res: &extract.Result{AudioPath: "a.wav", Title: "t", Duration: 1}},
		&fakeTranscriber{res: &transcribe.Result{Events: testEvents()}},
		&fakeEngraver{err: errors.New("lilypond compilation timed out")},
	)
	job := reg.Create("https://valid", "piano")

	require.Error(t, r.Run(context.Background(), job.ID))

	final, _ := reg.Get(job.ID)
	assert.Equal(t, jobs.StatusError, final.Status)
	assert.Contains(t, final.Error, "timed out")
	// Notes from the completed transcribe stage survive the failure.
	assert.Equal(t, 2, final.NoteCount())
}

func TestRun_UnknownJob(t *testing.T) {
	r, _, _ := newTestRunner(t, &fakeExtractor{}, &fakeTranscriber{}, &fakeEngraver{})
	assert.ErrorIs(t, r.Run(context.Background(), "missing1"), jobs.ErrNotFound)
}

func TestRun_StatusStepConsistency(t *testing.T) {
	r, reg, bc := newTestRunner(t,
		&fakeExtractor{res: &extract.Result{AudioPath: "a.wav", Title: "t", Duration: 1}},
		&fakeTranscriber{res: &transcribe.Result{Events: testEvents()}},
		&fakeEngraver{res: &engrave.Result{PDFPath: "a.pdf"}},
	)
	job := reg.Create("https://valid", "piano")
	ch := bc.Subscribe()
	defer bc.Unsubscribe(ch)

	require.NoError(t, r.Run(context.Background(), job.ID))

	processingSteps := map[jobs.Step]bool{
		jobs.StepDownloading: true, jobs.StepDownloaded: true,
		jobs.StepTranscribing: true, jobs.StepTranscribed: true,
		jobs.StepGenerating: true,
	}
	for _, snap := range drain(ch) {
		switch snap.Status {
		case jobs.StatusProcessing:
			assert.True(t, processingSteps[snap.Step], "step %s under processing", snap.Step)
		case jobs.StatusComplete:
			assert.Equal(t, jobs.StepComplete, snap.Step)
			assert.NotEmpty(t, snap.Title)
		case jobs.StatusError:
			t.Fatalf("unexpected error status: %+v", snap)
		}
	}
}
