// Package pipeline sequences the three transcription stages for one job:
// audio extraction, pitch transcription, score engraving. Each stage is an
// external collaborator; any failure is terminal for the job and is never
// retried.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"partitiongen/internal/engrave"
	"partitiongen/internal/extract"
	"partitiongen/internal/instrument"
	"partitiongen/internal/jobs"
	"partitiongen/internal/metrics"
	"partitiongen/internal/notes"
	"partitiongen/internal/trace"
	"partitiongen/internal/transcribe"
)

// AudioExtractor downloads the audio track of a media URL.
type AudioExtractor interface {
	Extract(ctx context.Context, url, dir string) (*extract.Result, error)
}

// NoteTranscriber converts an audio file into note events.
type NoteTranscriber interface {
	Transcribe(ctx context.Context, audioPath string, inst instrument.Instrument, dir string) (*transcribe.Result, error)
}

// ScoreEngraver typesets note events into a printable score.
type ScoreEngraver interface {
	Engrave(ctx context.Context, events []notes.Event, inst instrument.Instrument, title, dir, name string) (*engrave.Result, error)
}

// Config holds the runner's shared dependencies.
type Config struct {
	Registry    *jobs.Registry
	Broadcaster *jobs.Broadcaster
	Extractor   AudioExtractor
	Transcriber NoteTranscriber
	Engraver    ScoreEngraver
	TmpDir      string
	OutputDir   string
	Tracer      *trace.Tracer
}

// Runner executes pipelines. One Run per job; runs are independent and
// uncapped, and a job runs to completion whether or not anyone is
// watching.
type Runner struct {
	cfg Config
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

// Dispatch starts the pipeline for jobID in its own goroutine and returns
// immediately. Failures are recorded on the job and logged, never
// propagated to the caller.
func (r *Runner) Dispatch(jobID string) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("pipeline panicked", "job_id", jobID, "panic", rec)
				r.fail(jobID, fmt.Errorf("internal error: %v", rec))
			}
		}()
		if err := r.Run(context.Background(), jobID); err != nil {
			slog.Error("pipeline failed", "job_id", jobID, "error", err)
		}
	}()
}

// Run executes the full three-stage pipeline for jobID.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.cfg.Registry.Get(jobID)
	if err != nil {
		return err
	}

	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()

	start := time.Now()
	inst := instrument.Lookup(job.Instrument)
	jobDir := filepath.Join(r.cfg.TmpDir, jobID)

	r.cfg.Tracer.StartJob(jobID, job.URL, job.Instrument)
	slog.Info("pipeline started", "job_id", jobID, "url", job.URL, "instrument", inst.ID)

	// Stage 1: download audio
	r.advance(jobID, func(j *jobs.Job) {
		j.Status = jobs.StatusProcessing
		j.Step = jobs.StepDownloading
		j.Progress = 10
	})

	stageStart := time.Now()
	audio, err := r.cfg.Extractor.Extract(ctx, job.URL, jobDir)
	r.observeStage(jobID, "download", stageStart, job.URL, err)
	if err != nil {
		return r.endFailed(jobID, start, fmt.Errorf("download: %w", err))
	}

	r.advance(jobID, func(j *jobs.Job) {
		j.Title = audio.Title
		j.Duration = audio.Duration
		j.AudioPath = audio.AudioPath
		j.Step = jobs.StepDownloaded
		j.Progress = 30
	})

	// Stage 2: transcribe to note events
	r.advance(jobID, func(j *jobs.Job) {
		j.Step = jobs.StepTranscribing
		j.Progress = 40
	})

	stageStart = time.Now()
	transcription, err := r.cfg.Transcriber.Transcribe(ctx, audio.AudioPath, inst, jobDir)
	r.observeStage(jobID, "transcribe", stageStart, filepath.Base(audio.AudioPath), err)
	if err != nil {
		return r.endFailed(jobID, start, fmt.Errorf("transcribe: %w", err))
	}
	metrics.NotesTranscribed.Observe(float64(len(transcription.Events)))

	r.advance(jobID, func(j *jobs.Job) {
		j.NoteEvents = transcription.Events
		j.MIDIPath = transcription.MIDIPath
		j.Step = jobs.StepTranscribed
		j.Progress = 70
	})

	// Stage 3: engrave sheet music
	r.advance(jobID, func(j *jobs.Job) {
		j.Step = jobs.StepGenerating
		j.Progress = 80
	})

	outputDir := filepath.Join(r.cfg.OutputDir, jobID)
	stageStart = time.Now()
	sheet, err := r.cfg.Engraver.Engrave(ctx, transcription.Events, inst, audio.Title, outputDir, jobID)
	r.observeStage(jobID, "engrave", stageStart, fmt.Sprintf("notes=%d", len(transcription.Events)), err)
	if err != nil {
		return r.endFailed(jobID, start, fmt.Errorf("engrave: %w", err))
	}

	final := r.advance(jobID, func(j *jobs.Job) {
		j.PDFPath = sheet.PDFPath
		j.Step = jobs.StepComplete
		j.Progress = 100
		j.Status = jobs.StatusComplete
	})

	elapsed := time.Since(start)
	r.cfg.Tracer.EndJob(jobID, float64(elapsed.Milliseconds()), final.Title, "complete", "")
	slog.Info("pipeline complete", "job_id", jobID, "title", final.Title, "notes", final.NoteCount(), "elapsed", elapsed)
	return nil
}

// advance applies a mutation and broadcasts the resulting snapshot. Every
// job mutation goes through here so observers never miss a transition.
func (r *Runner) advance(jobID string, fn func(*jobs.Job)) jobs.Job {
	snap, err := r.cfg.Registry.Update(jobID, fn)
	if err != nil {
		// Job records are never removed while a runner holds the ID.
		slog.Error("job vanished mid-pipeline", "job_id", jobID, "error", err)
		return jobs.Job{}
	}
	r.cfg.Broadcaster.Publish(snap)
	return snap
}

// observeStage records stage metrics and the trace span.
func (r *Runner) observeStage(jobID, stage string, startedAt time.Time, detail string, err error) {
	elapsed := time.Since(startedAt)
	metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())

	status, errMsg := "ok", ""
	if err != nil {
		metrics.StageErrors.WithLabelValues(stage).Inc()
		status, errMsg = "error", err.Error()
	}
	r.cfg.Tracer.RecordStage(jobID, stage, startedAt, float64(elapsed.Milliseconds()), detail, status, errMsg)
}

// fail marks the job terminally failed and broadcasts the final snapshot.
func (r *Runner) fail(jobID string, err error) {
	r.advance(jobID, func(j *jobs.Job) {
		if j.Terminal() {
			return
		}
		j.Status = jobs.StatusError
		j.Step = jobs.StepError
		j.Error = err.Error()
	})
}

func (r *Runner) endFailed(jobID string, start time.Time, err error) error {
	r.fail(jobID, err)
	r.cfg.Tracer.EndJob(jobID, float64(time.Since(start).Milliseconds()), "", "error", err.Error())
	return err
}
