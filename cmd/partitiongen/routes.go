package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"partitiongen/internal/instrument"
	"partitiongen/internal/jobs"
	"partitiongen/internal/metrics"
	"partitiongen/internal/pipeline"
	"partitiongen/internal/trace"
)

// defaultTraceJobLimit is how many traced jobs are returned when the
// caller omits the ?limit= query parameter.
const defaultTraceJobLimit = 20

type deps struct {
	jobs       *jobs.Registry
	runner     *pipeline.Runner
	wsHandler  http.Handler
	traceStore *trace.Store
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("/ws", d.wsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("GET /api/instruments", handleInstruments)
	mux.HandleFunc("POST /api/transcribe", d.handleTranscribe)
	mux.HandleFunc("GET /api/status/{id}", d.handleStatus)
	mux.HandleFunc("GET /api/download/{id}", d.handleDownload)
	mux.HandleFunc("GET /api/audio/{id}", d.handleAudio)
	mux.HandleFunc("GET /api/notes/{id}", d.handleNotes)
	registerTraceRoutes(mux, d.traceStore)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func handleInstruments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(instrument.All)
}

func (d deps) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL        string `json:"url"`
		Instrument string `json:"instrument"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}
	if req.Instrument == "" {
		req.Instrument = instrument.Default
	}

	job := d.jobs.Create(req.URL, req.Instrument)
	metrics.JobsTotal.Inc()
	d.runner.Dispatch(job.ID)

	slog.Info("job submitted", "job_id", job.ID, "instrument", job.Instrument)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": job.ID})
}

// statusResponse is the safe subset of a job: no file paths.
type statusResponse struct {
	ID        string      `json:"id"`
	Status    jobs.Status `json:"status"`
	Step      jobs.Step   `json:"step"`
	Progress  int         `json:"progress"`
	Title     string      `json:"title"`
	Error     string      `json:"error,omitempty"`
	NoteCount int         `json:"note_count"`
	Duration  float64     `json:"duration"`
}

func (d deps) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := d.jobs.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Step:      job.Step,
		Progress:  job.Progress,
		Title:     job.Title,
		Error:     job.Error,
		NoteCount: job.NoteCount(),
		Duration:  job.Duration,
	})
}

func (d deps) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, err := d.jobs.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if job.Status != jobs.StatusComplete || job.PDFPath == "" {
		http.Error(w, "pdf not ready", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(job.PDFPath); err != nil {
		http.Error(w, "pdf file not found", http.StatusNotFound)
		return
	}

	filename := fmt.Sprintf("partition_%s_%s.pdf", job.Instrument, job.ID)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, job.PDFPath)
}

func (d deps) handleAudio(w http.ResponseWriter, r *http.Request) {
	job, err := d.jobs.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if job.AudioPath == "" {
		http.Error(w, "audio not available", http.StatusNotFound)
		return
	}
	if _, err := os.Stat(job.AudioPath); err != nil {
		http.Error(w, "audio not available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, job.AudioPath)
}

func (d deps) handleNotes(w http.ResponseWriter, r *http.Request) {
	job, err := d.jobs.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if job.NoteCount() == 0 {
		http.Error(w, "notes not available yet", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"notes":      job.NoteEvents,
		"duration":   job.Duration,
		"title":      job.Title,
		"instrument": job.Instrument,
	})
}

func registerTraceRoutes(mux *http.ServeMux, store *trace.Store) {
	mux.HandleFunc("GET /api/traces/jobs", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		limit := queryInt(r, "limit", defaultTraceJobLimit)
		offset := queryInt(r, "offset", 0)
		records, total, err := store.ListJobs(limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"jobs": records, "total": total})
	})

	mux.HandleFunc("GET /api/traces/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		rec, stages, err := store.GetJob(r.PathValue("id"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"job": rec, "stages": stages})
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
