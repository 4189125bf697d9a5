package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_jobs_active",
		Help: "Transcription jobs currently running",
	})

	JobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_jobs_total",
		Help: "Total transcription jobs submitted",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160, 320},
	}, []string{"stage"})

	StageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_stage_errors_total",
		Help: "Job-fatal failures by stage",
	}, []string{"stage"})

	NotesTranscribed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_notes_transcribed",
		Help:    "Note events per completed transcription, after range filtering",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "Open websocket connections",
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_sessions_active",
		Help: "Active realtime listening sessions",
	})

	SessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_session_events_total",
		Help: "Inbound realtime session events by type",
	}, []string{"type"})
)
