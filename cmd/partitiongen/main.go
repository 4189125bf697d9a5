package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"partitiongen/internal/engrave"
	"partitiongen/internal/extract"
	"partitiongen/internal/jobs"
	"partitiongen/internal/pipeline"
	"partitiongen/internal/realtime"
	"partitiongen/internal/trace"
	"partitiongen/internal/transcribe"
	"partitiongen/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()

	for _, dir := range []string{cfg.tmpDir, cfg.outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("create dir", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	// Tracing is optional: without a database URL the tracer is nil and
	// every trace call is a no-op.
	var traceStore *trace.Store
	var tracer *trace.Tracer
	if cfg.traceDBURL != "" {
		var err error
		traceStore, err = trace.Open(cfg.traceDBURL)
		if err != nil {
			slog.Error("trace store", "error", err)
			os.Exit(1)
		}
		tracer = trace.NewTracer(traceStore)
		slog.Info("tracing enabled")
	}

	jobRegistry := jobs.NewRegistry()
	broadcaster := jobs.NewBroadcaster()
	sessionRegistry := realtime.NewRegistry()

	runner := pipeline.NewRunner(pipeline.Config{
		Registry:    jobRegistry,
		Broadcaster: broadcaster,
		Extractor:   extract.New(cfg.ytdlpBin),
		Transcriber: transcribe.New(cfg.basicPitchBin),
		Engraver:    engrave.New(cfg.lilypondBin, cfg.lilypondTimeout),
		TmpDir:      cfg.tmpDir,
		OutputDir:   cfg.outputDir,
		Tracer:      tracer,
	})

	wsHandler := ws.NewHandler(jobRegistry, sessionRegistry, broadcaster, cfg.maxConnections)

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		jobs:       jobRegistry,
		runner:     runner,
		wsHandler:  wsHandler,
		traceStore: traceStore,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		srv.Shutdown(ctx)
		if tracer != nil {
			tracer.Close()
		}
		if traceStore != nil {
			traceStore.Close()
		}
	}()

	slog.Info("partitiongen starting", "addr", addr, "max_connections", cfg.maxConnections)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("partitiongen stopped")
}
