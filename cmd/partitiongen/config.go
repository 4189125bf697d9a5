package main

import (
	"time"

	"partitiongen/internal/env"
)

type config struct {
	port            string
	tmpDir          string
	outputDir       string
	ytdlpBin        string
	basicPitchBin   string
	lilypondBin     string
	lilypondTimeout time.Duration
	maxConnections  int
	traceDBURL      string
}

func loadConfig() config {
	return config{
		port:            env.Str("PORT", "5001"),
		tmpDir:          env.Str("TMP_DIR", "tmp"),
		outputDir:       env.Str("OUTPUT_DIR", "output"),
		ytdlpBin:        env.Str("YTDLP_BIN", "yt-dlp"),
		basicPitchBin:   env.Str("BASIC_PITCH_BIN", "basic-pitch"),
		lilypondBin:     env.Str("LILYPOND_BIN", "lilypond"),
		lilypondTimeout: env.Duration("LILYPOND_TIMEOUT", 120*time.Second),
		maxConnections:  env.Int("MAX_CONNECTIONS", 100),
		traceDBURL:      env.Str("TRACE_DB_URL", ""),
	}
}
