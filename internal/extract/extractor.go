// Package extract downloads the audio track of a media URL via yt-dlp.
// yt-dlp is an external collaborator: it is invoked as a subprocess and
// specified only by its I/O contract (URL in, WAV file + metadata out).
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Result describes one extracted audio track.
type Result struct {
	AudioPath string
	Title     string
	Duration  float64
}

// Extractor shells out to the yt-dlp binary.
type Extractor struct {
	bin string
}

// New creates an extractor using the given yt-dlp binary (path or name on
// PATH).
func New(bin string) *Extractor {
	return &Extractor{bin: bin}
}

// mediaInfo is the subset of yt-dlp's --print-json output we consume.
type mediaInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// Extract downloads url into dir as a WAV file and returns its path and
// metadata. The stage has no deadline of its own; cancellation comes from
// ctx.
func (e *Extractor) Extract(ctx context.Context, url, dir string) (*Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	args := []string{
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "wav",
		"--audio-quality", "192",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--no-playlist",
		"--no-warnings",
		"--print-json",
		url,
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp: %w: %s", err, lastLine(stderr.Bytes()))
	}

	var info mediaInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}
	if info.ID == "" {
		info.ID = "audio"
	}
	if info.Title == "" {
		info.Title = "Unknown"
	}

	audioPath := filepath.Join(dir, info.ID+".wav")
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("extracted audio missing: %w", err)
	}

	return &Result{
		AudioPath: audioPath,
		Title:     info.Title,
		Duration:  info.Duration,
	}, nil
}

// lastLine returns the final non-empty line of subprocess output, which is
// where yt-dlp reports its error.
func lastLine(out []byte) string {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(lines[len(lines)-1])
}
