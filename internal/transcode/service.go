// Package transcode converts downloaded media with ffmpeg. The heavy lifting
// is entirely the external binary's; this package builds argument lists,
// probes durations with ffprobe, and turns ffmpeg progress output into
// percent updates.
package transcode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ytget/mgrab/internal/platform"
)

// ffmpeg settings
const (
	videoCodec   = "libx264"
	videoPreset  = "medium"
	videoCRF     = "23"
	audioCodec   = "aac"
	audioBitrate = "192k"
	mp3Bitrate   = "320k"

	ffprobeCommand      = "ffprobe"
	ffprobeLogLevel     = "error"
	ffprobeShowEntries  = "format=duration"
	ffprobeOutputFormat = "csv=p=0"

	progressPipeTarget = "pipe:2"
	progressTimePrefix = "out_time_us="
)

// Audio target formats, everything else is treated as a video container.
var audioTargets = map[string]bool{
	"mp3": true, "m4a": true, "aac": true, "flac": true, "ogg": true, "wav": true,
}

// Service converts media files to a target format.
type Service struct {
	logger     *slog.Logger
	onProgress func(percent int)
}

// NewService creates a transcoding service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// SetProgressCallback registers a percent callback.
func (s *Service) SetProgressCallback(fn func(percent int)) {
	s.onProgress = fn
}

// Convert transcodes inputPath into the target format next to the input and
// returns the output path. The partial output is removed on failure or
// cancellation.
func (s *Service) Convert(ctx context.Context, inputPath, format string) (string, error) {
	if !platform.HasFFmpeg() {
		return "", fmt.Errorf("ffmpeg not found on PATH (%s)", platform.FFmpegInstallHint())
	}
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("input file: %w", err)
	}
	outputPath := OutputPath(inputPath, format)
	if outputPath == inputPath {
		return "", fmt.Errorf("input is already %s: %s", format, inputPath)
	}

	duration, err := s.probeDuration(inputPath)
	if err != nil {
		// Progress reporting degrades, conversion still works.
		s.logger.Warn("could not probe duration", "input", inputPath, "error", err)
	}

	args := BuildArgs(inputPath, outputPath, format)
	cmd := exec.CommandContext(ctx, platform.FFmpegCommand, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start ffmpeg: %w", err)
	}

	go s.monitorProgress(stderr, duration)

	if err := cmd.Wait(); err != nil {
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %w", err)
	}
	return outputPath, nil
}

// BuildArgs assembles the ffmpeg invocation for one conversion.
func BuildArgs(inputPath, outputPath, format string) []string {
	args := []string{
		"-y",
		"-i", inputPath,
	}

	if audioTargets[format] {
		args = append(args, "-vn")
		if format == "mp3" {
			args = append(args, "-b:a", mp3Bitrate)
		}
	} else {
		args = append(args,
			"-c:v", videoCodec,
			"-preset", videoPreset,
			"-crf", videoCRF,
			"-c:a", audioCodec,
			"-b:a", audioBitrate,
			"-movflags", "+faststart",
		)
	}

	args = append(args,
		"-progress", progressPipeTarget,
		"-nostats",
		outputPath,
	)
	return args
}

// OutputPath derives the conversion target path from the input path.
func OutputPath(inputPath, format string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + "." + format
}

// probeDuration reads the media duration in seconds via ffprobe.
func (s *Service) probeDuration(path string) (float64, error) {
	cmd := exec.Command(ffprobeCommand,
		"-v", ffprobeLogLevel,
		"-show_entries", ffprobeShowEntries,
		"-of", ffprobeOutputFormat,
		path)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("run ffprobe: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// monitorProgress parses ffmpeg -progress output lines (out_time_us=N) into
// percent callbacks.
func (s *Service) monitorProgress(stderr io.ReadCloser, totalDuration float64) {
	defer stderr.Close()
	if s.onProgress == nil || totalDuration <= 0 {
		io.Copy(io.Discard, stderr)
		return
	}

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, progressTimePrefix) {
			continue
		}
		us, err := strconv.ParseInt(strings.TrimPrefix(line, progressTimePrefix), 10, 64)
		if err != nil {
			continue
		}
		percent := int(float64(us) / 1e6 / totalDuration * 100)
		if percent > 100 {
			percent = 100
		}
		s.onProgress(percent)
	}
}
