package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultBinary is used when no binary is configured.
const DefaultBinary = "ffmpeg"

const chunkPattern = "chunk_%03d.wav"

// CommandRunner executes an external command. Tests swap it out.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// ExtractOptions controls the encoded audio produced from a video.
type ExtractOptions struct {
	Codec      string
	Bitrate    string
	SampleRate int
	Channels   int
}

// SplitOptions controls chunking.
type SplitOptions struct {
	ChunkSeconds int
	SampleRate   int
	Channels     int
}

// Service runs ffmpeg.
type Service struct {
	binary        string
	commandRunner CommandRunner
}

// NewService creates a Service for the given binary.
func NewService(binary string) *Service {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	return &Service{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.commandRunner = runner
}

// Binary returns the configured ffmpeg binary name.
func (s *Service) Binary() string {
	return s.binary
}

// ExtractAudio drops the video stream of source and writes the audio track to dest.
func (s *Service) ExtractAudio(ctx context.Context, source, dest string, opts ExtractOptions) error {
	if source == "" || dest == "" {
		return errors.New("extract audio: source and destination required")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("extract audio: ensure output dir: %w", err)
	}
	if err := s.run(ctx, buildExtractArgs(source, dest, opts)...); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	return nil
}

// Split writes source as consecutive WAV chunks into dir and returns the chunk
// paths in playback order.
func (s *Service) Split(ctx context.Context, source, dir string, opts SplitOptions) ([]string, error) {
	if opts.ChunkSeconds <= 0 {
		return nil, fmt.Errorf("split audio: invalid chunk length %d", opts.ChunkSeconds)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("split audio: ensure chunk dir: %w", err)
	}
	if err := s.run(ctx, buildSplitArgs(source, dir, opts)...); err != nil {
		return nil, fmt.Errorf("split audio: %w", err)
	}
	chunks, err := filepath.Glob(filepath.Join(dir, "chunk_*.wav"))
	if err != nil {
		return nil, fmt.Errorf("split audio: list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, errors.New("split audio: ffmpeg produced no chunks")
	}
	sort.Strings(chunks)
	return chunks, nil
}

// Version runs "ffmpeg -version" as a cheap availability probe.
func (s *Service) Version(ctx context.Context) error {
	return s.run(ctx, "-hide_banner", "-version")
}

func (s *Service) run(ctx context.Context, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, s.binary, args...)
	}
	cmd := exec.CommandContext(ctx, s.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func buildExtractArgs(source, dest string, opts ExtractOptions) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
	}
	if opts.Codec != "" {
		args = append(args, "-c:a", opts.Codec)
	}
	if opts.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(opts.Channels))
	}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	if opts.Bitrate != "" {
		args = append(args, "-b:a", opts.Bitrate)
	}
	return append(args, dest)
}

func buildSplitArgs(source, dir string, opts SplitOptions) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-f", "segment",
		"-segment_time", strconv.Itoa(opts.ChunkSeconds),
		"-reset_timestamps", "1",
	}
	if opts.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(opts.Channels))
	}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	args = append(args, "-c:a", "pcm_s16le")
	return append(args, filepath.Join(dir, chunkPattern))
}
