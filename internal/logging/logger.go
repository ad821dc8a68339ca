package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"scribe/internal/config"
)

const (
	// LogFileName is the file written under the configured log directory.
	LogFileName = "scribe.log"
	// RotateBytes is the size at which the log file is rotated when a logger opens it.
	RotateBytes = 16 << 20
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Console receives log lines. Nil means no console sink.
	Console io.Writer
	// Color adds ANSI level colors to console-format lines on Console.
	Color bool
	// File is appended to in addition to Console. The file never gets colors.
	File string
	// RotateBytes renames an existing File larger than this before opening.
	// Zero disables rotation.
	RotateBytes int64
}

// New constructs a logger that fans out to the configured sinks.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	addSource := level <= slog.LevelDebug

	build := func(w io.Writer, color bool) slog.Handler {
		if format == "json" {
			return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, AddSource: addSource, ReplaceAttr: jsonKeys})
		}
		return newConsoleHandler(w, level, color, addSource)
	}

	var handlers []slog.Handler
	if opts.Console != nil {
		handlers = append(handlers, build(opts.Console, opts.Color))
	}
	if path := strings.TrimSpace(opts.File); path != "" {
		file, err := openLogFile(path, opts.RotateBytes)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, build(file, false))
	}
	switch len(handlers) {
	case 0:
		return NewNop(), nil
	case 1:
		return slog.New(handlers[0]), nil
	default:
		return slog.New(slog.NewMultiHandler(handlers...)), nil
	}
}

// NewFromConfig logs to stderr and to LogFileName under paths.log_dir. Stdout
// stays free for command output such as `status --json`.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	opts := Options{Level: "info", Format: "console", Console: os.Stderr, Color: colorTerminal(os.Stderr)}
	if cfg == nil {
		return New(opts)
	}
	opts.Level = cfg.Logging.Level
	opts.Format = cfg.Logging.Format
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		opts.File = filepath.Join(dir, LogFileName)
		opts.RotateBytes = RotateBytes
	}
	return New(opts)
}

func colorTerminal(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

// parseLevel accepts slog level names ("debug", "WARN", "info+2"); anything
// else is info.
func parseLevel(value string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// jsonKeys shortens the built-in keys to ts/level/msg with lowercase levels.
func jsonKeys(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
		if a.Value.Kind() == slog.KindTime {
			a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
			a.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return a
}

func openLogFile(path string, rotateAt int64) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	if rotateAt > 0 {
		if err := rotate(path, rotateAt, time.Now()); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

// rotate renames path to name-<UTC stamp>.ext once it reaches limit bytes.
// Rotated files are removed by Prune.
func rotate(path string, limit int64, now time.Time) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < limit {
		return nil
	}
	ext := filepath.Ext(path)
	target := fmt.Sprintf("%s-%s%s", strings.TrimSuffix(path, ext), now.UTC().Format("20060102T150405Z"), ext)
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	return nil
}
