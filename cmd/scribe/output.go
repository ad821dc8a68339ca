package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scribe/internal/config"
	"scribe/internal/logging"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML encodes v as YAML to the command's stdout.
func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// palette colors status words only when writing to a terminal.
type palette struct {
	enabled bool
}

func paletteFor(out io.Writer) palette {
	f, ok := out.(*os.File)
	if !ok {
		return palette{}
	}
	if os.Getenv("NO_COLOR") != "" {
		return palette{}
	}
	return palette{enabled: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())}
}

func (p palette) good(s string) string { return p.paint(s, text.FgGreen) }
func (p palette) bad(s string) string  { return p.paint(s, text.FgRed) }
func (p palette) warn(s string) string { return p.paint(s, text.FgYellow) }
func (p palette) dim(s string) string  { return p.paint(s, text.Faint) }

func (p palette) paint(s string, color text.Color) string {
	if !p.enabled || s == "" {
		return s
	}
	return text.Colors{color}.Sprint(s)
}

// relTime renders t relative to now, or "-" when unset.
func relTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func logFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
}
