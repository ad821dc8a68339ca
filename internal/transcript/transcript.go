// Package transcript formats merged chunk transcriptions and parses them
// into timestamped blocks.
package transcript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var timestampLine = regexp.MustCompile(`^\[(\d{2}):(\d{2}):(\d{2})\.(\d{3})\]$`)

// Block is one timestamped section of a transcript.
type Block struct {
	Offset time.Duration
	Text   string
}

// Timestamp renders offset as a block header, e.g. "[01:05:00.000]".
func Timestamp(offset time.Duration) string {
	if offset < 0 {
		offset = 0
	}
	total := offset.Milliseconds()
	hours := total / 3_600_000
	minutes := (total % 3_600_000) / 60_000
	seconds := (total % 60_000) / 1000
	millis := total % 1000
	return fmt.Sprintf("[%02d:%02d:%02d.%03d]", hours, minutes, seconds, millis)
}

// IsTimestampLine reports whether line (after trimming) is a block header.
func IsTimestampLine(line string) bool {
	return timestampLine.MatchString(strings.TrimSpace(line))
}

// Merge joins per-chunk transcriptions, prefixing each with the header for
// the chunk's start offset and separating chunks with a blank line.
func Merge(chunks []string, chunkDuration time.Duration) string {
	var b strings.Builder
	for i, text := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(Timestamp(time.Duration(i) * chunkDuration))
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(text))
	}
	return strings.TrimSpace(b.String())
}

// Parse normalizes a raw transcript: header lines start blocks, blank lines
// inside a block are dropped and exactly one blank line separates a block
// from the next header.
func Parse(text string) string {
	var (
		out     []string
		pending []string
	)
	for _, raw := range strings.Split(strings.TrimSpace(text), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case IsTimestampLine(line):
			if len(pending) > 0 {
				out = append(out, strings.Join(pending, "\n"), "")
				pending = nil
			}
			out = append(out, line)
		case line != "":
			pending = append(pending, line)
		}
	}
	if len(pending) > 0 {
		out = append(out, strings.Join(pending, "\n"))
	}
	return strings.Join(out, "\n")
}

// Blocks splits a transcript into timestamped blocks. Text before the first
// header and headers without text are ignored.
func Blocks(text string) []Block {
	var (
		blocks  []Block
		current *Block
		lines   []string
	)
	flush := func() {
		if current != nil && len(lines) > 0 {
			current.Text = strings.Join(lines, "\n")
			blocks = append(blocks, *current)
		}
		lines = nil
	}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if m := timestampLine.FindStringSubmatch(line); m != nil {
			flush()
			current = &Block{Offset: parseOffset(m[1:])}
			continue
		}
		if line != "" && current != nil {
			lines = append(lines, line)
		}
	}
	flush()
	return blocks
}

func parseOffset(parts []string) time.Duration {
	units := []time.Duration{time.Hour, time.Minute, time.Second, time.Millisecond}
	var total time.Duration
	for i, part := range parts {
		n, _ := strconv.Atoi(part)
		total += time.Duration(n) * units[i]
	}
	return total
}
