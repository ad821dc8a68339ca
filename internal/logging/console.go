package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
)

// consoleHandler writes one line per record:
//
//	TS LEVEL component: [item] message k=v ...
//
// The component and item are lifted out of the attribute list so that
// `scribe logs` can filter on them without parsing every pair.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	color     bool
	addSource bool

	component string
	item      string
	prefix    string // group path applied to new attributes
	fields    []field
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, color, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, color: color, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	component, item := h.component, h.item
	fields := make([]field, 0, len(h.fields)+r.NumAttrs())
	fields = append(fields, h.fields...)
	r.Attrs(func(a slog.Attr) bool {
		fields = collect(fields, h.prefix, a, &component, &item)
		return true
	})

	var b strings.Builder
	b.Grow(128 + 24*len(fields))
	b.WriteString(ts.UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(h.levelText(r.Level))
	b.WriteByte(' ')
	if component != "" {
		b.WriteString(component)
		b.WriteString(": ")
	}
	if item != "" {
		fmt.Fprintf(&b, "[%s] ", item)
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(msg)
	if h.addSource && r.PC != 0 {
		if src := r.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range fields {
		b.WriteByte(' ')
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(quoteIfNeeded(valueText(f.value)))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.fields = make([]field, len(h.fields), len(h.fields)+len(attrs))
	copy(next.fields, h.fields)
	for _, a := range attrs {
		next.fields = collect(next.fields, h.prefix, a, &next.component, &next.item)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinKey(h.prefix, name)
	return &next
}

func (h *consoleHandler) levelText(level slog.Level) string {
	label := levelName(level)
	if !h.color {
		return label
	}
	switch {
	case level >= slog.LevelError:
		return text.Colors{text.FgRed, text.Bold}.Sprint(label)
	case level >= slog.LevelWarn:
		return text.FgYellow.Sprint(label)
	case level >= slog.LevelInfo:
		return text.FgGreen.Sprint(label)
	default:
		return text.Faint.Sprint(label)
	}
}

// collect appends a flattened attribute. Top-level component and item keys
// are captured into their slots instead; the first value wins.
func collect(dst []field, prefix string, a slog.Attr, component, item *string) []field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = joinKey(prefix, a.Key)
		}
		for _, g := range a.Value.Group() {
			dst = collect(dst, inner, g, component, item)
		}
		return dst
	}
	if prefix == "" {
		switch a.Key {
		case FieldComponent:
			if *component == "" {
				*component = valueText(a.Value)
			}
			return dst
		case FieldItem:
			if *item == "" {
				*item = valueText(a.Value)
			}
			return dst
		}
	}
	key := joinKey(prefix, a.Key)
	if key == "" {
		return dst
	}
	return append(dst, field{key: key, value: a.Value})
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}

func valueText(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
