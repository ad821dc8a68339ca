package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"scribe/internal/logging"
)

const defaultDebounce = 10 * time.Second

// TriggerFunc runs one pipeline pass.
type TriggerFunc func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	Dirs       []string
	Extensions []string
	Debounce   time.Duration
	// Poll triggers a run on a fixed interval as well, for sources that
	// cannot be watched (the Drive inbox). Zero disables polling.
	Poll time.Duration
	// RunOnStart triggers one run before the first event.
	RunOnStart bool
}

// Watcher turns filesystem events into debounced pipeline runs.
type Watcher struct {
	opts    Options
	trigger TriggerFunc
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// New watches every existing directory in opts.Dirs.
func New(opts Options, trigger TriggerFunc, logger *slog.Logger) (*Watcher, error) {
	if trigger == nil {
		return nil, errors.New("watch: trigger is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	watched := 0
	for _, dir := range opts.Dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("add watch path %s: %w", dir, err)
		}
		watched++
	}
	if watched == 0 && opts.Poll <= 0 {
		_ = fsw.Close()
		return nil, errors.New("watch: no directories to watch and polling disabled")
	}
	return &Watcher{
		opts:    opts,
		trigger: trigger,
		logger:  logging.NewComponentLogger(logger, "watch"),
		watcher: fsw,
	}, nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run blocks until ctx is cancelled. A run triggered while another is in
// progress is queued and starts when the current one finishes.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching for new media",
		logging.String("dirs", strings.Join(w.opts.Dirs, ", ")),
		logging.Duration("debounce", w.opts.Debounce),
		logging.Duration("poll", w.opts.Poll),
	)

	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var poll <-chan time.Time
	if w.opts.Poll > 0 {
		ticker := time.NewTicker(w.opts.Poll)
		defer ticker.Stop()
		poll = ticker.C
	}

	done := make(chan error, 1)
	running := false
	pending := w.opts.RunOnStart

	start := func() {
		running = true
		pending = false
		go func() { done <- w.trigger(ctx) }()
	}
	if pending {
		start()
	}

	for {
		select {
		case <-ctx.Done():
			if running {
				<-done
			}
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("media event", logging.String("path", event.Name), logging.String("op", event.Op.String()))
			timer.Reset(w.opts.Debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			logging.WarnWithContext(w.logger, "watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some file events may be missed until the next poll or event"),
			)

		case <-timer.C:
			if running {
				pending = true
				continue
			}
			start()

		case <-poll:
			if running {
				pending = true
				continue
			}
			start()

		case err := <-done:
			running = false
			if err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("triggered run failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "watch_run_failed"),
				)
			}
			if pending && ctx.Err() == nil {
				start()
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".part") || strings.HasSuffix(base, ".tmp") {
		return false
	}
	if len(w.opts.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, candidate := range w.opts.Extensions {
		if strings.EqualFold(candidate, ext) {
			return true
		}
	}
	return false
}
