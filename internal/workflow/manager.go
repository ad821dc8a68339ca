package workflow

import (
	"log/slog"
	"time"

	"scribe/internal/config"
	"scribe/internal/executors"
	"scribe/internal/history"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/reconcile"
	"scribe/internal/state"
)

// Manager coordinates one pipeline run at a time over the state store.
type Manager struct {
	cfg       *config.Config
	store     *state.Store
	sweeper   Sweeper
	executors executors.Registry
	logger    *slog.Logger

	history  *history.Store
	notifier notifications.Service
	mailer   *notifications.Mailer
	progress ProgressFunc
	now      func() time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithHistory records runs and stage executions in the SQLite ledger.
func WithHistory(store *history.Store) ManagerOption {
	return func(m *Manager) {
		m.history = store
	}
}

// WithNotifier overrides the ntfy notifier built from configuration.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithMailer sends the end-of-run email report.
func WithMailer(mailer *notifications.Mailer) ManagerOption {
	return func(m *Manager) {
		m.mailer = mailer
	}
}

// WithProgress reports item completion to fn.
func WithProgress(fn ProgressFunc) ManagerOption {
	return func(m *Manager) {
		m.progress = fn
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *state.Store, sweeper Sweeper, registry executors.Registry, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:       cfg,
		store:     store,
		sweeper:   sweeper,
		executors: registry,
		logger:    logging.NewComponentLogger(logger, "workflow-manager"),
		notifier:  notifications.NewService(cfg),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) engineOptions() reconcile.Options {
	return reconcile.Options{
		Publish: m.cfg.PublishingEnabled(),
		Sync:    m.cfg.SyncEnabled(),
	}
}

func (m *Manager) parallelism() int {
	if n := m.cfg.Workflow.MaxParallelItems; n > 1 {
		return n
	}
	return 1
}
