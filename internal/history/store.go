package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Stage outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Run is one pipeline invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	DryRun     bool
	Items      int
	// Processed and Skipped are stage counts; Failed counts items.
	Processed  int
	Skipped    int
	Failed     int
	Error      string
}

// Duration returns the wall time of a finished run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StageEvent is one stage execution inside a run.
type StageEvent struct {
	RunID      string
	Identity   string
	Stage      string
	Outcome    string
	Artifact   string
	Error      string
	Duration   time.Duration
	RecordedAt time.Time
}

// Store is the SQLite-backed ledger.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	timeLayout              = time.RFC3339Nano
)

// Open creates or connects to the ledger at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: ensure directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// BeginRun inserts a running row for id.
func (s *Store) BeginRun(ctx context.Context, id string, startedAt time.Time, dryRun bool) error {
	return s.exec(ctx,
		`INSERT INTO runs (id, started_at, status, dry_run) VALUES (?, ?, ?, ?)`,
		id, formatTime(startedAt), StatusRunning, boolToInt(dryRun),
	)
}

// FinishRun stores the final counters and status of run.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	if run.Status == "" {
		run.Status = StatusCompleted
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	return s.exec(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, items = ?, processed = ?, skipped = ?, failed = ?, error = ?
		 WHERE id = ?`,
		formatTime(run.FinishedAt), run.Status, run.Items, run.Processed, run.Skipped, run.Failed, run.Error, run.ID,
	)
}

// RecordStage appends a stage execution.
func (s *Store) RecordStage(ctx context.Context, ev StageEvent) error {
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now()
	}
	return s.exec(ctx,
		`INSERT INTO stage_events (run_id, identity, stage, outcome, artifact, error, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.Identity, ev.Stage, ev.Outcome, ev.Artifact, ev.Error, ev.Duration.Milliseconds(), formatTime(ev.RecordedAt),
	)
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, started_at, COALESCE(finished_at, ''), status, dry_run, items, processed, skipped, failed, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run              Run
			started, stopped string
			dry              int
		)
		if err := rows.Scan(&run.ID, &started, &stopped, &run.Status, &dry, &run.Items, &run.Processed, &run.Skipped, &run.Failed, &run.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(stopped)
		run.DryRun = dry != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunEvents returns the stage events of runID in insertion order.
func (s *Store) RunEvents(ctx context.Context, runID string) ([]StageEvent, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT run_id, identity, stage, outcome, artifact, error, duration_ms, recorded_at
		 FROM stage_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stage events: %w", err)
	}
	defer rows.Close()

	var events []StageEvent
	for rows.Next() {
		var (
			ev       StageEvent
			ms       int64
			recorded string
		)
		if err := rows.Scan(&ev.RunID, &ev.Identity, &ev.Stage, &ev.Outcome, &ev.Artifact, &ev.Error, &ms, &recorded); err != nil {
			return nil, fmt.Errorf("scan stage event: %w", err)
		}
		ev.Duration = time.Duration(ms) * time.Millisecond
		ev.RecordedAt = parseTime(recorded)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
