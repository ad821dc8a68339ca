package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"scribe/internal/executors"
	"scribe/internal/history"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/reconcile"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/stageexec"
)

// runStage executes st for one item and records the outcome. The caller
// guarantees no other worker holds run.
func (m *Manager) runStage(ctx context.Context, engine *reconcile.Engine, run *itemRun, st stage.Stage, tracker *tracker, logger *slog.Logger) {
	run.attempts[st]++
	fs, ok := m.store.Get(run.identity)
	if !ok {
		tracker.fail(run, st.String(), "state record disappeared during the run")
		return
	}

	if st == stage.Completed {
		engine.MarkRan(run.identity, st)
		if err := m.store.MarkStageComplete(run.identity, st, "", nil); err != nil {
			m.recordFailure(run, st, err, "", tracker, logger)
			return
		}
		tracker.stageProcessed()
		return
	}

	exec, _ := m.executors.Executor(st)
	out := stageexec.Run(ctx, stageexec.Options{
		Logger:   m.logger,
		Notifier: m.notifier,
		Executor: exec,
		Stage:    st,
		Request: stage.Request{
			Identity:   fs.Identity,
			SourcePath: fs.SourcePath,
			Intake:     fs.Intake,
			Artifacts:  fs.Artifacts,
			Metadata:   fs.Metadata,
		},
		Timeout: m.cfg.StageTimeout(),
	})
	engine.MarkRan(run.identity, st)
	m.recordStageEvent(ctx, run.identity, st, out, logger)

	if !out.OK() {
		m.recordFailure(run, st, out.Err, out.RequestID, tracker, logger)
		return
	}
	if err := m.store.MarkStageComplete(run.identity, st, out.Artifact, out.Metadata); err != nil {
		m.recordFailure(run, st, err, out.RequestID, tracker, logger)
		return
	}
	run.executed++
	tracker.stageProcessed()
	if url := out.Metadata[executors.MetaNoteURL]; url != "" {
		run.noteURL = url
		tracker.note(notifications.NoteLink{Title: out.Metadata[executors.MetaNoteTitle], URL: url})
	}
}

// recordFailure persists a stage error and blocks the item for the rest of
// the run.
func (m *Manager) recordFailure(run *itemRun, st stage.Stage, err error, requestID string, tracker *tracker, logger *slog.Logger) {
	details := services.Details(err)
	detail := fmt.Sprintf("kind=%s", details.Kind)
	if requestID != "" {
		detail += " request_id=" + requestID
	}
	if recErr := m.store.RecordError(run.identity, &st, err.Error(), detail); recErr != nil {
		logger.Warn("failed to record stage error",
			logging.String(logging.FieldItem, run.identity),
			logging.Error(recErr),
			logging.String(logging.FieldEventType, "state_record_error_failed"),
			logging.String(logging.FieldErrorHint, "check state file permissions"),
			logging.String(logging.FieldImpact, "error will not appear in scribe errors"),
		)
	}
	logger.Debug("item blocked for the rest of the run",
		logging.String(logging.FieldItem, run.identity),
		logging.String(logging.FieldStage, st.String()))
	tracker.fail(run, st.String(), details.Message)
}

func (m *Manager) recordStageEvent(ctx context.Context, identity string, st stage.Stage, out stageexec.Outcome, logger *slog.Logger) {
	if m.history == nil {
		return
	}
	runID, _ := services.RunIDFromContext(ctx)
	ev := history.StageEvent{
		RunID:      runID,
		Identity:   identity,
		Stage:      st.String(),
		Outcome:    history.OutcomeCompleted,
		Artifact:   out.Artifact,
		Duration:   out.Duration,
		RecordedAt: m.now(),
	}
	if !out.OK() {
		ev.Outcome = history.OutcomeFailed
		ev.Error = out.Err.Error()
	}
	if err := m.history.RecordStage(context.WithoutCancel(ctx), ev); err != nil {
		logger.Debug("history stage event not recorded", logging.Error(err))
	}
}

// tracker aggregates per-item outcomes into the run summary. Workers call it
// concurrently.
type tracker struct {
	mu       sync.Mutex
	summary  *Summary
	total    int
	finished int
	progress ProgressFunc
}

func newTracker(summary *Summary, total int, progress ProgressFunc) *tracker {
	return &tracker{summary: summary, total: total, progress: progress}
}

func (t *tracker) stageProcessed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Processed++
}

func (t *tracker) done(run *itemRun) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if run.executed > 0 {
		t.summary.ItemsCompleted++
	} else {
		t.summary.ItemsUpToDate++
	}
	t.summary.Skipped += len(run.skipped)
	t.advance(run.identity)
}

func (t *tracker) fail(run *itemRun, stageName, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	run.status = itemFailed
	t.summary.Failed++
	t.summary.Skipped += len(run.skipped)
	t.summary.Errors = append(t.summary.Errors, ItemError{Identity: run.identity, Stage: stageName, Message: message})
	t.advance(run.identity)
}

func (t *tracker) note(link notifications.NoteLink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Notes = append(t.summary.Notes, link)
}

func (t *tracker) advance(identity string) {
	t.finished++
	if t.progress != nil {
		t.progress(t.finished, t.total, identity)
	}
}
