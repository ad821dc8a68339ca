package reconcile

import (
	"context"
	"log/slog"
	"sync"

	"scribe/internal/logging"
	"scribe/internal/stage"
	"scribe/internal/state"
)

// Options controls which optional stages apply to an item.
type Options struct {
	Publish bool
	Sync    bool
}

// ApplicableStages lists the stages fs must pass, in order: its entry stage
// (if any), transcription, parsing, summarization, the enabled publishing
// stages, then Completed.
func ApplicableStages(fs *state.FileState, opts Options) []stage.Stage {
	out := make([]stage.Stage, 0, 7)
	if fs != nil {
		if entry, ok := fs.Intake.EntryStage(); ok {
			out = append(out, entry)
		}
	}
	out = append(out, stage.Transcribed, stage.Parsed, stage.Summarized)
	if opts.Publish {
		out = append(out, stage.PublishedToNotes)
	}
	if opts.Sync {
		out = append(out, stage.SyncedToRemoteStorage)
	}
	return append(out, stage.Completed)
}

// Plan is the engine's answer for one item.
type Plan struct {
	// Next is the first stage that needs processing; valid only when !Done.
	Next stage.Stage
	// Skipped lists the stages before Next that are already satisfied.
	Skipped []stage.Stage
	Done    bool
}

// Engine decides which stages an item still needs. It holds the per-run
// memory of stages already executed so forced and non-resume runs make
// progress instead of repeating their first stage.
type Engine struct {
	Resume     bool
	Forced     map[string]bool
	Checker    state.ArtifactChecker
	Applicable func(*state.FileState) []stage.Stage
	Logger     *slog.Logger

	mu  sync.Mutex
	ran map[string]map[stage.Stage]bool
}

// New builds an engine for one run.
func New(resume bool, forced []string, checker state.ArtifactChecker, opts Options, logger *slog.Logger) *Engine {
	set := make(map[string]bool, len(forced))
	for _, id := range forced {
		set[id] = true
	}
	if checker == nil {
		checker = state.NewSchemeChecker()
	}
	return &Engine{
		Resume:  resume,
		Forced:  set,
		Checker: checker,
		Applicable: func(fs *state.FileState) []stage.Stage {
			return ApplicableStages(fs, opts)
		},
		Logger: logging.NewComponentLogger(logger, "reconcile"),
	}
}

// MarkRan records that s executed for identity during this run.
func (e *Engine) MarkRan(identity string, s stage.Stage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ran == nil {
		e.ran = make(map[string]map[stage.Stage]bool)
	}
	if e.ran[identity] == nil {
		e.ran[identity] = make(map[stage.Stage]bool)
	}
	e.ran[identity][s] = true
}

func (e *Engine) hasRun(identity string, s stage.Stage) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ran[identity][s]
}

func (e *Engine) applicable(fs *state.FileState) []stage.Stage {
	if e.Applicable != nil {
		return e.Applicable(fs)
	}
	return ApplicableStages(fs, Options{})
}

// NeedsProcessing reports whether s must run for fs. Precedence: a forced item
// reruns every stage once per run; with resume disabled every stage runs once
// per run; otherwise a stage is satisfied only when it and every applicable
// prerequisite are complete with existing artifacts.
func (e *Engine) NeedsProcessing(ctx context.Context, fs *state.FileState, s stage.Stage) bool {
	if e.Forced[fs.Identity] && !e.hasRun(fs.Identity, s) {
		return true
	}
	if !e.Resume && !e.hasRun(fs.Identity, s) {
		return true
	}
	for _, candidate := range e.applicable(fs) {
		if candidate.After(s) {
			break
		}
		if !e.satisfied(ctx, fs, candidate) {
			return true
		}
	}
	return false
}

func (e *Engine) satisfied(ctx context.Context, fs *state.FileState, s stage.Stage) bool {
	if !fs.IsStageComplete(s) {
		return false
	}
	loc, ok := fs.Artifact(s)
	if !ok {
		return true
	}
	exists, err := e.Checker.Exists(ctx, loc)
	if err != nil {
		e.Logger.Debug("artifact check failed; trusting recorded completion",
			logging.String(logging.FieldItem, fs.Identity),
			logging.String(logging.FieldStage, s.String()),
			logging.Error(err))
		return true
	}
	if !exists {
		e.Logger.Debug("recorded artifact missing",
			logging.String(logging.FieldItem, fs.Identity),
			logging.String(logging.FieldStage, s.String()),
			logging.String("artifact", loc),
			logging.String(logging.FieldEventType, "reconcile_mismatch"))
	}
	return exists
}

// Next walks the applicable stages in order and stops at the first one that
// needs processing.
func (e *Engine) Next(ctx context.Context, fs *state.FileState) Plan {
	var plan Plan
	for _, s := range e.applicable(fs) {
		if e.NeedsProcessing(ctx, fs, s) {
			plan.Next = s
			return plan
		}
		plan.Skipped = append(plan.Skipped, s)
	}
	plan.Done = true
	return plan
}

// FullyCompleted is the canonical completion check: every applicable stage
// through Completed is recorded and every recorded artifact still exists.
func (e *Engine) FullyCompleted(ctx context.Context, fs *state.FileState) bool {
	for _, s := range e.applicable(fs) {
		if !e.satisfied(ctx, fs, s) {
			return false
		}
	}
	return true
}
