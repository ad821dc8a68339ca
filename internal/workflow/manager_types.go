package workflow

import (
	"context"
	"time"

	"scribe/internal/intake"
	"scribe/internal/notifications"
	"scribe/internal/stage"
)

// Sweeper discovers candidate items across the enabled intake sources.
type Sweeper interface {
	Sweep(ctx context.Context, known intake.KnownKind) []intake.Item
}

// RunOptions controls one pipeline run.
type RunOptions struct {
	// Resume skips stages already completed with existing artifacts.
	Resume bool
	// Force lists identities whose every stage reruns once this run.
	Force []string
	// DryRun plans without executing or mutating state.
	DryRun bool
}

// ItemError is a stage failure observed during the run.
type ItemError struct {
	Identity string
	// Stage is empty for failures outside a stage execution.
	Stage   string
	Message string
}

// PlannedItem is the dry-run answer for one item.
type PlannedItem struct {
	Identity string
	Intake   stage.Intake
	Next     stage.Stage
	Skipped  []stage.Stage
	Done     bool
}

// Summary reports the outcome of a run. Processed and Skipped count stages;
// the Items fields count items.
type Summary struct {
	RunID          string
	StartedAt      time.Time
	DryRun         bool
	Cancelled      bool
	Items          int
	// Processed counts stage executions that succeeded, the Completed marker
	// included.
	Processed      int
	// Skipped counts stages left alone because they were already complete.
	Skipped        int
	// Failed counts recorded errors. A failure blocks its item, so this is
	// also the number of failed items.
	Failed         int
	// ItemsCompleted counts items that executed at least one stage and
	// finished; ItemsUpToDate counts items that needed nothing.
	ItemsCompleted int
	ItemsUpToDate  int
	Errors         []ItemError
	Planned        []PlannedItem
	Notes          []notifications.NoteLink
	Duration       time.Duration
}

// ProgressFunc observes item completion: done of total items have finished
// (successfully or not).
type ProgressFunc func(done, total int, identity string)

type itemStatus int

const (
	itemPending itemStatus = iota
	itemDone
	itemFailed
)

// itemRun is the per-run state of one item. Exactly one worker owns it while
// a stage executes.
type itemRun struct {
	identity string
	status   itemStatus
	executed int
	attempts map[stage.Stage]int
	// skipped holds stages found complete without running this run.
	skipped  map[stage.Stage]bool
	noteURL  string
}
