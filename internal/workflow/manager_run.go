package workflow

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"scribe/internal/intake"
	"scribe/internal/logging"
	"scribe/internal/reconcile"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/state"
)

// Run executes one pass of the pipeline. It returns ctx's error when the run
// stopped early because of cancellation; the summary is valid either way.
func (m *Manager) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	start := m.now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, m.logger)
	summary := Summary{RunID: runID, StartedAt: start, DryRun: opts.DryRun}

	m.beginHistory(ctx, logger, summary)

	records := m.discover(ctx, opts.DryRun, logger)
	summary.Items = len(records)
	engine := reconcile.New(opts.Resume, opts.Force, m.store.Checker(), m.engineOptions(), logger)

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("items", len(records)),
		logging.Bool("resume", opts.Resume),
		logging.Int("forced", len(opts.Force)),
		logging.Bool("dry_run", opts.DryRun),
	)

	if opts.DryRun {
		m.plan(ctx, engine, records, &summary)
	} else {
		if removed := m.store.CleanMissingArtifacts(ctx); removed > 0 {
			logger.Info("reset stages with missing artifacts",
				logging.Int("stages", removed),
				logging.String(logging.FieldEventType, "artifacts_reconciled"),
			)
		}
		m.execute(ctx, engine, records, &summary, logger)
	}

	summary.Duration = m.now().Sub(start)
	m.finish(ctx, logger, summary)
	if summary.Cancelled {
		return summary, ctx.Err()
	}
	return summary, nil
}

// discover sweeps intake and makes sure every item has a record. A dry run
// builds throwaway records instead of touching the store.
func (m *Manager) discover(ctx context.Context, dryRun bool, logger *slog.Logger) []*state.FileState {
	if m.sweeper == nil {
		return m.store.List()
	}
	known := func(identity string) (intake.Kind, bool) {
		fs, ok := m.store.Get(identity)
		if !ok {
			return "", false
		}
		return fs.Intake, true
	}

	found := m.sweeper.Sweep(ctx, known)
	out := make([]*state.FileState, 0, len(found))
	for _, item := range found {
		if dryRun {
			fs, ok := m.store.Get(item.Identity)
			if !ok {
				fs = state.NewFileState(item.Identity, item.Path, item.Kind)
			}
			out = append(out, fs)
			continue
		}
		fs, err := m.store.GetOrCreate(item.Identity, item.Path, item.Kind)
		if err != nil {
			logging.WarnWithContext(logger, "skipping item without usable identity", "item_register_failed",
				logging.String("source", item.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "item will not be processed this run"),
			)
			continue
		}
		for _, key := range sortedKeys(item.Metadata) {
			if fs.Metadata[key] == item.Metadata[key] {
				continue
			}
			if err := m.store.SetMetadata(fs.Identity, key, item.Metadata[key]); err != nil {
				logger.Debug("metadata update failed", logging.String(logging.FieldItem, fs.Identity), logging.Error(err))
			}
		}
		out = append(out, fs)
	}
	return out
}

func (m *Manager) plan(ctx context.Context, engine *reconcile.Engine, records []*state.FileState, summary *Summary) {
	for _, fs := range records {
		p := engine.Next(ctx, fs)
		summary.Planned = append(summary.Planned, PlannedItem{
			Identity: fs.Identity,
			Intake:   fs.Intake,
			Next:     p.Next,
			Skipped:  p.Skipped,
			Done:     p.Done,
		})
		summary.Skipped += len(p.Skipped)
		if p.Done {
			summary.ItemsUpToDate++
		}
	}
}

// execute processes stage groups until every item is done, failed or the
// context is cancelled.
func (m *Manager) execute(ctx context.Context, engine *reconcile.Engine, records []*state.FileState, summary *Summary, logger *slog.Logger) {
	tracker := newTracker(summary, len(records), m.progress)
	runs := make([]*itemRun, 0, len(records))
	for _, fs := range records {
		runs = append(runs, &itemRun{
			identity: fs.Identity,
			attempts: make(map[stage.Stage]int),
			skipped:  make(map[stage.Stage]bool),
		})
	}

	for {
		if ctx.Err() != nil {
			summary.Cancelled = true
			logger.Info("run cancelled; remaining stages deferred to the next run",
				logging.String(logging.FieldEventType, "run_cancelled"))
			return
		}
		st, group := m.nextGroup(ctx, engine, runs, tracker, logger)
		if len(group) == 0 {
			return
		}
		logger.Debug("processing stage group",
			logging.String(logging.FieldStage, st.String()),
			logging.Int("items", len(group)))
		m.runGroup(ctx, engine, st, group, tracker, logger)
	}
}

// nextGroup re-plans every pending item and returns those waiting on the
// earliest stage. Items whose plan is done are finalized here.
func (m *Manager) nextGroup(ctx context.Context, engine *reconcile.Engine, runs []*itemRun, tracker *tracker, logger *slog.Logger) (stage.Stage, []*itemRun) {
	waiting := make(map[stage.Stage][]*itemRun)
	first := stage.Stage(-1)
	for _, run := range runs {
		if run.status != itemPending {
			continue
		}
		fs, ok := m.store.Get(run.identity)
		if !ok {
			tracker.fail(run, "", "state record disappeared during the run")
			continue
		}
		p := engine.Next(ctx, fs)
		for _, st := range p.Skipped {
			if run.attempts[st] == 0 {
				run.skipped[st] = true
			}
		}
		if p.Done {
			run.status = itemDone
			tracker.done(run)
			m.notifyItemCompleted(ctx, run, logger)
			continue
		}
		if run.attempts[p.Next] > 0 {
			// A stage that already ran this run needs processing again: its
			// artifact vanished right after being recorded.
			msg := "artifact missing right after the stage completed"
			m.recordFailure(run, p.Next, services.Wrap(services.ErrValidation, p.Next.String(), "verify artifact", msg, nil), "", tracker, logger)
			continue
		}
		waiting[p.Next] = append(waiting[p.Next], run)
		if first < 0 || p.Next.Before(first) {
			first = p.Next
		}
	}
	if first < 0 {
		return first, nil
	}
	return first, waiting[first]
}

func (m *Manager) runGroup(ctx context.Context, engine *reconcile.Engine, st stage.Stage, group []*itemRun, tracker *tracker, logger *slog.Logger) {
	sem := make(chan struct{}, m.parallelism())
	var wg sync.WaitGroup
	for _, run := range group {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		if ctx.Err() != nil {
			<-sem
			break
		}
		wg.Add(1)
		go func(run *itemRun) {
			defer wg.Done()
			defer func() { <-sem }()
			m.runStage(ctx, engine, run, st, tracker, logger)
		}(run)
	}
	wg.Wait()
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
