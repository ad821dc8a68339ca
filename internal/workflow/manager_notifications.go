package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scribe/internal/history"
	"scribe/internal/logging"
	"scribe/internal/notifications"
)

func (m *Manager) beginHistory(ctx context.Context, logger *slog.Logger, summary Summary) {
	if m.history == nil {
		return
	}
	if err := m.history.BeginRun(ctx, summary.RunID, summary.StartedAt, summary.DryRun); err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history.path permissions"),
			logging.String(logging.FieldImpact, "this run will be missing from scribe history"),
		)
	}
}

// finish logs the summary and fans it out to the history ledger, ntfy and
// email. Delivery failures are logged and never fail the run.
func (m *Manager) finish(ctx context.Context, logger *slog.Logger, summary Summary) {
	logger.Info("run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("items", summary.Items),
		logging.Int("items_completed", summary.ItemsCompleted),
		logging.Int("items_up_to_date", summary.ItemsUpToDate),
		logging.Int("processed", summary.Processed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Bool("cancelled", summary.Cancelled),
		logging.Duration("duration", summary.Duration),
	)

	// Deliveries happen after an interrupt too.
	ctx = context.WithoutCancel(ctx)
	m.finishHistory(ctx, logger, summary)
	if summary.DryRun || summary.Processed+summary.Failed == 0 {
		return
	}

	if m.notifier != nil {
		if err := m.notifier.Publish(ctx, notifications.EventRunCompleted, notifications.Payload{
			"processed": summary.Processed,
			"skipped":   summary.Skipped,
			"failed":    summary.Failed,
			"duration":  summary.Duration,
		}); err != nil {
			logger.Debug("run summary notification failed", logging.Error(err))
		}
	}

	if err := m.mailer.SendRunReport(reportFor(summary)); err != nil {
		logging.WarnWithContext(logger, "run report email failed", "email_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check email.smtp_host, credentials and recipients"),
			logging.String(logging.FieldImpact, "run report was not delivered"),
		)
	}
}

func (m *Manager) finishHistory(ctx context.Context, logger *slog.Logger, summary Summary) {
	if m.history == nil {
		return
	}
	run := history.Run{
		ID:         summary.RunID,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.StartedAt.Add(summary.Duration),
		Status:     history.StatusCompleted,
		DryRun:     summary.DryRun,
		Items:      summary.Items,
		Processed:  summary.Processed,
		Skipped:    summary.Skipped,
		Failed:     summary.Failed,
	}
	if summary.Cancelled {
		run.Status = history.StatusCancelled
	}
	if summary.Failed > 0 {
		run.Error = fmt.Sprintf("%d item(s) failed", summary.Failed)
	}
	if err := m.history.FinishRun(ctx, run); err != nil {
		logger.Debug("history run not finalized", logging.Error(err))
	}
}

func (m *Manager) notifyItemCompleted(ctx context.Context, run *itemRun, logger *slog.Logger) {
	if m.notifier == nil || run.executed == 0 {
		return
	}
	if err := m.notifier.Publish(ctx, notifications.EventItemCompleted, notifications.Payload{
		"identity": run.identity,
		"noteURL":  run.noteURL,
	}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("item notification failed", logging.Error(err))
	}
}

func reportFor(summary Summary) notifications.Report {
	report := notifications.Report{
		RunID:     summary.RunID,
		StartedAt: summary.StartedAt,
		Duration:  summary.Duration,
		DryRun:    summary.DryRun,
		Items:     summary.Items,
		Processed: summary.Processed,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		Notes:     summary.Notes,
	}
	for _, e := range summary.Errors {
		if e.Stage == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", e.Identity, e.Message))
			continue
		}
		report.Errors = append(report.Errors, fmt.Sprintf("%s [%s]: %s", e.Identity, e.Stage, e.Message))
	}
	return report
}
