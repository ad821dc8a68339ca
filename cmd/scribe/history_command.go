package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/history"
)

type runView struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Status     string        `json:"status"`
	DryRun     bool          `json:"dry_run"`
	Items      int           `json:"items"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the history ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("run history is disabled (history.enabled = false)")
			}
			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			if runID != "" {
				return showRunEvents(cmd, store, runID, asJSON)
			}

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				views := make([]runView, 0, len(runs))
				for _, r := range runs {
					views = append(views, runView{
						ID: r.ID, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt, Status: r.Status,
						DryRun: r.DryRun, Items: r.Items, Processed: r.Processed, Skipped: r.Skipped,
						Failed: r.Failed, Duration: r.Duration(), Error: r.Error,
					})
				}
				return writeJSON(cmd, views)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			p := paletteFor(out)
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				status := r.Status
				switch r.Status {
				case history.StatusCompleted:
					status = p.good(status)
				case history.StatusFailed, history.StatusCancelled:
					status = p.bad(status)
				default:
					status = p.warn(status)
				}
				if r.DryRun {
					status += p.dim(" (dry run)")
				}
				rows = append(rows, []string{
					shortID(r.ID),
					relTime(r.StartedAt),
					status,
					strconv.Itoa(r.Items),
					strconv.Itoa(r.Processed),
					strconv.Itoa(r.Skipped),
					strconv.Itoa(r.Failed),
					r.Duration().Round(time.Second).String(),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Status", "Items", "Stages run", "Stages skipped", "Failed", "Duration"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	cmd.Flags().StringVar(&runID, "run", "", "Show the stage events of one run")
	return cmd
}

func showRunEvents(cmd *cobra.Command, store *history.Store, runID string, asJSON bool) error {
	events, err := store.RunEvents(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd, events)
	}
	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintf(out, "No stage events recorded for run %s\n", runID)
		return nil
	}
	p := paletteFor(out)
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		outcome := p.good(ev.Outcome)
		detail := ev.Artifact
		if ev.Outcome == history.OutcomeFailed {
			outcome = p.bad(ev.Outcome)
			detail = ev.Error
		}
		rows = append(rows, []string{ev.Identity, ev.Stage, outcome, ev.Duration.Round(time.Millisecond).String(), fallback(detail, "-")})
	}
	fmt.Fprintln(out, renderTable([]string{"Item", "Stage", "Outcome", "Duration", "Detail"}, rows, nil))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
