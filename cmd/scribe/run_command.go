package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/preflight"
	"scribe/internal/textutil"
	"scribe/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var noResume bool
	var force []string
	var dryRun bool
	var showProgress bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every discovered item through the pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !dryRun {
				if err := requirePreflight(cfg); err != nil {
					return err
				}
			}

			var progress *progressReporter
			if showProgress && !dryRun {
				progress = newProgressReporter(cmd.ErrOrStderr())
			}

			p, err := ctx.openPipeline(cmd.Context(), progress.callback())
			if err != nil {
				return err
			}
			defer p.Close()

			summary, runErr := p.manager.Run(cmd.Context(), workflow.RunOptions{
				Resume: !noResume,
				Force:  normalizeForce(force),
				DryRun: dryRun,
			})
			progress.finish()

			out := cmd.OutOrStdout()
			if dryRun {
				printPlan(out, summary)
				return runErr
			}
			printSummary(out, summary)
			if runErr != nil {
				return runErr
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d item(s) failed; see `scribe errors`", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noResume, "no-resume", false, "Rerun every stage regardless of recorded progress")
	cmd.Flags().StringSliceVar(&force, "force", nil, "Reprocess every stage of the given identity (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the next stage per item without executing anything")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Show a progress bar when attached to a terminal")
	return cmd
}

func requirePreflight(cfg *config.Config) error {
	failed := preflight.Failed(preflight.RunAll(cfg))
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return errors.New("preflight failed: " + strings.Join(parts, "; "))
}

// normalizeForce maps --force values onto stored identities, which are NFC.
func normalizeForce(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if id := textutil.Canonical(v); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func printSummary(out io.Writer, summary workflow.Summary) {
	status := "Run complete"
	if summary.Cancelled {
		status = "Run cancelled"
	}
	fmt.Fprintf(out, "%s: %d items (%d completed, %d up to date), %d stages processed, %d stages skipped, %d failed in %s\n",
		status, summary.Items, summary.ItemsCompleted, summary.ItemsUpToDate,
		summary.Processed, summary.Skipped, summary.Failed,
		summary.Duration.Round(time.Second))
	for _, note := range summary.Notes {
		fmt.Fprintf(out, "Published %s: %s\n", note.Title, note.URL)
	}
	if len(summary.Errors) == 0 {
		return
	}
	rows := make([][]string, 0, len(summary.Errors))
	for _, e := range summary.Errors {
		rows = append(rows, []string{e.Identity, fallback(e.Stage, "-"), e.Message})
	}
	fmt.Fprintln(out, renderTable([]string{"Item", "Stage", "Error"}, rows, nil))
}

func printPlan(out io.Writer, summary workflow.Summary) {
	if len(summary.Planned) == 0 {
		fmt.Fprintln(out, "No items discovered")
		return
	}
	rows := make([][]string, 0, len(summary.Planned))
	for _, p := range summary.Planned {
		next := p.Next.String()
		if p.Done {
			next = "done"
		}
		skipped := make([]string, 0, len(p.Skipped))
		for _, st := range p.Skipped {
			skipped = append(skipped, st.String())
		}
		rows = append(rows, []string{p.Identity, string(p.Intake), next, fallback(strings.Join(skipped, ", "), "-")})
	}
	fmt.Fprintln(out, renderTable([]string{"Item", "Intake", "Next", "Skipped"}, rows, nil))
	fmt.Fprintf(out, "Dry run: %d items, %d already complete, %d stages skipped\n",
		summary.Items, summary.ItemsUpToDate, summary.Skipped)
}

// progressReporter draws a bar on a terminal. A nil reporter is inert.
type progressReporter struct {
	out io.Writer
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgressReporter(out io.Writer) *progressReporter {
	f, ok := out.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return nil
	}
	return &progressReporter{out: out}
}

func (r *progressReporter) callback() workflow.ProgressFunc {
	if r == nil {
		return nil
	}
	return func(done, total int, identity string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.bar == nil {
			r.bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(r.out),
				progressbar.OptionSetDescription("items"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetElapsedTime(true),
				progressbar.OptionClearOnFinish(),
			)
		}
		r.bar.Describe(identity)
		_ = r.bar.Set(done)
	}
}

func (r *progressReporter) finish() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}
