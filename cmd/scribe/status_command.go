package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/executors"
	"scribe/internal/logging"
	"scribe/internal/reconcile"
	"scribe/internal/state"
)

// itemStatus is the machine-readable status of one item.
type itemStatus struct {
	Identity    string            `json:"identity" yaml:"identity"`
	Intake      string            `json:"intake" yaml:"intake"`
	SourcePath  string            `json:"source_path" yaml:"source_path"`
	Completed   []string          `json:"stages_completed" yaml:"stages_completed"`
	Pending     []string          `json:"stages_pending" yaml:"stages_pending"`
	Progress    string            `json:"progress" yaml:"progress"`
	Done        bool              `json:"fully_completed" yaml:"fully_completed"`
	Missing     []string          `json:"missing_artifacts,omitempty" yaml:"missing_artifacts,omitempty"`
	Artifacts   map[string]string `json:"artifacts" yaml:"artifacts"`
	NoteURL     string            `json:"note_url,omitempty" yaml:"note_url,omitempty"`
	LastUpdated time.Time         `json:"last_updated" yaml:"last_updated"`
}

type statusReport struct {
	StateFile string       `json:"state_file" yaml:"state_file"`
	Items     []itemStatus `json:"items" yaml:"items"`
	Errors    int          `json:"errors" yaml:"errors"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON, asYAML bool

	cmd := &cobra.Command{
		Use:   "status [identity]",
		Short: "Show per-item pipeline progress without modifying state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && asYAML {
				return errors.New("--json and --yaml are mutually exclusive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openReadOnlyStore()
			if err != nil {
				return err
			}

			report := buildStatusReport(cmd.Context(), cfg, store)
			if len(args) == 1 {
				id := strings.TrimSpace(args[0])
				var match []itemStatus
				for _, it := range report.Items {
					if it.Identity == id {
						match = append(match, it)
					}
				}
				if len(match) == 0 {
					return fmt.Errorf("no state recorded for %q", id)
				}
				report.Items = match
			}

			switch {
			case asJSON:
				return writeJSON(cmd, report)
			case asYAML:
				return writeYAML(cmd, report)
			case len(args) == 1:
				renderItemDetail(cmd.OutOrStdout(), report.Items[0])
			default:
				renderStatus(cmd.OutOrStdout(), report)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Emit YAML")
	return cmd
}

func buildStatusReport(ctx context.Context, cfg *config.Config, store *state.Store) statusReport {
	opts := reconcile.Options{Publish: cfg.PublishingEnabled(), Sync: cfg.SyncEnabled()}
	engine := reconcile.New(true, nil, store.Checker(), opts, logging.NewNop())

	report := statusReport{StateFile: store.Path(), Errors: len(store.Errors())}
	for _, fs := range store.List() {
		it := itemStatus{
			Identity:    fs.Identity,
			Intake:      string(fs.Intake),
			SourcePath:  fs.SourcePath,
			Artifacts:   make(map[string]string, len(fs.Artifacts)),
			NoteURL:     fs.Metadata[executors.MetaNoteURL],
			LastUpdated: fs.LastUpdated,
		}
		for _, st := range fs.Stages() {
			it.Completed = append(it.Completed, st.String())
		}
		for st, loc := range fs.Artifacts {
			it.Artifacts[st.String()] = loc
			if ok, err := store.Checker().Exists(ctx, loc); err == nil && !ok {
				it.Missing = append(it.Missing, st.String())
			}
		}
		slices.Sort(it.Missing)
		applicable := reconcile.ApplicableStages(fs, opts)
		for _, st := range applicable {
			if engine.NeedsProcessing(ctx, fs, st) {
				it.Pending = append(it.Pending, st.String())
			}
		}
		it.Progress = fmt.Sprintf("%d/%d", len(applicable)-len(it.Pending), len(applicable))
		it.Done = engine.FullyCompleted(ctx, fs)
		report.Items = append(report.Items, it)
	}
	return report
}

func renderStatus(out io.Writer, report statusReport) {
	p := paletteFor(out)
	if len(report.Items) == 0 {
		fmt.Fprintf(out, "No items recorded in %s\n", report.StateFile)
		return
	}
	rows := make([][]string, 0, len(report.Items))
	done := 0
	for _, it := range report.Items {
		var label string
		switch {
		case it.Done:
			done++
			label = p.good("complete")
		case len(it.Missing) > 0:
			label = p.bad("missing " + strings.Join(it.Missing, ","))
		default:
			label = p.warn("next " + firstOr(it.Pending, "-"))
		}
		rows = append(rows, []string{
			it.Identity,
			it.Intake,
			it.Progress,
			label,
			p.dim(relTime(it.LastUpdated)),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Item", "Intake", "Stages", "State", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
	fmt.Fprintf(out, "%d of %d items complete", done, len(report.Items))
	if report.Errors > 0 {
		fmt.Fprintf(out, ", %s", p.bad(fmt.Sprintf("%d errors recorded", report.Errors)))
	}
	fmt.Fprintln(out)
}

func renderItemDetail(out io.Writer, it itemStatus) {
	p := paletteFor(out)
	fmt.Fprintf(out, "Item:      %s\n", it.Identity)
	fmt.Fprintf(out, "Intake:    %s\n", it.Intake)
	fmt.Fprintf(out, "Source:    %s\n", fallback(it.SourcePath, "-"))
	fmt.Fprintf(out, "Complete:  %s\n", yesNo(it.Done))
	fmt.Fprintf(out, "Updated:   %s\n", relTime(it.LastUpdated))
	if it.NoteURL != "" {
		fmt.Fprintf(out, "Note:      %s\n", it.NoteURL)
	}
	missing := make(map[string]bool, len(it.Missing))
	for _, m := range it.Missing {
		missing[m] = true
	}
	rows := make([][]string, 0, len(it.Completed)+len(it.Pending))
	for _, st := range it.Completed {
		mark := p.good("done")
		if missing[st] {
			mark = p.bad("artifact missing")
		}
		rows = append(rows, []string{st, mark, fallback(it.Artifacts[st], "-")})
	}
	for _, st := range it.Pending {
		if slices.Contains(it.Completed, st) {
			continue
		}
		rows = append(rows, []string{st, p.warn("pending"), "-"})
	}
	fmt.Fprintln(out, renderTable([]string{"Stage", "State", "Artifact"}, rows, nil))
}

func firstOr(values []string, def string) string {
	if len(values) == 0 {
		return def
	}
	return values[0]
}

