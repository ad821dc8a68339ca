package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newErrorsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var limit int

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List recorded stage failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openReadOnlyStore()
			if err != nil {
				return err
			}
			entries := store.Errors()
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			if asJSON {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No errors recorded")
				return nil
			}
			p := paletteFor(out)
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					p.dim(relTime(e.Timestamp)),
					e.Identity,
					fallback(e.Stage, "-"),
					p.bad(e.Error),
					fallback(e.Context, "-"),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"When", "Item", "Stage", "Error", "Context"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the most recent N errors")
	return cmd
}
