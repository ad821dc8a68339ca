package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the scribe log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logFilePath(cfg)
			out := cmd.OutOrStdout()

			// Read generously when filtering so N matching lines are likely shown.
			window := lines
			if !filter.Empty() && window > 0 {
				window *= 20
			}
			tail, offset, err := logs.Last(path, window)
			if err != nil {
				return err
			}
			var matched []string
			for _, line := range tail {
				if filter.Match(line) {
					matched = append(matched, line)
				}
			}
			if len(matched) > lines {
				matched = matched[len(matched)-lines:]
			}
			for _, line := range matched {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			err = logs.Follow(cmd.Context(), path, offset, 0, func(line string) {
				if filter.Match(line) {
					fmt.Fprintln(out, line)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&filter.Item, "item", "", "Only lines for this item identity")
	cmd.Flags().StringVar(&filter.Stage, "stage", "", "Only lines for this stage")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "Only lines for this run id")
	cmd.Flags().StringVar(&filter.EventType, "event", "", "Only lines with this event_type")
	cmd.Flags().StringVar(&filter.Level, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}
