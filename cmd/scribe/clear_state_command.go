package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/state"
)

func newClearStateCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear-state",
		Short: "Forget all recorded progress and errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("clear-state discards every recorded stage; rerun with --yes to confirm")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, err := state.Open(cfg.Paths.StateFile, logger)
			if err != nil {
				return err
			}
			unlock, err := store.Lock()
			if err != nil {
				return err
			}
			defer unlock()

			count := len(store.List())
			if err := store.Clear(); err != nil {
				return fmt.Errorf("clear state: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d item(s) from %s\n", count, store.Path())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing state")
	return cmd
}
