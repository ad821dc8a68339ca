package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/watch"
	"scribe/internal/workflow"
)

// drivePollInterval re-sweeps the Drive inbox, which has no change feed here.
const drivePollInterval = 5 * time.Minute

func newWatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the pipeline whenever new media lands in the intake folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := requirePreflight(cfg); err != nil {
				return err
			}
			p, err := ctx.openPipeline(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer p.Close()

			logger := logging.NewComponentLogger(p.logger, "watch")
			trigger := func(runCtx context.Context) error {
				summary, err := p.manager.Run(runCtx, workflow.RunOptions{Resume: true})
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			}

			w, err := watch.New(watchOptions(cfg), trigger, logger)
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	return cmd
}

func watchOptions(cfg *config.Config) watch.Options {
	opts := watch.Options{
		Debounce:   time.Duration(cfg.Workflow.WatchDebounceSeconds) * time.Second,
		RunOnStart: true,
	}
	if cfg.Intake.ProcessVideos {
		opts.Dirs = append(opts.Dirs, cfg.Intake.VideoDir)
		opts.Extensions = append(opts.Extensions, cfg.Intake.VideoExtensions...)
	}
	if cfg.Intake.ProcessLocalAudio {
		opts.Dirs = append(opts.Dirs, cfg.Intake.AudioDir)
		opts.Extensions = append(opts.Extensions, cfg.Intake.AudioExtensions...)
	}
	if cfg.Intake.ProcessDrive {
		opts.Poll = drivePollInterval
	}
	return opts
}
