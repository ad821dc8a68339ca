package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/executors"
	"scribe/internal/logging"
	"scribe/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var skipRemote bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify binaries, directories, credentials and service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg)
			if !skipRemote {
				clients, err := executors.NewClients(cmd.Context(), cfg)
				if err != nil {
					results = append(results, preflight.Result{Name: "Service clients", Detail: err.Error()})
				} else {
					registry := executors.Build(cfg, clients.Collaborators(cfg), logging.NewNop())
					results = append(results, preflight.CheckStages(cmd.Context(), registry)...)
				}
			}

			out := cmd.OutOrStdout()
			p := paletteFor(out)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				mark := p.good("ok")
				if !r.Passed {
					mark = p.bad("FAIL")
				}
				rows = append(rows, []string{r.Name, mark, fallback(r.Detail, "-")})
			}
			fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			fmt.Fprintln(out, renderTable([]string{"Check", "Result", "Detail"}, rows, nil))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipRemote, "local", false, "Skip remote service probes")
	return cmd
}
