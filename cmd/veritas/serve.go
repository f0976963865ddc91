package main

import (
	"github.com/spf13/cobra"
)

func newServeCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c.log.InfoContext(ctx, "initializing veritas",
				"addr", c.cfg.Server.Addr,
				"environment", c.cfg.Server.Environment,
				"analysis_mode", c.cfg.Analysis.Mode,
			)
			a, err := newApp(ctx, c.cfg, c.log, defaultMetrics())
			if err != nil {
				return err
			}
			return a.run(ctx)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("analysis-mode", "demo", "analysis mode: direct, remote or demo")
	if err := bindFlags(c.v, cmd.Flags(), map[string]string{
		"server.addr":   "addr",
		"analysis.mode": "analysis-mode",
	}); err != nil {
		panic(err)
	}
	return cmd
}
