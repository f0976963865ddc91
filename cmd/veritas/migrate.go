package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"veritas/internal/platform/database"
	"veritas/migrations"
)

func newMigrateCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := openPool(cmd, c)
			if err != nil {
				return err
			}
			defer pool.Close() //nolint:errcheck // process exits next

			applied, err := database.Migrate(cmd.Context(), pool.DB(), migrations.FS)
			for _, v := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", v)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return errors.New("--steps must be at least 1")
			}
			pool, err := openPool(cmd, c)
			if err != nil {
				return err
			}
			defer pool.Close() //nolint:errcheck // process exits next

			reverted, err := database.Rollback(cmd.Context(), pool.DB(), migrations.FS, steps)
			for _, v := range reverted {
				fmt.Fprintln(cmd.OutOrStdout(), "reverted", v)
			}
			return err
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")

	cmd.AddCommand(up, down)
	return cmd
}

// openPool connects to the configured database; tooling commands cannot
// fall back to memory.
func openPool(cmd *cobra.Command, c *cli) (*database.Pool, error) {
	if c.cfg.Database.URL == "" {
		return nil, errors.New("database.url is not set (use --database-url or VERITAS_DATABASE_URL)")
	}
	pool, err := database.New(cmd.Context(), database.Config{
		URL:             c.cfg.Database.URL,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: c.cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, nil
}
