package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"veritas/internal/platform/config"
	"veritas/internal/platform/logger"
)

// cli carries what every subcommand needs once flags are parsed.
type cli struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	log        *slog.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:           "veritas",
		Short:         "Veritas content verification server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.v, c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to a YAML config file (overrides "+config.ConfigFileEnv+")")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("database-url", "", "Postgres connection URL")
	if err := bindFlags(c.v, flags, map[string]string{
		"log.level":    "log-level",
		"database.url": "database-url",
	}); err != nil {
		panic(err)
	}

	root.AddCommand(
		newServeCommand(c),
		newMigrateCommand(c),
		newTokenCommand(c),
		newRoleCommand(c),
	)
	return root
}

// bindFlags lets flags override environment and file values for the given
// config keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
