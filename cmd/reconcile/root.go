package main

import (
	"github.com/Sternrassler/lookup-reconciler/internal/config"
	"github.com/Sternrassler/lookup-reconciler/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries state shared by subcommands.
type app struct {
	viper      *viper.Viper
	configFile string
	config     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{viper: config.New()}

	root := &cobra.Command{
		Use:     "reconcile",
		Short:   "Enrich tabular entries from public lookup APIs",
		Version: Version,
		Long: `reconcile reads entries from CSV, searches a lookup API for each one,
keeps the candidates that agree with the entry and writes the matches as
JSON or CSV.

Settings come from flags, RECONCILE_* environment variables, .env files and
an optional .reconcile.yaml.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default is ./.reconcile.yaml or $HOME/.reconcile.yaml)")
	root.PersistentFlags().String(config.KeyLogLevel, "info", "log level: debug, info, warn, error")
	root.PersistentFlags().Bool(config.KeyLogPretty, false, "human-readable console logs")
	bindFlags(a.viper, root.PersistentFlags(), config.KeyLogLevel, config.KeyLogPretty)

	root.AddCommand(newRunCmd(a), newModulesCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	config.LoadEnvFiles()

	cfg, err := config.Load(a.viper, a.configFile)
	if err != nil {
		return err
	}
	a.config = cfg

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: cmd.ErrOrStderr(),
	})
	return nil
}
