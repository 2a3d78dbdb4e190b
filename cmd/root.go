package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/syrinxlabs/syrinx/cmd/ingest"
	"github.com/syrinxlabs/syrinx/cmd/initdb"
	"github.com/syrinxlabs/syrinx/cmd/query"
	"github.com/syrinxlabs/syrinx/cmd/status"
	"github.com/syrinxlabs/syrinx/cmd/validate"
	"github.com/syrinxlabs/syrinx/internal/buildinfo"
	"github.com/syrinxlabs/syrinx/internal/conf"
	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/logging"
)

// RootCommand creates and returns the root command. The settings value
// is filled from the configuration file in PersistentPreRunE and shared
// by reference with every subcommand; nothing reads it before Execute
// dispatches into a RunE.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var (
		configPath string
		debug      bool
		closeLog   func() error
	)

	rootCmd := &cobra.Command{
		Use:   "syrinx",
		Short: "Birdsong artifact catalog CLI",
		Long: `Syrinx indexes bulk birdsong artifacts (audio recordings, spectrogram
segments, embedding vectors) into a relational catalog and serves
deterministic, filtered selections back out of it. The bulk arrays stay
on disk; the catalog holds paths, checksums, and metadata only.`,
		Version: buildinfo.Current().String(),
		// Errors are reported exactly once, by main.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	rootCmd.AddCommand(
		initdb.Command(settings),
		ingest.Command(settings),
		validate.Command(settings),
		status.Command(settings),
		query.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip setup for the generated help and completion commands.
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		// "init --write-config" bootstraps the config file itself, so it is
		// the one invocation that must run without loading one.
		if cmd.Name() == "init" && cmd.Flags().Changed("write-config") {
			*settings = *conf.Default()
			settings.Debug = debug
			logging.Init(logLevel(settings))
			return nil
		}

		if configPath == "" {
			return fmt.Errorf("no configuration file given, use --config <path> (or \"syrinx init --write-config <path>\" to create one)")
		}

		loaded, err := conf.Load(configPath)
		if err != nil {
			return err
		}
		*settings = *loaded
		if debug {
			settings.Debug = true
		}

		closer, err := logging.InitTee(settings.Logging.File, logLevel(settings))
		if err != nil {
			return err
		}
		closeLog = closer

		datastore.SetLogger(logging.ForService("datastore"))

		target, err := conf.ParseDatabaseURL(settings.Database.URL)
		if err != nil {
			return err
		}
		logging.Debug("configuration loaded",
			"config_path", configPath,
			"instance", settings.Main.Name,
			"backend_url", target.Redacted)
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if closeLog != nil {
			return closeLog()
		}
		return nil
	}

	return rootCmd
}

// logLevel maps the configured level to slog, with --debug winning.
func logLevel(settings *conf.Settings) slog.Level {
	if settings.Debug {
		return slog.LevelDebug
	}
	level, err := logging.ParseLevel(settings.Logging.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}
