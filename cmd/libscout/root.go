package main

import (
	"fmt"
	"io"
	"log/slog"

	"libscout/internal/config"
	"libscout/internal/logging"
	"libscout/internal/storage"

	"github.com/spf13/cobra"
)

// app carries the persistent flags shared by every subcommand.
type app struct {
	configPath string
	dbPath     string
	threshold  float64
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "libscout",
		Short:         "Recover libraries, versions and dependencies from a corpus of Java archives",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	flags.StringVarP(&a.dbPath, "db", "d", "", "Path to the output database (SQLite), overrides storage.db")
	flags.Float64Var(&a.threshold, "threshold", 1, "Cluster compatibility threshold, overrides clustering.compatibility_threshold")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides logging.level")

	rootCmd.AddCommand(newScanCmd(a))
	rootCmd.AddCommand(newAnalyzeCmd(a))
	rootCmd.AddCommand(newShowCmd(a))
	rootCmd.AddCommand(newImpactCmd(a))
	rootCmd.AddCommand(newExportCmd(a))
	return rootCmd
}

// init loads the config and lets explicitly set flags override it.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Storage.DB = a.dbPath
	}
	if flags.Changed("threshold") {
		cfg.Clustering.CompatibilityThreshold = a.threshold
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// openStore opens the configured database.
func (a *app) openStore() (*storage.SQLiteStore, error) {
	store, err := storage.NewSQLiteStore(a.cfg.Storage.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", a.cfg.Storage.DB, err)
	}
	return store, nil
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
