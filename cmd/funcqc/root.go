package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/akiramei/funcqc-sub004/internal/config"
	"github.com/akiramei/funcqc-sub004/internal/storage"
)

var (
	cfgFile string
	dbPath  string
	verbose bool

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "funcqc",
	Short: "Function catalog snapshots, diffs and call graphs",
	Long: `funcqc stores point-in-time catalogs of every function in a codebase,
compares them across snapshots with impact scoring, and answers
call-graph and source-extraction queries over the stored catalog.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		if verbose {
			cfg.Verbose = true
		}

		level := slog.LevelInfo
		if cfg.Verbose {
			level = slog.LevelDebug
		}
		// stdout is reserved for command output
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.funcqc.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// openStore opens the configured snapshot store, creating the parent
// directory on first use.
func openStore() (*storage.SQLiteStorage, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	opts := []storage.Option{storage.WithLogger(slog.Default())}
	if cfg.VerifyWrites {
		opts = append(opts, storage.WithWriteVerification())
	}
	return storage.NewSQLiteStorage(cfg.DBPath, opts...)
}
