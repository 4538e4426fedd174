package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/akiramei/funcqc-sub004/internal/importer"
)

var importLabel string

var importCmd = &cobra.Command{
	Use:   "import [payload.json]",
	Short: "Import a scan payload as a new snapshot",
	Long: `Reads a scan payload (snapshot metadata, source files, functions and
call edges) from the given file, or from stdin when no file is given,
and persists it atomically as one snapshot.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open payload: %w", err)
			}
			defer func() { _ = f.Close() }()
			input = f
		}

		payload, err := importer.ReadPayload(input)
		if err != nil {
			return err
		}
		if importLabel != "" {
			payload.Snapshot.Label = importLabel
		}
		if payload.Snapshot.ProjectRoot == "" {
			payload.Snapshot.ProjectRoot = cfg.ProjectRoot
		}
		if payload.Snapshot.ConfigHash == "" {
			payload.Snapshot.ConfigHash = cfg.Hash()
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		result, err := importer.New(store, importer.WithLogger(slog.Default())).Import(cmd.Context(), payload)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	importCmd.Flags().StringVar(&importLabel, "label", "", "label for the new snapshot")
	rootCmd.AddCommand(importCmd)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
