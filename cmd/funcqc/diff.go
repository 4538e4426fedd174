package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/akiramei/funcqc-sub004/internal/diff"
)

var diffIncludeUnchanged bool

var diffCmd = &cobra.Command{
	Use:   "diff <from-snapshot> <to-snapshot>",
	Short: "Compare two snapshots",
	Long: `Compares two snapshots' function catalogs. Functions are matched by
semantic id; matched functions whose content id differs are reported as
modified with impact-scored field changes.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		engine := diff.NewEngine(store, diff.WithLogger(slog.Default()))
		result, err := engine.DiffSnapshots(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if !diffIncludeUnchanged {
			result.Unchanged = nil
		}
		return printJSON(result)
	},
}

func init() {
	diffCmd.Flags().BoolVar(&diffIncludeUnchanged, "unchanged", false, "include unchanged functions in the output")
	rootCmd.AddCommand(diffCmd)
}
