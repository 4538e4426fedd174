package main

import (
	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Manage stored snapshots",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		snapshots, err := store.ListSnapshots(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(snapshots)
	},
}

var snapshotsDeleteCmd = &cobra.Command{
	Use:   "delete <snapshot-id>",
	Short: "Delete a snapshot and everything it owns",
	Long: `Deletes a snapshot; its functions, parameters, metrics, call edges and
file references cascade with it. Deduplicated source content shared with
other snapshots is retained.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		return store.DeleteSnapshot(cmd.Context(), args[0])
	},
}

var snapshotsLabelCmd = &cobra.Command{
	Use:   "label <snapshot-id> <label>",
	Short: "Set a snapshot's label",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		return store.UpdateSnapshotLabel(cmd.Context(), args[0], args[1])
	},
}

func init() {
	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsDeleteCmd)
	snapshotsCmd.AddCommand(snapshotsLabelCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
