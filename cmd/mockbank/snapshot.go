package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Veraticus/moneyfeed/internal/cli"
	"github.com/Veraticus/moneyfeed/internal/storage"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and restore copies of the bank database",
		Long: `Save the seeded bank so it can be reset after experiments.

Snapshots are kept in a "snapshots" directory next to the database.
Stop the server before restoring.`,
	}
	cmd.AddCommand(snapshotSaveCmd(), snapshotListCmd(), snapshotRestoreCmd(), snapshotDeleteCmd())
	return cmd
}

func openSnapshots() (*storage.Snapshots, error) {
	return storage.NewSnapshots(storage.DefaultSnapshotDir(settings.Mockbank.DBPath))
}

func snapshotSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [name]",
		Short: "Save the database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			description, _ := cmd.Flags().GetString("description")

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			snaps, err := openSnapshots()
			if err != nil {
				return err
			}
			info, err := snaps.Save(ctx, store, name, description)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"Saved %s (%d users, %d transactions)", info.Name, info.Users, info.Transactions)))
			return nil
		},
	}
	cmd.Flags().StringP("description", "d", "", "note stored with the snapshot")
	return cmd
}

func snapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snaps, err := openSnapshots()
			if err != nil {
				return err
			}
			list, err := snaps.List()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No snapshots"))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tCREATED\tSIZE\tUSERS\tACCOUNTS\tTRANSACTIONS\tDESCRIPTION")
			for _, s := range list {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					s.Name, humanize.Time(s.CreatedAt), humanize.Bytes(uint64(max(s.Size, 0))),
					s.Users, s.Accounts, humanize.Comma(int64(s.Transactions)), s.Description)
			}
			return w.Flush()
		},
	}
}

func snapshotRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <name>",
		Short: "Replace the database with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := openSnapshots()
			if err != nil {
				return err
			}
			info, err := snaps.Restore(args[0], settings.Mockbank.DBPath)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"Restored %s from %s", info.Name, info.CreatedAt.Format(time.DateTime))))
			return nil
		},
	}
}

func snapshotDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := openSnapshots()
			if err != nil {
				return err
			}
			if err := snaps.Delete(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+args[0]))
			return nil
		},
	}
}
