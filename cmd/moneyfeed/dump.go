package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Veraticus/moneyfeed/internal/cli"
	"github.com/Veraticus/moneyfeed/internal/feed"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/Veraticus/moneyfeed/internal/service"
	"github.com/spf13/cobra"
)

func dumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Fetch every page of a feed and print it",
		Long: `Page through a whole feed the same way the interactive view does and
print the accumulated transactions. Progress is reported on stderr.`,
		RunE: runDump,
	}

	addSubjectFlags(cmd)
	cmd.Flags().StringP("format", "f", "table", "output format (table, json)")
	cmd.Flags().Bool("quiet", false, "do not show progress")

	return cmd
}

func runDump(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	user, err := a.user()
	if err != nil {
		return friendly(err)
	}

	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}

	subject, _ := subjectFromFlags(cmd, user)
	mode, limit, err := pagingFromFlags(cmd, subject.Kind)
	if err != nil {
		return err
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	var progress io.Writer = cmd.ErrOrStderr()
	if quiet {
		progress = io.Discard
	}

	snap, err := dumpFeed(cmd.Context(), a.authed, a.session, subject, mode, limit, progress)
	if err != nil {
		return friendly(err)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Items)
	}
	if len(snap.Items) == 0 {
		fmt.Fprintln(out, cli.FormatWarning("No transactions yet"))
		return nil
	}
	return cli.WriteTransactions(out, snap.Items, subject.Reference())
}

// dumpFeed drains subject's feed, reporting each page to progress.
func dumpFeed(ctx context.Context, fetcher service.PageFetcher, gate service.Gate, subject model.Subject,
	mode model.Mode, limit int, progress io.Writer) (feed.Snapshot, error) {
	engine := feed.New(fetcher,
		feed.WithMode(mode),
		feed.WithLimit(limit),
		feed.WithGate(gate))
	defer engine.Close()

	first, err := engine.Initialize(subject)
	if err != nil {
		return feed.Snapshot{}, err
	}

	bar := cli.NewPageProgress(progress, "Fetching "+subject.String())
	err = engine.Drain(ctx, first, func(out feed.Outcome) {
		if out.Err == nil {
			bar.Page(out.Appended)
		}
	})
	bar.Finish()
	if err != nil {
		return engine.Snapshot(), fmt.Errorf("stopped after %d pages: %w", bar.Pages(), err)
	}
	return engine.Snapshot(), nil
}
