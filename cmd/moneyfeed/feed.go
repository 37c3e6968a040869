package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/Veraticus/moneyfeed/internal/tui"
	"github.com/Veraticus/moneyfeed/internal/tui/themes"
	"github.com/spf13/cobra"
)

func feedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Browse transactions interactively",
		Long: `Open the transaction feed. Scroll near the bottom to load the next page,
or press m to load it by hand. Tab switches between your own feed and each account.

Logs go to logging.file while the feed owns the terminal.`,
		RunE: runFeed,
	}

	addSubjectFlags(cmd)
	cmd.Flags().String("theme", "default", "color theme ("+strings.Join(themes.Names(), ", ")+")")
	cmd.Flags().Int("threshold", 0, "rows from the bottom that trigger the next page (default from feed.scroll_threshold)")
	cmd.Flags().Bool("no-mouse", false, "disable mouse wheel scrolling")

	return cmd
}

func runFeed(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	user, err := a.user()
	if err != nil {
		return friendly(err)
	}

	subject, explicit := subjectFromFlags(cmd, user)
	mode, limit, err := pagingFromFlags(cmd, subject.Kind)
	if err != nil {
		return err
	}

	accountMode, userMode := settings.Feed.AccountMode, settings.Feed.UserMode
	if subject.Kind == model.SubjectAccount {
		accountMode = mode
	} else {
		userMode = mode
	}

	threshold := settings.Feed.ScrollThreshold
	if t, _ := cmd.Flags().GetInt("threshold"); t > 0 {
		threshold = t
	}
	themeName, _ := cmd.Flags().GetString("theme")
	noMouse, _ := cmd.Flags().GetBool("no-mouse")

	level, err := common.ParseLevel(settings.Logging.Level)
	if err != nil {
		return err
	}
	closeLog, err := common.RedirectToFile(settings.Logging.File, level, settings.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to redirect logs: %w", err)
	}
	defer func() { _ = closeLog() }()

	slog.Info("Opening feed", "user", user.Username, "subject", subject.Key(), "mode", mode, "limit", limit)

	opts := []tui.Option{
		tui.WithFetcher(a.authed),
		tui.WithAccounts(a.authed),
		tui.WithGate(a.session),
		tui.WithUser(user),
		tui.WithModes(accountMode, userMode),
		tui.WithPaging(limit, threshold),
		tui.WithTheme(themes.GetTheme(themeName)),
		tui.WithMouse(!noMouse),
	}
	if explicit {
		opts = append(opts, tui.WithInitialSubject(subject))
	}

	return tui.Run(cmd.Context(), opts...)
}
