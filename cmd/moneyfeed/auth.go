package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/moneyfeed/internal/cli"
	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/spf13/cobra"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the bank backend",
		Long: `Sign in with a username and password. The access token is stored in
auth.token_file and reused until it expires.

Missing credentials are prompted for.`,
		RunE: runLogin,
	}

	cmd.Flags().StringP("username", "u", "", "username")
	cmd.Flags().StringP("password", "p", "", "password (prompted when omitted)")

	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp()
	if err != nil {
		return err
	}

	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	prompter := cli.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	username, password, err = prompter.Credentials(ctx, username, password)
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}

	if err := a.session.Login(ctx, username, password); err != nil {
		var backendErr *common.BackendError
		if errors.As(err, &backendErr) && backendErr.Message != "" {
			return errors.New(cli.FormatError(backendErr.Message))
		}
		return fmt.Errorf("login failed: %w", err)
	}

	user, _ := a.session.CurrentUser()
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Signed in as "+user.Username))
	return nil
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.session.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Signed out"))
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user as the backend sees it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if _, err := a.user(); err != nil {
				return friendly(err)
			}

			user, err := a.authed.Me(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch profile: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (user #%d)\n", user.Username, user.ID)
			return nil
		},
	}
}

func accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List your accounts and balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if _, err := a.user(); err != nil {
				return friendly(err)
			}

			accounts, err := a.authed.ListAccounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}
			if len(accounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("No accounts"))
				return nil
			}
			return cli.WriteAccounts(cmd.OutOrStdout(), accounts)
		},
	}
}
