package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/moneyfeed/internal/certs"
	"github.com/Veraticus/moneyfeed/internal/cli"
	"github.com/Veraticus/moneyfeed/internal/mockbank"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/Veraticus/moneyfeed/internal/ofx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bank API",
		Long: `Serve the bank API until interrupted. Prometheus metrics are exposed at /metrics.

--latency and --fault-rate make the paginated endpoints slow or flaky so the
feed's loading and retry states can be exercised.

--tls serves HTTPS with a self-signed localhost certificate kept in
mockbank.cert_dir. Point the client's api.ca_file at the printed certificate.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default from mockbank.addr)")
	cmd.Flags().Duration("latency", 0, "delay added to every API response")
	cmd.Flags().Float64("fault-rate", 0, "fraction of page requests answered with a 503 (0-1)")
	cmd.Flags().Duration("token-ttl", mockbank.DefaultTokenTTL, "lifetime of issued access tokens")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate")
	_ = viper.BindPFlag("mockbank.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("mockbank.tls", cmd.Flags().Lookup("tls"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	latency, _ := cmd.Flags().GetDuration("latency")
	faultRate, _ := cmd.Flags().GetFloat64("fault-rate")
	ttl, _ := cmd.Flags().GetDuration("token-ttl")
	if faultRate < 0 || faultRate > 1 {
		return fmt.Errorf("--fault-rate must be between 0 and 1, got %v", faultRate)
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	opts := []mockbank.Option{
		mockbank.WithLatency(latency),
		mockbank.WithFaultRate(faultRate),
		mockbank.WithTokenTTL(ttl),
	}
	if viper.GetBool("mockbank.tls") {
		certStore := certs.NewStore(settings.Mockbank.CertDir)
		cert, err := certStore.Certificate()
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		slog.Info("Serving HTTPS", "ca_file", certStore.CertFile())
		opts = append(opts, mockbank.WithTLS(cert))
	}

	srv := mockbank.NewServer(store, []byte(settings.Mockbank.Secret), opts...)

	slog.Info("Starting mockbank",
		"db", settings.Mockbank.DBPath,
		"latency", latency,
		"fault_rate", faultRate)
	return srv.ListenAndServe(ctx, viper.GetString("mockbank.addr"))
}

func addUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user with an empty checking account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")

			prompter := cli.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			username, password, err := prompter.Credentials(ctx, username, password)
			if err != nil {
				return err
			}

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			user, acct, err := mockbank.NewSeeder(store, nil).AddUser(ctx, username, password)
			if err != nil {
				return fmt.Errorf("failed to add user: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(),
				cli.FormatSuccess(fmt.Sprintf("Created %s (user #%d) with account #%d", user.Username, user.ID, acct.ID)))
			return nil
		},
	}

	cmd.Flags().StringP("username", "u", "", "username")
	cmd.Flags().StringP("password", "p", "", "password (prompted when omitted)")
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed [ofx files...]",
		Short: "Fill the bank with demo data",
		Long: `Seed the bank. OFX/QFX statements are imported into accounts of --user, and
--transfers random payments are created between all users.

Examples:
  # Import a bank export for alice
  mockbank seed --user alice ~/Downloads/checking.qfx

  # Create 200 random transfers between existing users
  mockbank seed --transfers 200`,
		RunE: runSeed,
	}

	cmd.Flags().String("user", "", "user that owns imported statements")
	cmd.Flags().Int("transfers", 0, "number of random transfers to create")
	cmd.Flags().Int64("seed", time.Now().UnixNano(), "random seed for transfers")

	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	username, _ := cmd.Flags().GetString("user")
	transfers, _ := cmd.Flags().GetInt("transfers")
	seed, _ := cmd.Flags().GetInt64("seed")

	if len(args) > 0 && username == "" {
		return fmt.Errorf("--user is required when importing statements")
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	seeder := mockbank.NewSeeder(store, newRand(seed))
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		user, _, err := store.GetUserByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("unknown user %s: %w", username, err)
		}

		files, err := expandFiles(args)
		if err != nil {
			return err
		}

		parser := ofx.NewParser()
		for _, path := range files {
			n, err := importFile(cmd, parser, seeder, user, path)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s: %d new transactions", filepath.Base(path), n)))
		}
	}

	if transfers > 0 {
		users, err := store.ListUsers(ctx)
		if err != nil {
			return err
		}
		n, err := seeder.Transfers(ctx, transfers, users)
		if err != nil {
			return fmt.Errorf("failed to create transfers: %w", err)
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Created %d transfers between %d users", n, len(users))))
	}
	return nil
}

func importFile(cmd *cobra.Command, parser *ofx.Parser, seeder *mockbank.Seeder, user model.User, path string) (int, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	statements, err := parser.ParseFile(cmd.Context(), f)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return seeder.ImportStatements(cmd.Context(), user.ID, statements)
}

// expandFiles resolves glob patterns, keeping literal paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err != nil {
				slog.Warn("No files found matching pattern", "pattern", pattern)
				continue
			}
			matches = []string{pattern}
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no statement files found")
	}
	return files, nil
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed>>1)|1)) // #nosec G404
}
