package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Veraticus/moneyfeed/internal/api"
	"github.com/Veraticus/moneyfeed/internal/auth"
	"github.com/Veraticus/moneyfeed/internal/certs"
	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/spf13/cobra"
)

// app is the wiring shared by the commands: an unauthenticated client for
// login, the persisted session, and a client that signs requests with it.
type app struct {
	client  *api.Client
	session *auth.Session
	authed  *api.Client
}

func newApp() (*app, error) {
	opts := []api.Option{api.WithTimeout(settings.API.Timeout)}
	if settings.API.CAFile != "" {
		pool, err := certs.LoadPool(settings.API.CAFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, api.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
			},
		}))
	}

	client, err := api.New(settings.API.BaseURL, opts...)
	if err != nil {
		return nil, err
	}

	session := auth.NewSession(settings.Auth.TokenFile, client)
	if err := session.Load(); err != nil {
		return nil, err
	}

	return &app{
		client:  client,
		session: session,
		authed: client.WithSession(session, func() {
			slog.Warn("Backend rejected the session token, signing out")
			session.Expire()
		}),
	}, nil
}

// user returns the signed-in user or a hint to log in.
func (a *app) user() (model.User, error) {
	user, ok := a.session.CurrentUser()
	if !ok {
		return model.User{}, common.NewUserError("not signed in, run `moneyfeed login` first", common.ErrNotAuthenticated)
	}
	return user, nil
}

// addSubjectFlags registers the flags that pick which feed to show.
func addSubjectFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("account", 0, "show the feed of this account ID")
	cmd.Flags().Bool("me", false, "show the signed-in user's feed (default)")
	cmd.Flags().String("mode", "", "override the pagination mode (cursor, offset)")
	cmd.Flags().Int("limit", 0, "page size (default from feed.limit)")
	cmd.MarkFlagsMutuallyExclusive("account", "me")
}

// subjectFromFlags resolves the feed subject. Without --account the user's
// own feed is used.
func subjectFromFlags(cmd *cobra.Command, user model.User) (model.Subject, bool) {
	if id, _ := cmd.Flags().GetInt64("account"); id != 0 {
		return model.AccountSubject(id, fmt.Sprintf("Account #%d", id)), true
	}
	me, _ := cmd.Flags().GetBool("me")
	return model.UserSubject(user.ID, "All activity"), me
}

// pagingFromFlags returns the page size and the mode for subject.
func pagingFromFlags(cmd *cobra.Command, kind model.SubjectKind) (model.Mode, int, error) {
	mode := settings.Feed.ModeFor(kind)
	if raw, _ := cmd.Flags().GetString("mode"); raw != "" {
		parsed, err := model.ParseMode(raw)
		if err != nil {
			return "", 0, fmt.Errorf("%w: --mode: %w", common.ErrInvalidConfig, err)
		}
		mode = parsed
	}

	limit := settings.Feed.Limit
	if l, _ := cmd.Flags().GetInt("limit"); l != 0 {
		if l < 0 || l > 100 {
			return "", 0, fmt.Errorf("%w: --limit must be between 1 and 100", common.ErrInvalidConfig)
		}
		limit = l
	}
	return mode, limit, nil
}

// friendly unwraps a user-facing message when there is one.
func friendly(err error) error {
	var userErr *common.UserError
	if errors.As(err, &userErr) {
		return errors.New(userErr.UserMessage)
	}
	return err
}
