// Package auth keeps the signed-in session: the bearer token, who it belongs
// to, and the file it is persisted in between runs.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/Veraticus/moneyfeed/internal/service"
	"golang.org/x/oauth2"
)

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*oauth2.Token, error)
}

var (
	_ service.Session    = (*Session)(nil)
	_ oauth2.TokenSource = (*Session)(nil)
)

// Session is the signed-in user's bearer token.
type Session struct {
	auth      Authenticator
	token     *oauth2.Token
	tokenFile string
	user      model.User
	mu        sync.RWMutex
}

// NewSession creates a session persisted at tokenFile. Call Load to restore a previous login.
func NewSession(tokenFile string, auth Authenticator) *Session {
	return &Session{tokenFile: tokenFile, auth: auth}
}

// Load restores the session from the token file. A missing file is not an error.
func (s *Session) Load() error {
	token, err := LoadToken(s.tokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	user, err := userFromToken(token.AccessToken)
	if err != nil {
		slog.Warn("Discarding unreadable session token", "file", s.tokenFile, "error", err)
		return s.Logout()
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	if !token.Valid() {
		slog.Info("Stored session has expired", "user", user.Username)
	}
	return nil
}

// Login authenticates and persists the new token.
func (s *Session) Login(ctx context.Context, username, password string) error {
	if s.auth == nil {
		return fmt.Errorf("%w: no authenticator configured", common.ErrMissingConfig)
	}

	token, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}

	claims, err := ParseClaims(token.AccessToken)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrBackend, err)
	}
	user, err := userFromClaims(claims)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrBackend, err)
	}
	token.Expiry = claims.Expiry()

	if err := saveToken(s.tokenFile, token); err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	slog.Info("Signed in", "user", user.Username, "user_id", user.ID)
	return nil
}

// Logout forgets the token and removes the token file.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.token = nil
	s.user = model.User{}
	s.mu.Unlock()

	if err := os.Remove(s.tokenFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Expire is called when the backend rejects the token.
func (s *Session) Expire() {
	if err := s.Logout(); err != nil {
		slog.Warn("Failed to clear rejected session", "error", err)
	}
}

// IsAuthenticated reports whether a valid token is held.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.Valid()
}

// CurrentUser returns the signed-in user.
func (s *Session) CurrentUser() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.token.Valid() {
		return model.User{}, false
	}
	return s.user, true
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.token.Valid() {
		return nil, common.ErrNotAuthenticated
	}
	return s.token, nil
}

func userFromToken(accessToken string) (model.User, error) {
	claims, err := ParseClaims(accessToken)
	if err != nil {
		return model.User{}, err
	}
	return userFromClaims(claims)
}

func userFromClaims(claims Claims) (model.User, error) {
	id, err := claims.UserID()
	if err != nil {
		return model.User{}, err
	}
	return model.User{ID: id, Username: claims.Username}, nil
}

// LoadToken loads a token from file.
func LoadToken(tokenFile string) (*oauth2.Token, error) {
	f, err := os.Open(tokenFile) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}

// saveToken saves a token to file.
func saveToken(path string, token *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	return nil
}
