package tui

import (
	"context"
	"time"

	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/Veraticus/moneyfeed/internal/service"
	"github.com/Veraticus/moneyfeed/internal/tui/themes"
)

// FrameInterval is the delay between a scroll and its proximity check.
const FrameInterval = 16 * time.Millisecond

// Config holds TUI configuration.
type Config struct {
	Context        context.Context
	Theme          themes.Theme
	Fetcher        service.PageFetcher
	Accounts       service.AccountLister
	Gate           service.Gate
	Initial        *model.Subject
	User           model.User
	AccountMode    model.Mode
	UserMode       model.Mode
	Limit          int
	Threshold      int
	Width          int
	Height         int
	RequestTimeout time.Duration
	MouseSupport   bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Context:        context.Background(),
		Theme:          themes.Default,
		AccountMode:    model.ModeOffset,
		UserMode:       model.ModeCursor,
		Limit:          model.DefaultPageLimit,
		Threshold:      5,
		Width:          80,
		Height:         24,
		RequestTimeout: 15 * time.Second,
		MouseSupport:   true,
	}
}

// WithFetcher sets the page source.
func WithFetcher(f service.PageFetcher) Option {
	return func(c *Config) {
		c.Fetcher = f
	}
}

// WithAccounts sets where the subject list comes from.
func WithAccounts(a service.AccountLister) Option {
	return func(c *Config) {
		c.Accounts = a
	}
}

// WithGate gates feed initialization on a session.
func WithGate(g service.Gate) Option {
	return func(c *Config) {
		c.Gate = g
	}
}

// WithUser sets the signed-in user, whose feed is always offered.
func WithUser(u model.User) Option {
	return func(c *Config) {
		c.User = u
	}
}

// WithInitialSubject selects the feed shown first.
func WithInitialSubject(s model.Subject) Option {
	return func(c *Config) {
		c.Initial = &s
	}
}

// WithModes sets the pagination mode of account and user feeds.
func WithModes(account, user model.Mode) Option {
	return func(c *Config) {
		c.AccountMode = account
		c.UserMode = user
	}
}

// WithPaging sets the page size and the scroll threshold in rows.
func WithPaging(limit, threshold int) Option {
	return func(c *Config) {
		c.Limit = limit
		c.Threshold = threshold
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithContext sets the parent context of page requests.
func WithContext(ctx context.Context) Option {
	return func(c *Config) {
		c.Context = ctx
	}
}

// WithMouse toggles mouse wheel support.
func WithMouse(enabled bool) Option {
	return func(c *Config) {
		c.MouseSupport = enabled
	}
}

func (c Config) modeFor(kind model.SubjectKind) model.Mode {
	if kind == model.SubjectAccount {
		return c.AccountMode
	}
	return c.UserMode
}
