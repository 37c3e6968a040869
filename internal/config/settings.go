package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings is the validated configuration shared by the commands.
type Settings struct {
	API      APISettings
	Auth     AuthSettings
	Logging  LoggingSettings
	Mockbank MockbankSettings
	Feed     FeedSettings
}

// APISettings configures the backend client.
type APISettings struct {
	BaseURL string
	CAFile  string
	Timeout time.Duration
}

// AuthSettings configures the stored session.
type AuthSettings struct {
	TokenFile string
}

// FeedSettings configures the Pagination Engine and the scroll trigger.
type FeedSettings struct {
	AccountMode     model.Mode
	UserMode        model.Mode
	Limit           int
	ScrollThreshold int
}

// LoggingSettings configures slog.
type LoggingSettings struct {
	Level  string
	Format string
	File   string
}

// MockbankSettings configures the development backend.
type MockbankSettings struct {
	Addr    string
	DBPath  string
	Secret  string
	CertDir string
	TLS     bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8089")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("auth.token_file", filepath.Join(DataDir(), "session.json"))
	v.SetDefault("feed.limit", model.DefaultPageLimit)
	v.SetDefault("feed.account_mode", string(model.ModeOffset))
	v.SetDefault("feed.user_mode", string(model.ModeCursor))
	v.SetDefault("feed.scroll_threshold", 5)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", filepath.Join(DataDir(), "moneyfeed.log"))
	v.SetDefault("mockbank.addr", ":8089")
	v.SetDefault("mockbank.db_path", filepath.Join(DataDir(), "mockbank.db"))
	v.SetDefault("mockbank.secret", "moneyfeed-dev-secret")
	v.SetDefault("mockbank.tls", false)
	v.SetDefault("mockbank.cert_dir", filepath.Join(DataDir(), "certs"))
}

// LoadDotEnv loads a .env file from the working directory if one exists.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load reads and validates settings from v.
func Load(v *viper.Viper) (*Settings, error) {
	accountMode, err := model.ParseMode(v.GetString("feed.account_mode"))
	if err != nil {
		return nil, fmt.Errorf("%w: feed.account_mode: %w", common.ErrInvalidConfig, err)
	}
	userMode, err := model.ParseMode(v.GetString("feed.user_mode"))
	if err != nil {
		return nil, fmt.Errorf("%w: feed.user_mode: %w", common.ErrInvalidConfig, err)
	}

	s := &Settings{
		API: APISettings{
			BaseURL: v.GetString("api.base_url"),
			CAFile:  ExpandPath(v.GetString("api.ca_file")),
			Timeout: v.GetDuration("api.timeout"),
		},
		Auth: AuthSettings{
			TokenFile: ExpandPath(v.GetString("auth.token_file")),
		},
		Feed: FeedSettings{
			Limit:           v.GetInt("feed.limit"),
			AccountMode:     accountMode,
			UserMode:        userMode,
			ScrollThreshold: v.GetInt("feed.scroll_threshold"),
		},
		Logging: LoggingSettings{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
			File:   ExpandPath(v.GetString("logging.file")),
		},
		Mockbank: MockbankSettings{
			Addr:    v.GetString("mockbank.addr"),
			DBPath:  ExpandPath(v.GetString("mockbank.db_path")),
			Secret:  v.GetString("mockbank.secret"),
			CertDir: ExpandPath(v.GetString("mockbank.cert_dir")),
			TLS:     v.GetBool("mockbank.tls"),
		},
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings for values the commands cannot work with.
func (s *Settings) Validate() error {
	u, err := url.Parse(s.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api.base_url must be an absolute URL, got %q", common.ErrInvalidConfig, s.API.BaseURL)
	}
	if s.API.Timeout <= 0 {
		return fmt.Errorf("%w: api.timeout must be positive", common.ErrInvalidConfig)
	}
	if s.Feed.Limit <= 0 || s.Feed.Limit > 100 {
		return fmt.Errorf("%w: feed.limit must be between 1 and 100, got %d", common.ErrInvalidConfig, s.Feed.Limit)
	}
	if s.Feed.ScrollThreshold < 0 {
		return fmt.Errorf("%w: feed.scroll_threshold must not be negative", common.ErrInvalidConfig)
	}
	if s.Auth.TokenFile == "" {
		return fmt.Errorf("%w: auth.token_file", common.ErrMissingConfig)
	}
	return nil
}

// ModeFor returns the configured pagination mode for a subject kind.
func (f FeedSettings) ModeFor(kind model.SubjectKind) model.Mode {
	if kind == model.SubjectAccount {
		return f.AccountMode
	}
	return f.UserMode
}
