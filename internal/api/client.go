// Package api is the Page-Fetch Client: an authenticated REST client for the
// moneyfeed backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
)

// RequestIDHeader carries a per-request id that the backend echoes in its logs.
const RequestIDHeader = "X-Request-ID"

// Client talks to the backend. A Client without a token source can only log in.
type Client struct {
	baseURL        *url.URL
	plain          *http.Client
	authed         *http.Client
	cb             *gobreaker.CircuitBreaker
	onUnauthorized func()
	retry          common.RetryOptions
	timeout        time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.plain = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry sets how transient failures are retried.
func WithRetry(opts common.RetryOptions) Option {
	return func(c *Client) {
		c.retry = opts
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", common.ErrInvalidConfig, baseURL)
	}

	c := &Client{
		baseURL: u,
		timeout: 10 * time.Second,
		retry: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
			Jitter:       0.2,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.plain == nil {
		c.plain = &http.Client{}
	}
	if c.plain.Timeout == 0 {
		c.plain.Timeout = c.timeout
	}

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        u.Host,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Client-side errors mean the backend is up.
			var backendErr *common.BackendError
			if errors.As(err, &backendErr) {
				return backendErr.StatusCode < 500
			}
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, common.ErrNotAuthenticated)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("CircuitBreaker state changed", "name", name, "from", from, "to", to)
		},
	})

	return c, nil
}

// WithSession returns a copy of c that authenticates with tokens from src.
// onUnauthorized runs whenever the backend rejects the token.
func (c *Client) WithSession(src oauth2.TokenSource, onUnauthorized func()) *Client {
	authed := *c
	authed.authed = &http.Client{
		Timeout: c.plain.Timeout,
		Transport: &oauth2.Transport{
			Source: src,
			Base:   c.plain.Transport,
		},
	}
	authed.onUnauthorized = onUnauthorized
	return &authed
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	var resp LoginResponse
	body := LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, c.plain, http.MethodPost, "/api/auth/login", nil, body, &resp); err != nil {
		var backendErr *common.BackendError
		if errors.As(err, &backendErr) && backendErr.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", common.ErrInvalidCredential, backendErr.Message)
		}
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: login response carried no token", common.ErrBackend)
	}

	return &oauth2.Token{AccessToken: resp.AccessToken, TokenType: "Bearer"}, nil
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var resp UserResponse
	if err := c.authedDo(ctx, http.MethodGet, "/api/users/me", nil, &resp); err != nil {
		return model.User{}, err
	}
	return model.User{ID: resp.ID, Username: resp.Username}, nil
}

// ListAccounts returns the accounts of the signed-in user.
func (c *Client) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var resp AccountsResponse
	if err := c.authedDo(ctx, http.MethodGet, "/api/accounts", nil, &resp); err != nil {
		return nil, err
	}

	accounts := make([]model.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		accounts = append(accounts, a.Account())
	}
	return accounts, nil
}

func (c *Client) authedDo(ctx context.Context, method, path string, query url.Values, out any) error {
	if c.authed == nil {
		return common.ErrNotAuthenticated
	}
	return c.do(ctx, c.authed, method, path, query, nil, out)
}

// do sends one request through the circuit breaker, retrying transient failures.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	target := c.baseURL.JoinPath(path)
	target.RawQuery = query.Encode()

	return common.WithRetry(ctx, func() error {
		_, err := c.cb.Execute(func() (interface{}, error) {
			return nil, c.send(ctx, hc, method, target.String(), payload, out)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s", common.ErrCircuitOpen, c.baseURL.Host)
		}
		return err
	}, c.retry)
}

func (c *Client) send(ctx context.Context, hc *http.Client, method, target string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotAuthenticated):
			return common.ErrNotAuthenticated
		case ctx.Err() != nil:
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	slog.Debug("Backend request",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.backendError(resp, hc == c.authed)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", common.ErrBackend, err)
	}
	return nil
}

func (c *Client) backendError(resp *http.Response, withToken bool) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	backendErr := &common.BackendError{StatusCode: resp.StatusCode}
	var parsed ErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		backendErr.Message = parsed.Text()
	} else {
		backendErr.Message = strings.TrimSpace(string(body))
	}

	if resp.StatusCode == http.StatusUnauthorized && withToken {
		slog.Info("Backend rejected the session token, signing out")
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return fmt.Errorf("%w: %w", common.ErrNotAuthenticated, backendErr)
	}
	return backendErr
}

func pageQuery(limit int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return q
}
