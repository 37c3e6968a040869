package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testToken = "test-token"

func newTestClient(t *testing.T, handler http.Handler) (*Client, *atomic.Int32) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithRetry(common.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond}))
	require.NoError(t, err)

	var unauthorized atomic.Int32
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: testToken})
	return c.WithSession(src, func() { unauthorized.Add(1) }), &unauthorized
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requireBearer(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
	assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New("not a url")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestClient_Login(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, r.Header.Get("Authorization"))
		if req.Username == "alice" && req.Password == "secret" {
			writeJSON(w, http.StatusOK, LoginResponse{AccessToken: "jwt"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	})
	c, unauthorized := newTestClient(t, mux)

	tok, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)

	_, err = c.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
	assert.Contains(t, err.Error(), "Invalid credentials")
	assert.Zero(t, unauthorized.Load(), "a failed login is not a rejected session")
}

func TestClient_FetchPage_AccountOffset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/accounts/7/payments", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "40", r.URL.Query().Get("offset"))
		_, _ = w.Write([]byte(`{
			"transactions": [
				{"id": 101, "amount": 12.5, "description": "rent", "status": "COMPLETED",
				 "debitAccountId": 3, "creditAccountId": 7, "createdAt": "2024-05-01T10:00:00Z"},
				{"id": 102, "amount": "4.20", "description": "coffee", "status": "pending",
				 "debitAccountId": 7, "creditAccountId": 3, "createdAt": "2024-05-02T10:00:00Z"}
			],
			"currentBalance": 100
		}`))
	})
	c, _ := newTestClient(t, mux)

	page, err := c.FetchPage(context.Background(), model.PageRequest{
		Subject: model.AccountSubject(7, "Checking"),
		Mode:    model.ModeOffset,
		Offset:  40,
		Limit:   20,
	})
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	assert.Nil(t, page.NextCursor)
	assert.Equal(t, "100.00", page.Balance)
	assert.Equal(t, "101", page.Items[0].ID)
	assert.Equal(t, model.DirectionIncoming, page.Items[0].Direction)
	assert.Equal(t, "+$12.50", page.Items[0].SignedAmount())
	assert.Equal(t, model.DirectionOutgoing, page.Items[1].Direction)
	assert.Equal(t, model.StatusPending, page.Items[1].Status)
	assert.Equal(t, "account #3", page.Items[1].Counterpart(model.Reference{AccountID: 7}))
	assert.Equal(t, 2024, page.Items[0].CreatedAt.Year())
}

func TestClient_FetchPage_UserCursor(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/accounts/transactions/paginated", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		calls.Add(1)
		switch r.URL.Query().Get("cursor") {
		case "":
			_, _ = w.Write([]byte(`[
				{"id": "t1", "amount": 5, "type": "INCOMING", "otherUserId": 2, "otherUsername": "bob", "status": "COMPLETED"},
				{"id": "t2", "amount": 7, "type": "OUTGOING", "otherUserId": 3, "otherUsername": "carol", "status": "COMPLETED"}
			]`))
		case "t2":
			_, _ = w.Write([]byte(`[]`))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	})
	c, _ := newTestClient(t, mux)

	subject := model.UserSubject(1, "me")
	page, err := c.FetchPage(context.Background(), model.PageRequest{Subject: subject, Mode: model.ModeCursor, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, "t2", *page.NextCursor)
	assert.Equal(t, model.DirectionIncoming, page.Items[0].Direction)
	assert.Equal(t, "bob", page.Items[0].OtherUsername)

	page, err = c.FetchPage(context.Background(), model.PageRequest{Subject: subject, Mode: model.ModeCursor, Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Nil(t, page.NextCursor)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_BackendErrorMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/accounts", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": []string{"limit must be positive", "offset invalid"}})
	})
	c, _ := newTestClient(t, mux)

	_, err := c.ListAccounts(context.Background())
	var backendErr *common.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusBadRequest, backendErr.StatusCode)
	assert.Equal(t, "limit must be positive; offset invalid", backendErr.Message)
	assert.Equal(t, common.KindBackend, common.Classify(err))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/accounts", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "warming up"})
			return
		}
		writeJSON(w, http.StatusOK, AccountsResponse{Accounts: []AccountResponse{{ID: 7, Name: "Checking", Type: "CHECKING"}}})
	})
	c, _ := newTestClient(t, mux)

	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, int64(7), accounts[0].ID)
	assert.Equal(t, "0.00", accounts[0].Balance)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/me", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such user"})
	})
	c, _ := newTestClient(t, mux)

	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, common.ErrBackend)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_UnauthorizedSignsOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/me", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
	})
	c, unauthorized := newTestClient(t, mux)

	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
	assert.ErrorIs(t, err, common.ErrBackend)
	assert.Equal(t, int32(1), unauthorized.Load())
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(srv.URL, WithRetry(common.RetryOptions{MaxAttempts: 1}))
	require.NoError(t, err)
	c = c.WithSession(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: testToken}), nil)

	_, err = c.ListAccounts(context.Background())
	assert.ErrorIs(t, err, common.ErrNetwork)
	assert.Equal(t, common.KindNetwork, common.Classify(err))
}

func TestClient_WithoutSession(t *testing.T) {
	c, err := New("http://localhost:1")
	require.NoError(t, err)

	_, err = c.FetchPage(context.Background(), model.PageRequest{Subject: model.AccountSubject(1, "")})
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) { return nil, common.ErrNotAuthenticated }

func TestClient_TokenSourceFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)
	c = c.WithSession(failingSource{}, nil)

	_, err = c.ListAccounts(context.Background())
	assert.True(t, errors.Is(err, common.ErrNotAuthenticated))
	assert.Zero(t, calls.Load())
}

func TestClient_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/accounts", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithRetry(common.RetryOptions{MaxAttempts: 1}))
	require.NoError(t, err)
	c = c.WithSession(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: testToken}), nil)

	for range 5 {
		_, err = c.ListAccounts(context.Background())
		assert.ErrorIs(t, err, common.ErrBackend)
	}
	_, err = c.ListAccounts(context.Background())
	assert.ErrorIs(t, err, common.ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load())
}

func TestID_UnmarshalJSON(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 42, "b": "abc", "c": null}`), &v))
	assert.Equal(t, ID("42"), v.A)
	assert.Equal(t, ID("abc"), v.B)
	assert.Equal(t, ID(""), v.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a": true}`), &v))
}
