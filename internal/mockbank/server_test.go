package mockbank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/moneyfeed/internal/api"
	"github.com/Veraticus/moneyfeed/internal/auth"
	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/feed"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/Veraticus/moneyfeed/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

var testSecret = []byte("test-secret")

type bank struct {
	store      *storage.SQLiteStorage
	seeder     *Seeder
	server     *httptest.Server
	handler    atomic.Value
	alice, bob model.User
	aliceAcct  storage.Account
	bobAcct    storage.Account
}

// serve swaps the handler behind the test server.
func (b *bank) serve(h http.Handler) {
	b.handler.Store(h)
}

func newBank(t *testing.T, opts ...Option) *bank {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	b := &bank{store: store, seeder: NewSeeder(store, nil)}
	b.seeder.cost = bcrypt.MinCost

	b.alice, b.aliceAcct, err = b.seeder.AddUser(ctx, "alice", "wonderland")
	require.NoError(t, err)
	b.bob, b.bobAcct, err = b.seeder.AddUser(ctx, "bob", "builder")
	require.NoError(t, err)

	b.serve(NewServer(store, testSecret, opts...).Handler())
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.handler.Load().(http.Handler).ServeHTTP(w, r)
	}))
	t.Cleanup(b.server.Close)
	return b
}

// pay stores n payments from alice to bob, one minute apart.
func (b *bank) pay(t *testing.T, n int) {
	t.Helper()
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	postings := make([]storage.Posting, n)
	for i := range postings {
		postings[i] = storage.Posting{
			ExternalID:      fmt.Sprintf("tx-%d", i),
			Amount:          decimal.NewFromInt(int64(i + 1)),
			Description:     fmt.Sprintf("payment %d", i),
			DebitAccountID:  b.aliceAcct.ID,
			CreditAccountID: b.bobAcct.ID,
			InitiatorUserID: b.alice.ID,
			CreatedAt:       start.Add(time.Duration(i) * time.Minute),
		}
	}
	_, err := b.store.SavePostings(context.Background(), postings)
	require.NoError(t, err)
}

func (b *bank) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := b.post(t, "/api/auth/login", api.LoginRequest{Username: username, Password: password})
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out api.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.AccessToken
}

func (b *bank) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(b.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func (b *bank) get(t *testing.T, token, path string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestLogin(t *testing.T) {
	b := newBank(t)

	token := b.login(t, "alice", "wonderland")
	claims, err := auth.Verify(token, testSecret, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, b.alice.ID, id)
	assert.False(t, claims.Expiry().IsZero())

	tests := []struct {
		name    string
		body    api.LoginRequest
		status  int
		message string
	}{
		{"wrong password", api.LoginRequest{Username: "alice", Password: "nope"}, http.StatusUnauthorized, "Invalid credentials"},
		{"unknown user", api.LoginRequest{Username: "carol", Password: "x"}, http.StatusUnauthorized, "Invalid credentials"},
		{"missing fields", api.LoginRequest{}, http.StatusBadRequest, "username should not be empty; password should not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := b.post(t, "/api/auth/login", tt.body)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.status, resp.StatusCode)

			var e api.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
			assert.Equal(t, tt.message, e.Text())
		})
	}
}

func TestRequireToken(t *testing.T) {
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var clock atomic.Int64
	clock.Store(issued.Unix())
	b := newBank(t, WithTokenTTL(time.Hour), WithClock(func() time.Time { return time.Unix(clock.Load(), 0) }))
	token := b.login(t, "alice", "wonderland")

	var me api.UserResponse
	assert.Equal(t, http.StatusOK, b.get(t, token, "/api/users/me", &me))
	assert.Equal(t, api.UserResponse{ID: b.alice.ID, Username: "alice"}, me)

	assert.Equal(t, http.StatusUnauthorized, b.get(t, "", "/api/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, b.get(t, token+"x", "/api/users/me", nil))

	forged, err := auth.Sign(auth.NewClaims(1, "alice", issued, 0), []byte("other"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, b.get(t, forged, "/api/users/me", nil))

	clock.Store(issued.Add(2 * time.Hour).Unix())
	assert.Equal(t, http.StatusUnauthorized, b.get(t, token, "/api/users/me", nil))
}

func TestAccounts(t *testing.T) {
	b := newBank(t)
	b.pay(t, 3)
	token := b.login(t, "bob", "builder")

	var resp api.AccountsResponse
	require.Equal(t, http.StatusOK, b.get(t, token, "/api/accounts", &resp))
	require.Len(t, resp.Accounts, 1)
	assert.Equal(t, b.bobAcct.ID, resp.Accounts[0].ID)
	assert.Equal(t, "6.00", resp.Accounts[0].Balance.StringFixed(2))
}

func TestAccountPayments_Offset(t *testing.T) {
	b := newBank(t)
	b.pay(t, 25)
	token := b.login(t, "alice", "wonderland")
	path := fmt.Sprintf("/api/accounts/%d/payments", b.aliceAcct.ID)

	var first api.PaymentsResponse
	require.Equal(t, http.StatusOK, b.get(t, token, path+"?limit=20&offset=0", &first))
	require.Len(t, first.Transactions, 20)
	assert.Equal(t, "payment 24", first.Transactions[0].Description)
	assert.Equal(t, b.aliceAcct.ID, first.Transactions[0].DebitAccountID)
	assert.Equal(t, b.bobAcct.ID, first.Transactions[0].CreditAccountID)
	assert.Equal(t, b.bob.ID, first.Transactions[0].CounterpartUserID)
	assert.Equal(t, "-325.00", first.CurrentBalance.StringFixed(2))

	var second api.PaymentsResponse
	require.Equal(t, http.StatusOK, b.get(t, token, path+"?limit=20&offset=20", &second))
	assert.Len(t, second.Transactions, 5)
}

func TestAccountPayments_OtherUsersAccount(t *testing.T) {
	b := newBank(t)
	token := b.login(t, "alice", "wonderland")

	var e api.ErrorResponse
	status := b.get(t, token, fmt.Sprintf("/api/accounts/%d/payments", b.bobAcct.ID), &e)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Account not found", e.Text())

	assert.Equal(t, http.StatusNotFound, b.get(t, token, "/api/accounts/999/payments", nil))
}

func TestUserFeed_Cursor(t *testing.T) {
	b := newBank(t)
	b.pay(t, 5)
	token := b.login(t, "bob", "builder")

	var page []api.FeedItem
	require.Equal(t, http.StatusOK, b.get(t, token, "/api/accounts/transactions/paginated?limit=3", &page))
	require.Len(t, page, 3)
	assert.Equal(t, "INCOMING", page[0].Type)
	assert.Equal(t, "alice", page[0].OtherUsername)
	assert.Equal(t, b.alice.ID, page[0].OtherUserID)

	var next []api.FeedItem
	path := "/api/accounts/transactions/paginated?limit=3&cursor=" + string(page[2].ID)
	require.Equal(t, http.StatusOK, b.get(t, token, path, &next))
	assert.Len(t, next, 2)
}

func TestPageValidation(t *testing.T) {
	b := newBank(t)
	token := b.login(t, "alice", "wonderland")

	tests := []struct {
		name    string
		query   string
		message string
	}{
		{"limit too large", "limit=500", "limit must be an integer between 1 and 100"},
		{"limit not a number", "limit=abc", "limit must be an integer between 1 and 100"},
		{"negative offset and bad limit", "limit=0&offset=-1", "limit must be an integer between 1 and 100; offset must not be negative"},
		{"cursor with offset", "cursor=4&offset=10", "cursor and offset cannot be combined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e api.ErrorResponse
			status := b.get(t, token, "/api/accounts/transactions/paginated?"+tt.query, &e)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.message, e.Text())
		})
	}

	assert.Equal(t, http.StatusBadRequest, b.get(t, token, "/api/accounts/transactions/paginated?cursor=abc", nil))
}

func TestFaultInjection(t *testing.T) {
	b := newBank(t, WithFaultRate(1))
	token := b.login(t, "alice", "wonderland")

	var e api.ErrorResponse
	assert.Equal(t, http.StatusServiceUnavailable, b.get(t, token, "/api/accounts/transactions/paginated", &e))
	assert.Equal(t, "Service temporarily unavailable", e.Text())

	// Only page endpoints fail.
	assert.Equal(t, http.StatusOK, b.get(t, token, "/api/users/me", nil))
}

func TestHealthAndMetrics(t *testing.T) {
	b := newBank(t)
	b.login(t, "alice", "wonderland")

	resp, err := http.Get(b.server.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(b.server.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `mockbank_http_requests_total{method="POST",route="/api/auth/login",status="200"}`)
	assert.Contains(t, string(body), `mockbank_logins_total{result="accepted"}`)

	for _, path := range []string{"/nowhere", "/api/also/nowhere", "/nowhere/" + strings.Repeat("x", 40)} {
		resp, err = http.Get(b.server.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	resp, err = http.Get(b.server.URL + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `mockbank_http_requests_total{method="GET",route="unmatched",status="404"}`)
	assert.NotContains(t, string(body), "nowhere", "unmatched paths must not become label values")
}

func TestRequestIDIsEchoed(t *testing.T) {
	b := newBank(t)

	req, err := http.NewRequest(http.MethodGet, b.server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(api.RequestIDHeader, "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get(api.RequestIDHeader))
}

func newFeedClient(t *testing.T, b *bank, username, password string) *api.Client {
	t.Helper()
	client, err := api.New(b.server.URL, api.WithRetry(common.RetryOptions{MaxAttempts: 1}))
	require.NoError(t, err)

	token, err := client.Login(context.Background(), username, password)
	require.NoError(t, err)
	return client.WithSession(oauth2.StaticTokenSource(token), nil)
}

func TestEndToEnd_AccountFeedOffset(t *testing.T) {
	b := newBank(t)
	b.pay(t, 25)
	client := newFeedClient(t, b, "alice", "wonderland")

	engine := feed.New(client, feed.WithMode(model.ModeOffset), feed.WithLimit(10))
	first, err := engine.Initialize(model.AccountSubject(b.aliceAcct.ID, "Checking"))
	require.NoError(t, err)

	err = engine.Drain(context.Background(), first, func(out feed.Outcome) {
		require.NoError(t, out.Err)
	})
	require.NoError(t, err)

	snap := engine.Snapshot()
	assert.Len(t, snap.Items, 25)
	assert.False(t, snap.HasMore)
	assert.Equal(t, 3, snap.Pages)
	for _, tx := range snap.Items {
		assert.Equal(t, model.DirectionOutgoing, tx.Direction)
	}
	assert.Equal(t, int64(25), snap.Items[0].Amount.IntPart(), "newest first")
	assert.Equal(t, int64(1), snap.Items[24].Amount.IntPart())
}

func TestEndToEnd_UserFeedCursor(t *testing.T) {
	b := newBank(t)
	b.pay(t, 25)
	client := newFeedClient(t, b, "bob", "builder")

	engine := feed.New(client, feed.WithMode(model.ModeCursor), feed.WithLimit(10))
	first, err := engine.Initialize(model.UserSubject(b.bob.ID, "me"))
	require.NoError(t, err)

	pages := 0
	require.NoError(t, engine.Drain(context.Background(), first, func(feed.Outcome) { pages++ }))

	snap := engine.Snapshot()
	assert.Len(t, snap.Items, 25)
	assert.False(t, snap.HasMore)
	assert.Equal(t, 4, pages, "three full pages and one empty page")
	seen := make(map[string]bool)
	for _, tx := range snap.Items {
		assert.False(t, seen[tx.ID], "duplicate %s", tx.ID)
		seen[tx.ID] = true
		assert.Equal(t, model.DirectionIncoming, tx.Direction)
		assert.Equal(t, "alice", tx.OtherUsername)
	}
}

func TestEndToEnd_FailedPageKeepsItems(t *testing.T) {
	b := newBank(t)
	b.pay(t, 15)
	client := newFeedClient(t, b, "alice", "wonderland")

	engine := feed.New(client, feed.WithMode(model.ModeOffset), feed.WithLimit(10))
	first, err := engine.Initialize(model.AccountSubject(b.aliceAcct.ID, "Checking"))
	require.NoError(t, err)
	require.NoError(t, first.Run(context.Background()).Err)

	b.serve(NewServer(b.store, testSecret, WithFaultRate(1)).Handler())
	out := engine.LoadMore().Run(context.Background())
	require.Error(t, out.Err)
	assert.Equal(t, common.KindBackend, common.Classify(out.Err))

	snap := engine.Snapshot()
	assert.Len(t, snap.Items, 10)
	assert.True(t, snap.HasMore)
	assert.Equal(t, common.KindBackend, snap.ErrorKind)

	b.serve(NewServer(b.store, testSecret).Handler())
	retry := engine.LoadMore()
	require.NotNil(t, retry)
	require.NoError(t, retry.Run(context.Background()).Err)
	assert.Equal(t, 15, engine.Len())
	assert.False(t, engine.CanLoadMore())
	assert.True(t, strings.HasPrefix(engine.Snapshot().Items[10].Description, "payment"))
}
