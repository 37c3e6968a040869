package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

type fixture struct {
	alice, bob        model.User
	checking, savings Account
	bobChecking       Account
}

func seedFixture(t *testing.T, store *SQLiteStorage) fixture {
	t.Helper()
	ctx := context.Background()

	var f fixture
	var err error
	f.alice, err = store.CreateUser(ctx, "alice", "hash-a")
	require.NoError(t, err)
	f.bob, err = store.CreateUser(ctx, "bob", "hash-b")
	require.NoError(t, err)

	f.checking, err = store.CreateAccount(ctx, f.alice.ID, "Checking", "CHECKING", "")
	require.NoError(t, err)
	f.savings, err = store.CreateAccount(ctx, f.alice.ID, "Savings", "SAVINGS", "")
	require.NoError(t, err)
	f.bobChecking, err = store.CreateAccount(ctx, f.bob.ID, "Bob Checking", "", "")
	require.NoError(t, err)
	return f
}

func postings(n int, debit, credit int64, start time.Time) []Posting {
	out := make([]Posting, n)
	for i := range out {
		out[i] = Posting{
			ExternalID:      fmt.Sprintf("p-%d-%d-%d", debit, credit, i),
			Amount:          decimal.NewFromInt(int64(i + 1)),
			Description:     fmt.Sprintf("payment %d", i),
			DebitAccountID:  debit,
			CreditAccountID: credit,
			CreatedAt:       start.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	require.NoError(t, store.Migrate(context.Background()))

	var version int
	require.NoError(t, store.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestUsers(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	alice, err := store.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	assert.NotZero(t, alice.ID)

	_, err = store.CreateUser(ctx, "alice", "other")
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	got, hash, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice, got)
	assert.Equal(t, "hash", hash)

	_, _, err = store.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)

	byID, err := store.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = store.CreateUser(ctx, " ", "hash")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestAccounts_ExternalIDIsReused(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	f := seedFixture(t, store)

	first, err := store.CreateAccount(ctx, f.alice.ID, "Imported", "CHECKING", "ofx-123")
	require.NoError(t, err)
	again, err := store.CreateAccount(ctx, f.alice.ID, "Imported again", "CHECKING", "ofx-123")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	got, err := store.GetAccount(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "ofx-123", got.ExternalID)
	assert.Equal(t, f.alice.ID, got.UserID)

	_, err = store.GetAccount(ctx, 9999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAccounts_Balance(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	f := seedFixture(t, store)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.SavePostings(ctx, []Posting{
		{ExternalID: "salary", Amount: decimal.RequireFromString("1000.50"), Description: "salary", CreditAccountID: f.checking.ID, CreatedAt: now},
		{ExternalID: "rent", Amount: decimal.RequireFromString("400.25"), Description: "rent", DebitAccountID: f.checking.ID, CreatedAt: now.Add(time.Hour)},
		{ExternalID: "held", Amount: decimal.NewFromInt(50), Description: "pending", DebitAccountID: f.checking.ID, Status: model.StatusPending, CreatedAt: now.Add(2 * time.Hour)},
	})
	require.NoError(t, err)

	balance, err := store.Balance(ctx, f.checking.ID)
	require.NoError(t, err)
	assert.Equal(t, "600.25", balance.StringFixed(2))

	accounts, err := store.ListAccounts(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Checking", accounts[0].Name)
	assert.Equal(t, "600.25", accounts[0].Balance)
	assert.Equal(t, "0.00", accounts[1].Balance)
}

func TestSavePostings_SkipsDuplicates(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	f := seedFixture(t, store)
	batch := postings(3, 0, f.checking.ID, time.Now())

	n, err := store.SavePostings(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = store.SavePostings(ctx, batch)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSavePostings_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name    string
		posting Posting
	}{
		{"no accounts", Posting{Amount: decimal.NewFromInt(1), Description: "x", CreatedAt: now}},
		{"same account", Posting{Amount: decimal.NewFromInt(1), Description: "x", CreatedAt: now, DebitAccountID: 1, CreditAccountID: 1}},
		{"negative amount", Posting{Amount: decimal.NewFromInt(-1), Description: "x", CreatedAt: now, CreditAccountID: 1}},
		{"no date", Posting{Amount: decimal.NewFromInt(1), Description: "x", CreditAccountID: 1}},
		{"no description", Posting{Amount: decimal.NewFromInt(1), CreatedAt: now, CreditAccountID: 1}},
		{"bad status", Posting{Amount: decimal.NewFromInt(1), Description: "x", CreatedAt: now, CreditAccountID: 1, Status: "LOST"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.SavePostings(ctx, []Posting{tt.posting})
			assert.ErrorIs(t, err, ErrInvalidTransaction)
		})
	}
}

func TestListAccountPayments_Offset(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	f := seedFixture(t, store)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.SavePostings(ctx, postings(25, 0, f.checking.ID, start))
	require.NoError(t, err)

	first, err := store.ListAccountPayments(ctx, f.checking.ID, PageQuery{Limit: 20})
	require.NoError(t, err)
	require.Len(t, first, 20)
	assert.Equal(t, "payment 24", first[0].Description, "newest first")
	assert.Equal(t, f.checking.ID, first[0].CreditAccountID)
	assert.Zero(t, first[0].DebitAccountID)
	assert.Equal(t, model.DirectionUnknown, first[0].Direction)

	second, err := store.ListAccountPayments(ctx, f.checking.ID, PageQuery{Limit: 20, Offset: 20})
	require.NoError(t, err)
	require.Len(t, second, 5)
	assert.Equal(t, "payment 0", second[4].Description)

	empty, err := store.ListAccountPayments(ctx, f.savings.ID, PageQuery{Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListAccountPayments_Cursor(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	f := seedFixture(t, store)

	_, err := store.SavePostings(ctx, postings(5, f.checking.ID, f.bobChecking.ID, time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	var seen []string
	cursor := ""
	for {
		page, err := store.ListAccountPayments(ctx, f.checking.ID, PageQuery{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, tx := range page {
			seen = append(seen, tx.ID)
			assert.Equal(t, f.bob.ID, tx.OtherUserID)
			assert.Equal(t, "bob", tx.OtherUsername)
		}
		cursor = page[len(page)-1].ID
	}
	assert.Len(t, seen, 5)

	_, err = store.ListAccountPayments(ctx, f.checking.ID, PageQuery{Limit: 2, Cursor: "abc"})
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestListUserFeed(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	f := seedFixture(t, store)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.SavePostings(ctx, []Posting{
		{ExternalID: "in", Amount: decimal.NewFromInt(10), Description: "from bob", DebitAccountID: f.bobChecking.ID, CreditAccountID: f.checking.ID, InitiatorUserID: f.bob.ID, CreatedAt: start},
		{ExternalID: "out", Amount: decimal.NewFromInt(4), Description: "to bob", DebitAccountID: f.savings.ID, CreditAccountID: f.bobChecking.ID, InitiatorUserID: f.alice.ID, CreatedAt: start.Add(time.Hour)},
		{ExternalID: "bob-only", Amount: decimal.NewFromInt(1), Description: "bob deposit", CreditAccountID: f.bobChecking.ID, CreatedAt: start.Add(2 * time.Hour)},
	})
	require.NoError(t, err)

	feed, err := store.ListUserFeed(ctx, f.alice.ID, PageQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, feed, 2)

	assert.Equal(t, "to bob", feed[0].Description)
	assert.Equal(t, model.DirectionOutgoing, feed[0].Direction)
	assert.Equal(t, "bob", feed[0].OtherUsername)
	assert.Equal(t, f.bob.ID, feed[0].OtherUserID)

	assert.Equal(t, "from bob", feed[1].Description)
	assert.Equal(t, model.DirectionIncoming, feed[1].Direction)
	assert.True(t, start.Equal(feed[1].CreatedAt), "got %s", feed[1].CreatedAt)

	next, err := store.ListUserFeed(ctx, f.alice.ID, PageQuery{Limit: 10, Cursor: feed[0].ID})
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, feed[1].ID, next[0].ID)
}

func TestListPage_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	for _, q := range []PageQuery{
		{Limit: 0},
		{Limit: MaxPageLimit + 1},
		{Limit: 10, Offset: -1},
		{Limit: 10, Offset: 5, Cursor: "3"},
	} {
		_, err := store.ListUserFeed(ctx, 1, q)
		assert.ErrorIs(t, err, ErrInvalidPage, "%+v", q)
	}
}
