package mockbank

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/Veraticus/moneyfeed/internal/ofx"
	"github.com/Veraticus/moneyfeed/internal/storage"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Seeder fills the development database.
type Seeder struct {
	store *storage.SQLiteStorage
	rng   *rand.Rand
	now   func() time.Time
	cost  int
}

// NewSeeder creates a seeder. A nil rng uses a fixed seed so runs are repeatable.
func NewSeeder(store *storage.SQLiteStorage, rng *rand.Rand) *Seeder {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	return &Seeder{store: store, rng: rng, now: time.Now, cost: bcrypt.DefaultCost}
}

// AddUser stores a user with a bcrypt hash of password and one checking account.
func (s *Seeder) AddUser(ctx context.Context, username, password string) (model.User, storage.Account, error) {
	if password == "" {
		return model.User{}, storage.Account{}, fmt.Errorf("%w: password", storage.ErrEmptyString)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return model.User{}, storage.Account{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, string(hash))
	if err != nil {
		return model.User{}, storage.Account{}, err
	}
	account, err := s.store.CreateAccount(ctx, user.ID, "Checking", "CHECKING", "")
	if err != nil {
		return model.User{}, storage.Account{}, err
	}

	slog.Info("Added user", "username", username, "user_id", user.ID, "account_id", account.ID)
	return user, account, nil
}

// ImportStatements stores each statement as an account of userID, keyed by the
// OFX account id, and its entries as payments. It returns how many payments were new.
func (s *Seeder) ImportStatements(ctx context.Context, userID int64, statements []ofx.Statement) (int, error) {
	total := 0
	for _, stmt := range statements {
		name := fmt.Sprintf("%s %s", titleCase(stmt.AccountType), lastFour(stmt.AccountID))
		account, err := s.store.CreateAccount(ctx, userID, name, stmt.AccountType, stmt.AccountID)
		if err != nil {
			return total, fmt.Errorf("failed to create account %s: %w", stmt.AccountID, err)
		}

		postings := make([]storage.Posting, 0, len(stmt.Entries))
		for _, e := range stmt.Entries {
			if e.Amount.IsZero() {
				continue
			}
			postings = append(postings, StatementPosting(account.ID, userID, e))
		}

		n, err := s.store.SavePostings(ctx, postings)
		if err != nil {
			return total, fmt.Errorf("failed to import %s: %w", stmt.AccountID, err)
		}
		slog.Info("Imported statement",
			"account", stmt.AccountID,
			"entries", len(stmt.Entries),
			"new", n)
		total += n
	}
	return total, nil
}

// StatementPosting converts a statement entry into a payment against accountID.
// Positive entries credit the account; negative ones debit it.
func StatementPosting(accountID, userID int64, e ofx.Entry) storage.Posting {
	p := storage.Posting{
		ExternalID:  fmt.Sprintf("ofx-%d-%s", accountID, e.FITID),
		Amount:      e.Amount.Abs(),
		Description: e.Description,
		Category:    e.Category,
		Status:      model.StatusCompleted,
		CreatedAt:   e.PostedAt,
	}
	if e.FITID == "" {
		p.ExternalID = ""
	}
	if e.Incoming() {
		p.CreditAccountID = accountID
	} else {
		p.DebitAccountID = accountID
		p.InitiatorUserID = userID
	}
	return p
}

var transferNotes = []string{
	"Dinner split",
	"Rent share",
	"Concert tickets",
	"Groceries",
	"Birthday gift",
	"Utilities",
	"Coffee",
	"Road trip gas",
}

// Transfers creates n random completed payments between the given users' first
// accounts, spread over the last 90 days.
func (s *Seeder) Transfers(ctx context.Context, n int, users []model.User) (int, error) {
	if len(users) < 2 {
		return 0, fmt.Errorf("need at least two users for transfers, got %d", len(users))
	}

	accounts := make([]int64, len(users))
	for i, u := range users {
		list, err := s.store.ListAccounts(ctx, u.ID)
		if err != nil {
			return 0, err
		}
		if len(list) == 0 {
			return 0, fmt.Errorf("user %s has no account", u.Username)
		}
		accounts[i] = list[0].ID
	}

	now := s.now()
	postings := make([]storage.Posting, 0, n)
	for range n {
		from := s.rng.IntN(len(users))
		to := (from + 1 + s.rng.IntN(len(users)-1)) % len(users)

		status := model.StatusCompleted
		if s.rng.IntN(10) == 0 {
			status = model.StatusPending
		}
		postings = append(postings, storage.Posting{
			Amount:          decimal.New(int64(100+s.rng.IntN(49900)), -2),
			Description:     transferNotes[s.rng.IntN(len(transferNotes))],
			Category:        "Transfer",
			Status:          status,
			DebitAccountID:  accounts[from],
			CreditAccountID: accounts[to],
			InitiatorUserID: users[from].ID,
			CreatedAt:       now.Add(-time.Duration(s.rng.Int64N(int64(90 * 24 * time.Hour)))),
		})
	}

	return s.store.SavePostings(ctx, postings)
}

func titleCase(s string) string {
	if s == "" {
		return "Account"
	}
	b := []byte(s)
	for i := 1; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

func lastFour(id string) string {
	if len(id) <= 4 {
		return id
	}
	return "..." + id[len(id)-4:]
}
