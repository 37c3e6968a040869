package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/shopspring/decimal"
)

// Account is a stored account with its owner.
type Account struct {
	Name       string
	Type       string
	ExternalID string
	ID         int64
	UserID     int64
}

// CreateAccount adds an account for userID. When externalID is set and the
// user already has an account with it, that account is returned instead.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, userID int64, name, accountType, externalID string) (Account, error) {
	if err := validateContext(ctx); err != nil {
		return Account{}, err
	}
	if err := validateString(name, "name"); err != nil {
		return Account{}, err
	}
	if accountType == "" {
		accountType = "CHECKING"
	}

	if externalID != "" {
		existing, err := s.accountByExternalID(ctx, userID, externalID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return Account{}, err
		}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, account_type, external_id) VALUES (?, ?, ?, ?)`,
		userID, name, accountType, sql.NullString{String: externalID, Valid: externalID != ""})
	if err != nil {
		return Account{}, fmt.Errorf("failed to create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Account{}, fmt.Errorf("failed to read account id: %w", err)
	}

	return Account{ID: id, UserID: userID, Name: name, Type: accountType, ExternalID: externalID}, nil
}

func (s *SQLiteStorage) accountByExternalID(ctx context.Context, userID int64, externalID string) (Account, error) {
	a := Account{UserID: userID, ExternalID: externalID}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, account_type FROM accounts WHERE user_id = ? AND external_id = ?`,
		userID, externalID).Scan(&a.ID, &a.Name, &a.Type)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, err
		}
		return Account{}, fmt.Errorf("failed to look up account: %w", err)
	}
	return a, nil
}

// GetAccount returns an account by id.
func (s *SQLiteStorage) GetAccount(ctx context.Context, id int64) (Account, error) {
	if err := validateContext(ctx); err != nil {
		return Account{}, err
	}

	var (
		a   Account
		ext sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, account_type, external_id FROM accounts WHERE id = ?`,
		id).Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &ext)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, notFound("account", id)
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	a.ExternalID = ext.String
	return a, nil
}

// ListAccounts returns the accounts owned by userID with their balances.
func (s *SQLiteStorage) ListAccounts(ctx context.Context, userID int64) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, account_type FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Type); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	_ = rows.Close()

	for i := range accounts {
		balance, err := s.Balance(ctx, accounts[i].ID)
		if err != nil {
			return nil, err
		}
		accounts[i].Balance = balance.StringFixed(2)
	}
	return accounts, nil
}

// Balance sums the completed payments into and out of an account.
func (s *SQLiteStorage) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT amount, COALESCE(credit_account_id, 0) FROM transactions
		WHERE (debit_account_id = ? OR credit_account_id = ?) AND status = ?`,
		accountID, accountID, string(model.StatusCompleted))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute balance: %w", err)
	}
	defer func() { _ = rows.Close() }()

	balance := decimal.Zero
	for rows.Next() {
		var (
			raw    string
			credit int64
		)
		if err := rows.Scan(&raw, &credit); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("stored amount %q: %w", raw, err)
		}
		if credit == accountID {
			balance = balance.Add(amount)
		} else {
			balance = balance.Sub(amount)
		}
	}
	return balance, rows.Err()
}
