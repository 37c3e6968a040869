package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxPageLimit caps the page size a query may ask for.
const MaxPageLimit = 100

// Posting is a payment to be written. A zero account id means the money
// came from or went to outside the bank.
type Posting struct {
	CreatedAt       time.Time
	Amount          decimal.Decimal
	ExternalID      string
	Description     string
	Category        string
	Status          model.TransactionStatus
	DebitAccountID  int64
	CreditAccountID int64
	InitiatorUserID int64
}

// PageQuery selects one page, newest first. Cursor is the id of the last
// transaction of the previous page; Offset counts rows to skip.
type PageQuery struct {
	Cursor string
	Offset int
	Limit  int
}

// SavePostings writes postings, skipping ones whose external id is already
// stored. It returns how many were inserted.
func (s *SQLiteStorage) SavePostings(ctx context.Context, postings []Posting) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	for i := range postings {
		if postings[i].ExternalID == "" {
			postings[i].ExternalID = uuid.NewString()
		}
		if err := validatePosting(&postings[i]); err != nil {
			return 0, fmt.Errorf("posting at index %d: %w", i, err)
		}
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				external_id, amount, description, category, status,
				debit_account_id, credit_account_id, initiating_user_id, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, p := range postings {
			status := p.Status
			if status == "" {
				status = model.StatusCompleted
			}
			res, err := stmt.ExecContext(ctx,
				p.ExternalID,
				p.Amount.String(),
				p.Description,
				p.Category,
				string(status),
				nullID(p.DebitAccountID),
				nullID(p.CreditAccountID),
				nullID(p.InitiatorUserID),
				p.CreatedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert transaction %s: %w", p.ExternalID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

const selectPayment = `
	SELECT t.id, t.amount, t.description, t.category, t.status, t.created_at,
		COALESCE(t.debit_account_id, 0), COALESCE(t.credit_account_id, 0),
		COALESCE(t.initiating_user_id, 0),
		%s AS direction,
		COALESCE(%s, 0) AS other_user_id,
		COALESCE(%s, '') AS other_username
	FROM transactions t
	LEFT JOIN accounts da ON da.id = t.debit_account_id
	LEFT JOIN accounts ca ON ca.id = t.credit_account_id
	LEFT JOIN users du ON du.id = da.user_id
	LEFT JOIN users cu ON cu.id = ca.user_id
`

// ListAccountPayments returns one page of an account's payments. Direction is
// left for the caller to derive from the debit and credit accounts.
func (s *SQLiteStorage) ListAccountPayments(ctx context.Context, accountID int64, q PageQuery) ([]model.Transaction, error) {
	query := fmt.Sprintf(selectPayment,
		`''`,
		`CASE WHEN t.credit_account_id = @subject THEN da.user_id ELSE ca.user_id END`,
		`CASE WHEN t.credit_account_id = @subject THEN du.username ELSE cu.username END`,
	) + `WHERE (t.debit_account_id = @subject OR t.credit_account_id = @subject)`

	return s.listPage(ctx, query, q, sql.Named("subject", accountID))
}

// ListUserFeed returns one page of every payment touching an account owned by
// userID, with the direction and the user on the other side filled in.
func (s *SQLiteStorage) ListUserFeed(ctx context.Context, userID int64, q PageQuery) ([]model.Transaction, error) {
	query := fmt.Sprintf(selectPayment,
		`CASE WHEN ca.user_id = @subject THEN 'INCOMING' ELSE 'OUTGOING' END`,
		`CASE WHEN ca.user_id = @subject THEN da.user_id ELSE ca.user_id END`,
		`CASE WHEN ca.user_id = @subject THEN du.username ELSE cu.username END`,
	) + `WHERE (da.user_id = @subject OR ca.user_id = @subject)`

	return s.listPage(ctx, query, q, sql.Named("subject", userID))
}

func (s *SQLiteStorage) listPage(ctx context.Context, query string, q PageQuery, subject sql.NamedArg) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validatePage(q); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(query)
	args := []any{subject, sql.Named("limit", q.Limit)}

	if q.Cursor != "" {
		cursor, err := strconv.ParseInt(q.Cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: cursor %q", ErrInvalidPage, q.Cursor)
		}
		b.WriteString(` AND (t.created_at, t.id) < (SELECT created_at, id FROM transactions WHERE id = @cursor)`)
		args = append(args, sql.Named("cursor", cursor))
	}
	b.WriteString(` ORDER BY t.created_at DESC, t.id DESC LIMIT @limit OFFSET @offset`)
	args = append(args, sql.Named("offset", q.Offset))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]model.Transaction, 0, q.Limit)
	for rows.Next() {
		tx, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tx)
	}
	return items, rows.Err()
}

func scanPayment(rows *sql.Rows) (model.Transaction, error) {
	var (
		tx        model.Transaction
		id        int64
		amount    string
		status    string
		direction string
	)
	if err := rows.Scan(
		&id,
		&amount,
		&tx.Description,
		&tx.Category,
		&status,
		&tx.CreatedAt,
		&tx.DebitAccountID,
		&tx.CreditAccountID,
		&tx.InitiatorUserID,
		&direction,
		&tx.OtherUserID,
		&tx.OtherUsername,
	); err != nil {
		return model.Transaction{}, fmt.Errorf("failed to scan payment: %w", err)
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("stored amount %q: %w", amount, err)
	}

	tx.ID = strconv.FormatInt(id, 10)
	tx.Amount = parsed
	tx.Status = model.TransactionStatus(status)
	tx.Direction = model.ParseDirection(direction)
	return tx, nil
}
