// Package storage provides the SQLite persistence layer for the mockbank backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidPage        = errors.New("invalid page")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validatePosting validates a payment before it is written.
func validatePosting(p *Posting) error {
	if p.ExternalID == "" {
		return fmt.Errorf("%w: missing external ID", ErrInvalidTransaction)
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if p.Description == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	if p.DebitAccountID == 0 && p.CreditAccountID == 0 {
		return fmt.Errorf("%w: needs a debit or credit account", ErrInvalidTransaction)
	}
	if p.DebitAccountID != 0 && p.DebitAccountID == p.CreditAccountID {
		return fmt.Errorf("%w: debit and credit account are the same", ErrInvalidTransaction)
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidTransaction, p.Amount)
	}
	if p.Status != "" && !p.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransaction, p.Status)
	}
	return nil
}

// validatePage checks the limit and position of a page query.
func validatePage(q PageQuery) error {
	if q.Limit <= 0 || q.Limit > MaxPageLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidPage, MaxPageLimit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", ErrInvalidPage)
	}
	if q.Cursor != "" && q.Offset != 0 {
		return fmt.Errorf("%w: cursor and offset are exclusive", ErrInvalidPage)
	}
	return nil
}
