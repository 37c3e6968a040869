// Package model holds the data types shared by the feed client and the development backend.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the settlement state reported by the backend.
type TransactionStatus string

// Transaction statuses.
const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
	StatusCancelled TransactionStatus = "CANCELLED"
)

// IsValid reports whether s is one of the known statuses.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Direction tells whether money moved toward or away from the subject of a feed.
type Direction string

// Directions.
const (
	DirectionUnknown  Direction = ""
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
)

// ParseDirection normalizes a backend direction value.
func ParseDirection(s string) Direction {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case DirectionIncoming:
		return DirectionIncoming
	case DirectionOutgoing:
		return DirectionOutgoing
	}
	return DirectionUnknown
}

// Transaction is a read-only projection of a backend payment.
type Transaction struct {
	CreatedAt       time.Time         `json:"created_at"`
	Amount          decimal.Decimal   `json:"amount"`
	ID              string            `json:"id"`
	Description     string            `json:"description"`
	Category        string            `json:"category,omitempty"`
	OtherUsername   string            `json:"other_username,omitempty"`
	Status          TransactionStatus `json:"status"`
	Direction       Direction         `json:"direction"`
	DebitAccountID  int64             `json:"debit_account_id,omitempty"`
	CreditAccountID int64             `json:"credit_account_id,omitempty"`
	InitiatorUserID int64             `json:"initiator_user_id,omitempty"`
	OtherUserID     int64             `json:"other_user_id,omitempty"`
}

// Reference identifies the viewpoint used to derive a transaction's direction.
// Exactly one of AccountID or UserID is expected to be set.
type Reference struct {
	AccountID int64
	UserID    int64
}

// ResolveDirection fills in Direction when the backend did not send one.
// An account reference compares against the credit/debit account; a user
// reference compares against the initiating user.
func (t *Transaction) ResolveDirection(ref Reference) Direction {
	if t.Direction != DirectionUnknown {
		return t.Direction
	}

	switch {
	case ref.AccountID != 0 && t.CreditAccountID == ref.AccountID:
		t.Direction = DirectionIncoming
	case ref.AccountID != 0 && t.DebitAccountID == ref.AccountID:
		t.Direction = DirectionOutgoing
	case ref.UserID != 0 && t.InitiatorUserID == ref.UserID:
		t.Direction = DirectionOutgoing
	case ref.UserID != 0 && t.InitiatorUserID != 0:
		t.Direction = DirectionIncoming
	}

	return t.Direction
}

// Counterpart returns the account or user on the other side of the transaction.
func (t Transaction) Counterpart(ref Reference) string {
	if t.OtherUsername != "" {
		return t.OtherUsername
	}
	if ref.AccountID != 0 {
		other := t.CreditAccountID
		if t.CreditAccountID == ref.AccountID {
			other = t.DebitAccountID
		}
		if other != 0 {
			return fmt.Sprintf("account #%d", other)
		}
	}
	if t.OtherUserID != 0 {
		return fmt.Sprintf("user #%d", t.OtherUserID)
	}
	return "Transfer"
}

// SignedAmount renders the amount with a sign matching its direction.
func (t Transaction) SignedAmount() string {
	switch t.Direction {
	case DirectionIncoming:
		return "+$" + t.Amount.StringFixed(2)
	case DirectionOutgoing:
		return "-$" + t.Amount.StringFixed(2)
	}
	return "$" + t.Amount.StringFixed(2)
}
