package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/shopspring/decimal"
)

// ID accepts both numeric and string identifiers on the wire.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued JWT.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// UserResponse is returned by GET /api/users/me.
type UserResponse struct {
	Username string `json:"username"`
	ID       int64  `json:"id"`
}

// AccountResponse describes one account.
type AccountResponse struct {
	Balance decimal.Decimal `json:"balance"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	ID      int64           `json:"id"`
}

// AccountsResponse is returned by GET /api/accounts.
type AccountsResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

// Payment is one transaction in an account's payment history.
type Payment struct {
	CreatedAt         time.Time       `json:"createdAt"`
	Amount            decimal.Decimal `json:"amount"`
	ID                ID              `json:"id"`
	Description       string          `json:"description"`
	Status            string          `json:"status"`
	Category          string          `json:"category,omitempty"`
	DebitAccountID    int64           `json:"debitAccountId"`
	CreditAccountID   int64           `json:"creditAccountId"`
	InitiatingUserID  int64           `json:"initiatingUserId,omitempty"`
	CounterpartUserID int64           `json:"counterpartyUserId,omitempty"`
}

// PaymentsResponse is returned by GET /api/accounts/{id}/payments.
type PaymentsResponse struct {
	Transactions   []Payment       `json:"transactions"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
}

// FeedItem is one entry of the user's cursor-paginated feed.
type FeedItem struct {
	CreatedAt     time.Time       `json:"createdAt"`
	Amount        decimal.Decimal `json:"amount"`
	ID            ID              `json:"id"`
	Description   string          `json:"description"`
	Status        string          `json:"status"`
	Type          string          `json:"type"`
	OtherUsername string          `json:"otherUsername"`
	OtherUserID   int64           `json:"otherUserId"`
}

// ErrorResponse is the body of a non-2xx response.
// Message may be a string or a list of validation messages.
type ErrorResponse struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error,omitempty"`
}

// Text flattens Message into one line.
func (e ErrorResponse) Text() string {
	if len(e.Message) == 0 {
		return e.Error
	}
	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(e.Message, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return string(e.Message)
}

// Transaction converts a payment into the shared model.
func (p Payment) Transaction() model.Transaction {
	return model.Transaction{
		ID:              string(p.ID),
		Amount:          p.Amount,
		Description:     p.Description,
		Status:          model.TransactionStatus(strings.ToUpper(p.Status)),
		Category:        p.Category,
		CreatedAt:       p.CreatedAt,
		DebitAccountID:  p.DebitAccountID,
		CreditAccountID: p.CreditAccountID,
		InitiatorUserID: p.InitiatingUserID,
		OtherUserID:     p.CounterpartUserID,
	}
}

// Transaction converts a feed item into the shared model.
func (f FeedItem) Transaction() model.Transaction {
	return model.Transaction{
		ID:            string(f.ID),
		Amount:        f.Amount,
		Description:   f.Description,
		Status:        model.TransactionStatus(strings.ToUpper(f.Status)),
		CreatedAt:     f.CreatedAt,
		Direction:     model.ParseDirection(f.Type),
		OtherUserID:   f.OtherUserID,
		OtherUsername: f.OtherUsername,
	}
}

// Account converts the response into the shared model.
func (a AccountResponse) Account() model.Account {
	return model.Account{
		ID:      a.ID,
		Name:    a.Name,
		Type:    a.Type,
		Balance: a.Balance.StringFixed(2),
	}
}
