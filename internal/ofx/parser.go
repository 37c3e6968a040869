// Package ofx reads OFX/QFX bank statements used to seed the development backend.
package ofx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

// ErrNoStatements is returned when a file parses but holds no bank or card statement.
var ErrNoStatements = errors.New("no statements in OFX file")

var (
	lowerSeverity = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	unclosedTag   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	leadingDate   = regexp.MustCompile(`^\d{2}/\d{2}\s+`)
)

// Statement is one account's transaction list from an OFX file.
type Statement struct {
	AccountID   string
	AccountType string
	Entries     []Entry
}

// Entry is a single statement line. Amount keeps the OFX sign: negative
// values left the account, positive values arrived in it.
type Entry struct {
	PostedAt    time.Time
	Amount      decimal.Decimal
	FITID       string
	Name        string
	Description string
	Category    string
	Type        string
	CheckNumber string
}

// Incoming reports whether the entry credited the account.
func (e Entry) Incoming() bool {
	return e.Amount.IsPositive()
}

// Card and bank exports prefix purchases with one of these.
var purchasePrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

var genericNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// OFX carries no categories, but a few transaction types imply one.
var typeCategories = map[string]string{
	"INT":    "Interest",
	"DIV":    "Interest",
	"FEE":    "Bank Fees",
	"SRVCHG": "Bank Fees",
	"ATM":    "Cash & ATM",
	"CASH":   "Cash & ATM",
	"CHECK":  "Checks",
}

// Parser reads OFX/QFX files.
type Parser struct{}

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile parses an OFX/QFX file and returns its statements in file order:
// bank statements first, then credit card statements.
func (p *Parser) ParseFile(ctx context.Context, r io.Reader) ([]Statement, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(normalize(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var statements []Statement
	add := func(id, kind string, list *ofxgo.TransactionList) {
		s := Statement{AccountID: id, AccountType: kind}
		if list != nil {
			s.Entries = make([]Entry, 0, len(list.Transactions))
			for _, tx := range list.Transactions {
				s.Entries = append(s.Entries, toEntry(tx))
			}
		}
		statements = append(statements, s)
	}

	for _, msg := range resp.Bank {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			add(string(stmt.BankAcctFrom.AcctID), stmt.BankAcctFrom.AcctType.String(), stmt.BankTranList)
		}
	}
	for _, msg := range resp.CreditCard {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			add(string(stmt.CCAcctFrom.AcctID), "CREDITCARD", stmt.BankTranList)
		}
	}

	if len(statements) == 0 {
		return nil, ErrNoStatements
	}

	entries := 0
	for _, s := range statements {
		entries += len(s.Entries)
	}
	slog.Info("Parsed OFX file", "statements", len(statements), "entries", entries)
	return statements, nil
}

// normalize repairs the formatting mistakes ofxgo rejects: lower case
// SEVERITY values and bare tag lines missing their closing bracket.
func normalize(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = lowerSeverity.ReplaceAllStringFunc(content, strings.ToUpper)
	return unclosedTag.ReplaceAllString(content, "$1>")
}

func toEntry(tx ofxgo.Transaction) Entry {
	var payee string
	if tx.Payee != nil {
		payee = string(tx.Payee.Name)
	}
	kind := fmt.Sprint(tx.TrnType)

	e := Entry{
		FITID:       string(tx.FiTID),
		PostedAt:    tx.DtPosted.Time,
		Name:        string(tx.Name),
		Description: merchantName(payee, string(tx.Name), string(tx.Memo)),
		Amount:      decimal.NewFromBigRat(&tx.TrnAmt.Rat, 2),
		Type:        kind,
		Category:    typeCategories[kind],
		CheckNumber: string(tx.CheckNum),
	}
	if e.Description == "" {
		e.Description = kind
	}
	return e
}

// merchantName picks the most readable counterparty name from a statement line.
func merchantName(payee, name, memo string) string {
	if payee != "" {
		return payee
	}
	if memo != "" && genericNames[strings.ToUpper(strings.TrimSpace(name))] {
		name = memo
	}
	name = strings.TrimSpace(name)

	upper := strings.ToUpper(name)
	for _, prefix := range purchasePrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(leadingDate.ReplaceAllString(name, ""))
}
