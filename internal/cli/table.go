package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// WriteTransactions prints transactions as an aligned table. ref is the
// viewpoint used to sign amounts and name the other side.
func WriteTransactions(w io.Writer, txs []model.Transaction, ref model.Reference) error {
	header := fmt.Sprintf("%-10s  %-32s  %-18s  %-10s  %13s", "DATE", "DESCRIPTION", "COUNTERPART", "STATUS", "AMOUNT")
	if _, err := fmt.Fprintln(w, TableHeaderStyle.Render(header)); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}

	for _, tx := range txs {
		amount := fmt.Sprintf("%13s", tx.SignedAmount())
		switch tx.Direction {
		case model.DirectionIncoming:
			amount = SuccessStyle.Render(amount)
		case model.DirectionOutgoing:
			amount = ErrorStyle.Render(amount)
		}

		line := fmt.Sprintf("%-10s  %-32s  %-18s  %-10s  %s",
			tx.CreatedAt.Local().Format("2006-01-02"),
			clip(tx.Description, 32),
			clip(tx.Counterpart(ref), 18),
			strings.ToLower(string(tx.Status)),
			amount)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write transaction %s: %w", tx.ID, err)
		}
	}
	return nil
}

// WriteAccounts prints an account summary table.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	header := fmt.Sprintf("%-6s  %-28s  %-12s  %13s", "ID", "NAME", "TYPE", "BALANCE")
	if _, err := fmt.Fprintln(w, TableHeaderStyle.Render(header)); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}
	for _, a := range accounts {
		line := fmt.Sprintf("%-6d  %-28s  %-12s  %13s", a.ID, clip(a.Name, 28), clip(a.Type, 12), a.Balance)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write account %d: %w", a.ID, err)
		}
	}
	return nil
}

func clip(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}
