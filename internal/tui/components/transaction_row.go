package components

import (
	"fmt"
	"strings"

	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/Veraticus/moneyfeed/internal/tui/themes"
	"github.com/charmbracelet/lipgloss"
)

// Column widths of a transaction row.
const (
	dateWidth        = 10
	amountWidth      = 13
	statusWidth      = 10
	counterpartWidth = 18
	minDescWidth     = 12
)

// RenderTransaction renders one row of the feed. ref is the viewpoint of the
// feed, used to name the other side of the transaction.
func RenderTransaction(tx model.Transaction, ref model.Reference, theme themes.Theme, width int) string {
	descWidth := width - dateWidth - amountWidth - statusWidth - counterpartWidth - 4
	showCounterpart := true
	if descWidth < minDescWidth {
		showCounterpart = false
		descWidth = max(width-dateWidth-amountWidth-statusWidth-3, minDescWidth)
	}

	date := theme.Faint.Width(dateWidth).Render(tx.CreatedAt.Local().Format("2006-01-02"))
	desc := theme.Normal.Width(descWidth).MaxWidth(descWidth).Render(truncate(tx.Description, descWidth))

	var status string
	if tx.Status != "" && tx.Status != model.StatusCompleted {
		status = theme.StatusStyle(tx.Status).Width(statusWidth).Render(strings.ToLower(string(tx.Status)))
	} else {
		status = lipgloss.NewStyle().Width(statusWidth).Render("")
	}

	amountStyle := theme.Outgoing
	if tx.Direction == model.DirectionIncoming {
		amountStyle = theme.Incoming
	}
	amount := amountStyle.Width(amountWidth).Align(lipgloss.Right).Render(tx.SignedAmount())

	cols := []string{date, desc}
	if showCounterpart {
		other := truncate(tx.Counterpart(ref), counterpartWidth)
		cols = append(cols, theme.Subtitle.Width(counterpartWidth).Render(other))
	}
	cols = append(cols, status, amount)
	return strings.Join(cols, " ")
}

// RenderFooter renders the line under the last row.
func RenderFooter(state FooterState, theme themes.Theme, spinner string) string {
	switch state.Kind {
	case FooterLoading:
		return fmt.Sprintf("%s %s", spinner, theme.Faint.Render("Loading more..."))
	case FooterError:
		return theme.StatusError.Render("Couldn't load more: "+state.Message) + "  " +
			theme.Button.Render("[r] Retry")
	case FooterLoadMore:
		return theme.Button.Render("[m] Load more")
	case FooterEnd:
		return theme.Faint.Render("No more transactions")
	}
	return ""
}

// FooterKind selects what the footer shows.
type FooterKind int

// Footer kinds.
const (
	FooterNone FooterKind = iota
	FooterLoading
	FooterError
	FooterLoadMore
	FooterEnd
)

// FooterState is the footer content.
type FooterState struct {
	Message string
	Kind    FooterKind
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
