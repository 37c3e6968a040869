package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/feed"
	"github.com/Veraticus/moneyfeed/internal/tui/components"
	"github.com/charmbracelet/lipgloss"
)

// View renders the current model state.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.renderTabs(),
		m.renderBody(),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	header := m.theme.Title.Render("moneyfeed")
	if m.config.User.Username != "" {
		header += " " + m.theme.Faint.Render("signed in as "+m.config.User.Username)
	}
	if balance := m.snapshot().Balance; balance != "" {
		header += "  " + m.theme.Subtitle.Render("Current Balance") + " " + m.theme.Normal.Render("$"+balance)
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(header)
}

// renderTabs renders one tab per subject, highlighting the current one.
func (m Model) renderTabs() string {
	if len(m.subjects) == 0 {
		return ""
	}
	tabs := make([]string, 0, len(m.subjects))
	for i, s := range m.subjects {
		style := m.theme.Tab
		if i == m.current {
			style = m.theme.ActiveTab
		}
		tabs = append(tabs, style.Render(s.Label))
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(tabs, " "))
}

// renderBody picks the full-screen state or the scrolling list.
func (m Model) renderBody() string {
	list := m.pane.View()
	snap := m.snapshot()

	var content string
	switch {
	case m.initErr != nil:
		content = m.renderFullError(m.initErr)
	case !m.ready:
		content = m.spinner.View() + " " + m.theme.Faint.Render("Loading accounts...")
	case len(m.subjects) == 0:
		if m.accountErr != nil {
			content = m.renderFullError(m.accountErr)
		} else {
			content = m.theme.Faint.Render("No accounts to show")
		}
	case snap.IsFetching && snap.Empty():
		content = m.spinner.View() + " " + m.theme.Faint.Render("Loading transactions...")
	case snap.InitialFailure():
		content = m.renderFullError(snap.LastError)
	case snap.Empty():
		content = m.theme.Faint.Render("No transactions yet")
	default:
		return list
	}

	return lipgloss.Place(m.width, lipgloss.Height(list), lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderFullError(err error) string {
	box := lipgloss.JoinVertical(
		lipgloss.Center,
		m.theme.StatusError.Render(errorText(err)),
		"",
		m.theme.Button.Render("[r] Retry"),
	)
	return m.theme.BorderedBox.Render(box)
}

// renderStatusBar renders the page count on the left and key help on the right.
func (m Model) renderStatusBar() string {
	snap := m.snapshot()
	left := ""
	if snap.Pages > 0 {
		left = m.theme.StatusInfo.Render(fmt.Sprintf("%d loaded · %d pages", len(snap.Items), snap.Pages))
	}
	right := m.help.View(m.keymap)

	spacing := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if m.help.ShowAll || spacing < 1 {
		return lipgloss.JoinVertical(lipgloss.Left, left, right)
	}
	return left + strings.Repeat(" ", spacing) + right
}

// render rebuilds the pane content from the engine snapshot.
func (m *Model) render() {
	snap := m.snapshot()
	if snap.Empty() {
		m.pane.SetLines(nil)
		return
	}

	ref := snap.Subject.Reference()
	lines := make([]string, 0, len(snap.Items)+2)
	for _, tx := range snap.Items {
		lines = append(lines, components.RenderTransaction(tx, ref, m.theme, m.pane.Width()))
	}
	lines = append(lines, "", components.RenderFooter(footerFor(snap), m.theme, m.spinner.View()))
	m.pane.SetLines(lines)
}

// footerFor chooses what the end of a non-empty list shows.
func footerFor(snap feed.Snapshot) components.FooterState {
	switch {
	case snap.IsFetchingMore:
		return components.FooterState{Kind: components.FooterLoading}
	case snap.LastError != nil:
		return components.FooterState{Kind: components.FooterError, Message: errorText(snap.LastError)}
	case snap.HasMore:
		return components.FooterState{Kind: components.FooterLoadMore}
	default:
		return components.FooterState{Kind: components.FooterEnd}
	}
}

// errorText turns a load failure into a message for the user.
func errorText(err error) string {
	var userErr *common.UserError
	if errors.As(err, &userErr) {
		return userErr.UserMessage
	}
	if errors.Is(err, common.ErrNotAuthenticated) {
		return "You are signed out. Run `moneyfeed login` and try again."
	}
	if errors.Is(err, common.ErrCircuitOpen) {
		return "The bank is not responding. Try again in a moment."
	}

	var backendErr *common.BackendError
	if errors.As(err, &backendErr) && backendErr.Message != "" {
		return backendErr.Message
	}

	switch common.Classify(err) {
	case common.KindNetwork:
		return "Network error. Check your connection."
	case common.KindBackend:
		return "The bank returned an error."
	}
	return err.Error()
}
