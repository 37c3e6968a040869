package tui

import (
	"context"
	"time"

	"github.com/Veraticus/moneyfeed/internal/feed"
	tea "github.com/charmbracelet/bubbletea"
)

// loadAccounts fetches the subject list.
func (m Model) loadAccounts() tea.Cmd {
	if m.config.Accounts == nil {
		return func() tea.Msg { return accountsLoadedMsg{} }
	}
	lister := m.config.Accounts
	parent := m.config.Context
	timeout := m.config.RequestTimeout

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		accounts, err := lister.ListAccounts(ctx)
		return accountsLoadedMsg{accounts: accounts, err: err}
	}
}

// runFetch performs one page request off the update loop.
func (m Model) runFetch(engine *feed.Engine, f *feed.Fetch) tea.Cmd {
	parent := m.config.Context
	timeout := m.config.RequestTimeout

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		return pageLoadedMsg{engine: engine, outcome: f.Run(ctx)}
	}
}

func frameTick() tea.Cmd {
	return tea.Tick(FrameInterval, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}
