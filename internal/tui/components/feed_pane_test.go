package components

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/Veraticus/moneyfeed/internal/scroll"
	"github.com/Veraticus/moneyfeed/internal/tui/themes"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPane(height, lines int) *FeedPane {
	p := NewFeedPane(40, height, PaneKeys{
		Up:       key.NewBinding(key.WithKeys("up")),
		Down:     key.NewBinding(key.WithKeys("down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
	})
	rows := make([]string, lines)
	for i := range rows {
		rows[i] = fmt.Sprintf("row %d", i)
	}
	p.SetLines(rows)
	return p
}

func TestFeedPaneMetrics(t *testing.T) {
	p := testPane(10, 30)
	assert.Equal(t, scroll.Metrics{ScrollTop: 0, ScrollHeight: 30, ClientHeight: 10}, p.Metrics())

	p.ScrollTo(15)
	assert.Equal(t, 5, p.Metrics().DistanceFromBottom())

	p.GotoBottom()
	assert.Equal(t, 0, p.Metrics().DistanceFromBottom())
}

func TestFeedPaneNotifiesOnScrollOnly(t *testing.T) {
	p := testPane(10, 30)
	calls := 0
	unsubscribe := p.Subscribe(func() { calls++ })
	require.Equal(t, 1, p.Listeners())

	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, calls)

	p.Update(tea.KeyMsg{Type: tea.KeyUp})
	p.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 2, calls, "scrolling up at the top is not a change")

	p.SetLines([]string{"a", "b"})
	assert.Equal(t, 2, calls, "new content is not a scroll change")

	unsubscribe()
	assert.Equal(t, 0, p.Listeners())
	p.GotoBottom()
	assert.Equal(t, 2, calls)
}

func TestFeedPaneIsScrollContainer(t *testing.T) {
	p := testPane(10, 30)
	assert.Same(t, p, scroll.Resolve(p, nil, nil))
}

func TestRenderTransaction(t *testing.T) {
	tx := model.Transaction{
		ID:            "1",
		Description:   "Coffee beans",
		OtherUsername: "bob",
		Amount:        decimal.RequireFromString("12.50"),
		Status:        model.StatusPending,
		Direction:     model.DirectionOutgoing,
		CreatedAt:     time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
	}

	row := RenderTransaction(tx, model.Reference{UserID: 1}, themes.Default, 100)
	assert.Contains(t, row, "Coffee beans")
	assert.Contains(t, row, "pending")
	assert.Contains(t, row, "-$12.50")

	narrow := RenderTransaction(tx, model.Reference{UserID: 1}, themes.Default, 50)
	assert.NotContains(t, narrow, "bob")
}

func TestRenderFooter(t *testing.T) {
	tests := []struct {
		name  string
		want  string
		state FooterState
	}{
		{name: "loading", state: FooterState{Kind: FooterLoading}, want: "Loading more..."},
		{name: "error", state: FooterState{Kind: FooterError, Message: "boom"}, want: "Couldn't load more: boom"},
		{name: "more", state: FooterState{Kind: FooterLoadMore}, want: "[m] Load more"},
		{name: "end", state: FooterState{Kind: FooterEnd}, want: "No more transactions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, RenderFooter(tt.state, themes.Default, "*"), tt.want)
		})
	}
	assert.Empty(t, RenderFooter(FooterState{}, themes.Default, "*"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	got := truncate("a very long description", 8)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len([]rune(got)), 8)
}

func TestThemes(t *testing.T) {
	assert.Equal(t, []string{"catppuccin-mocha", "default", "paper"}, themes.Names())
	assert.Equal(t, themes.Default, themes.GetTheme("no-such-theme"))

	th := themes.GetTheme("paper")
	assert.Equal(t, th.StatusError, th.StatusStyle(model.StatusFailed))
	assert.NotEqual(t, th.StatusStyle(model.StatusPending), th.StatusStyle(model.StatusCompleted))
	assert.Equal(t, th.Button.GetForeground(), th.Spinner.GetForeground(), "the spinner uses the accent color")
}
