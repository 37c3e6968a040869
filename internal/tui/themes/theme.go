// Package themes holds the lipgloss styles of the feed screen.
package themes

import (
	"sort"

	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// Palette is the handful of colors a theme is derived from.
type Palette struct {
	Accent   lipgloss.Color
	OnAccent lipgloss.Color
	Text     lipgloss.Color
	Dim      lipgloss.Color
	Muted    lipgloss.Color
	Border   lipgloss.Color
	Positive lipgloss.Color
	Caution  lipgloss.Color
	Negative lipgloss.Color
	Link     lipgloss.Color
}

// Theme is the set of styles the feed screen renders with.
type Theme struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Normal      lipgloss.Style
	Faint       lipgloss.Style
	ActiveTab   lipgloss.Style
	Tab         lipgloss.Style
	Incoming    lipgloss.Style
	Outgoing    lipgloss.Style
	Button      lipgloss.Style
	Spinner     lipgloss.Style
	BorderedBox lipgloss.Style
	StatusError lipgloss.Style
	StatusInfo  lipgloss.Style

	completed lipgloss.Style
	pending   lipgloss.Style
	cancelled lipgloss.Style
}

// New derives a theme from p.
func New(p Palette) Theme {
	text := lipgloss.NewStyle().Foreground(p.Text)
	badge := lipgloss.NewStyle().Bold(true)

	return Theme{
		Title:     text.Bold(true),
		Subtitle:  lipgloss.NewStyle().Foreground(p.Dim),
		Normal:    text,
		Faint:     lipgloss.NewStyle().Foreground(p.Muted),
		ActiveTab: lipgloss.NewStyle().Background(p.Accent).Foreground(p.OnAccent).Bold(true).Padding(0, 1),
		Tab:       lipgloss.NewStyle().Foreground(p.Dim).Padding(0, 1),
		Incoming:  lipgloss.NewStyle().Foreground(p.Positive),
		Outgoing:  text,
		Button:    lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
		Spinner:   lipgloss.NewStyle().Foreground(p.Accent),
		BorderedBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(1, 2),
		StatusError: badge.Foreground(p.Negative),
		StatusInfo:  badge.Foreground(p.Link),

		completed: badge.Foreground(p.Positive),
		pending:   lipgloss.NewStyle().Foreground(p.Muted).Italic(true),
		cancelled: badge.Foreground(p.Caution),
	}
}

// Default is the theme used when none is chosen.
var Default = New(Palette{
	Accent:   "#7c3aed",
	OnAccent: "#fafafa",
	Text:     "#fafafa",
	Dim:      "#a3a3a3",
	Muted:    "#737373",
	Border:   "#404040",
	Positive: "#10b981",
	Caution:  "#f59e0b",
	Negative: "#ef4444",
	Link:     "#3b82f6",
})

var registry = map[string]Theme{
	"default": Default,
	"catppuccin-mocha": New(Palette{
		Accent:   "#cba6f7",
		OnAccent: "#1e1e2e",
		Text:     "#cdd6f4",
		Dim:      "#a6adc8",
		Muted:    "#6c7086",
		Border:   "#45475a",
		Positive: "#a6e3a1",
		Caution:  "#f9e2af",
		Negative: "#f38ba8",
		Link:     "#89dceb",
	}),
	"paper": New(Palette{
		Accent:   "#1d4ed8",
		OnAccent: "#ffffff",
		Text:     "#1f2937",
		Dim:      "#4b5563",
		Muted:    "#9ca3af",
		Border:   "#d1d5db",
		Positive: "#047857",
		Caution:  "#b45309",
		Negative: "#b91c1c",
		Link:     "#1d4ed8",
	}),
}

// GetTheme returns the named theme, falling back to Default.
func GetTheme(name string) Theme {
	if t, ok := registry[name]; ok {
		return t
	}
	return Default
}

// Names lists the registered theme names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StatusStyle returns the badge style for a transaction status.
func (t Theme) StatusStyle(status model.TransactionStatus) lipgloss.Style {
	switch status {
	case model.StatusPending:
		return t.pending
	case model.StatusFailed:
		return t.StatusError
	case model.StatusCancelled:
		return t.cancelled
	}
	return t.completed
}
