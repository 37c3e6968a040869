package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts.
type KeyMap struct {
	// Scrolling
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding

	// Feed
	LoadMore    key.Binding
	Retry       key.Binding
	NextSubject key.Binding
	PrevSubject key.Binding

	Help      key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

func bind(label, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       bind("↑/k", "up", "k", "up"),
		Down:     bind("↓/j", "down", "j", "down"),
		PageUp:   bind("PgUp/Ctrl+B", "page up", "pgup", "ctrl+b"),
		PageDown: bind("PgDn/Space", "page down", "pgdown", "ctrl+f", " "),
		Home:     bind("Home/g", "newest", "home", "g"),
		End:      bind("End/G", "oldest loaded", "end", "G"),

		LoadMore:    bind("m/Enter", "load more", "m", "enter"),
		Retry:       bind("r", "retry", "r"),
		NextSubject: bind("Tab", "next feed", "tab"),
		PrevSubject: bind("Shift+Tab", "previous feed", "shift+tab"),

		Help:      bind("?", "help", "?"),
		Quit:      bind("q/Esc", "quit", "q", "esc"),
		ForceQuit: bind("Ctrl+C", "force quit", "ctrl+c"),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.LoadMore, k.NextSubject, k.Help, k.Quit}
}

// FullHelp returns all key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Home, k.End},
		{k.LoadMore, k.Retry, k.NextSubject, k.PrevSubject},
		{k.Help, k.Quit},
	}
}
