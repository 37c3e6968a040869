// Package tui is the terminal feed screen: a paginated, infinitely scrolling
// list of transactions per subject with a manual "load more" control.
package tui

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/moneyfeed/internal/feed"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/Veraticus/moneyfeed/internal/scroll"
	"github.com/Veraticus/moneyfeed/internal/tui/components"
	"github.com/Veraticus/moneyfeed/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// chromeHeight is the number of rows outside the feed pane: header, tabs,
// a separator and the help line.
const chromeHeight = 4

// Model holds the main TUI state.
type Model struct {
	theme      themes.Theme
	initErr    error
	accountErr error
	pane       *components.FeedPane
	trigger    *scroll.Trigger
	loader     *feedLoader
	frames     *frameScheduler
	keymap     KeyMap
	subjects   []model.Subject
	spinner    spinner.Model
	help       help.Model
	config     Config
	current    int
	width      int
	height     int
	ready      bool
	quitting   bool
}

// newModel creates a new model with the given configuration.
func newModel(cfg Config) Model {
	keymap := DefaultKeyMap()
	loader := &feedLoader{}
	frames := &frameScheduler{}
	pane := components.NewFeedPane(cfg.Width, cfg.Height-chromeHeight, components.PaneKeys{
		Up:       keymap.Up,
		Down:     keymap.Down,
		PageUp:   keymap.PageUp,
		PageDown: keymap.PageDown,
	})

	trigger := scroll.New(loader, frames,
		scroll.WithContainer(pane),
		scroll.WithThreshold(cfg.Threshold))
	trigger.Observe()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(cfg.Theme.Spinner),
	)

	return Model{
		config:  cfg,
		theme:   cfg.Theme,
		keymap:  keymap,
		help:    help.New(),
		spinner: sp,
		pane:    pane,
		trigger: trigger,
		loader:  loader,
		frames:  frames,
		width:   cfg.Width,
		height:  cfg.Height,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadAccounts())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.render()

	case accountsLoadedMsg:
		m.handleAccounts(msg)

	case pageLoadedMsg:
		if msg.engine != m.loader.engine || msg.outcome.Stale {
			slog.Debug("Dropped superseded page", "subject", msg.outcome.Subject.Key())
			return m, nil
		}
		if msg.outcome.Err != nil {
			slog.Warn("Page load failed",
				"subject", msg.outcome.Subject.Key(),
				"kind", msg.outcome.Kind,
				"error", msg.outcome.Err)
		}
		m.render()
		m.trigger.LoadSettled()

	case frameMsg:
		m.trigger.Frame()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.loading() {
			m.render()
		}

	case tea.MouseMsg:
		if m.config.MouseSupport {
			cmds = append(cmds, m.pane.Update(msg))
		}

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	cmds = append(cmds, m.flush()...)
	return m, tea.Batch(cmds...)
}

// handleKey handles keyboard input.
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keymap.ForceQuit), key.Matches(msg, m.keymap.Quit):
		m.close()
		return tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()

	case key.Matches(msg, m.keymap.LoadMore):
		if m.loader.engine != nil {
			m.loader.enqueue(m.loader.engine.LoadMore())
		}

	case key.Matches(msg, m.keymap.Retry):
		m.retry()

	case key.Matches(msg, m.keymap.NextSubject):
		m.switchTo(m.current + 1)

	case key.Matches(msg, m.keymap.PrevSubject):
		m.switchTo(m.current - 1)

	case key.Matches(msg, m.keymap.Home):
		m.pane.GotoTop()

	case key.Matches(msg, m.keymap.End):
		m.pane.GotoBottom()

	default:
		return m.pane.Update(msg)
	}
	return nil
}

func (m *Model) handleAccounts(msg accountsLoadedMsg) {
	m.ready = true
	if msg.err != nil {
		m.accountErr = msg.err
		slog.Warn("Failed to load accounts", "error", msg.err)
	}
	m.subjects = buildSubjects(m.config.User, msg.accounts)

	start := 0
	if initial := m.config.Initial; initial != nil {
		start = -1
		for i, s := range m.subjects {
			if s.Key() == initial.Key() {
				start = i
				break
			}
		}
		if start < 0 {
			m.subjects = append(m.subjects, *initial)
			start = len(m.subjects) - 1
		}
	}
	m.switchTo(start)
}

// buildSubjects lists the signed-in user's own feed first, then each account.
func buildSubjects(user model.User, accounts []model.Account) []model.Subject {
	subjects := make([]model.Subject, 0, len(accounts)+1)
	if user.ID != 0 {
		subjects = append(subjects, model.UserSubject(user.ID, "All activity"))
	}
	for _, a := range accounts {
		label := a.Name
		if label == "" {
			label = fmt.Sprintf("Account #%d", a.ID)
		}
		subjects = append(subjects, model.AccountSubject(a.ID, label))
	}
	return subjects
}

// switchTo makes subjects[i] (wrapping around) the current feed and starts
// its first page. A feed with a different pagination mode gets a new engine.
func (m *Model) switchTo(i int) {
	n := len(m.subjects)
	if n == 0 {
		return
	}
	m.current = ((i % n) + n) % n
	subject := m.subjects[m.current]

	mode := m.config.modeFor(subject.Kind)
	if m.loader.engine == nil || m.loader.engine.Mode() != mode {
		if m.loader.engine != nil {
			m.loader.engine.Close()
		}
		m.loader.engine = feed.New(m.config.Fetcher,
			feed.WithMode(mode),
			feed.WithLimit(m.config.Limit),
			feed.WithGate(m.config.Gate))
	}

	m.loader.queue = nil
	m.pane.Reset()

	first, err := m.loader.engine.Initialize(subject)
	m.initErr = err
	if err != nil {
		slog.Warn("Feed not started", "subject", subject.Key(), "error", err)
	}
	m.loader.enqueue(first)
	m.render()
}

// retry restarts a feed that could not initialize, or repeats the failed page.
func (m *Model) retry() {
	if m.initErr != nil {
		m.switchTo(m.current)
		return
	}
	if m.loader.engine == nil {
		return
	}
	if snap := m.loader.engine.Snapshot(); snap.LastError != nil {
		m.loader.enqueue(m.loader.engine.LoadMore())
	}
}

// flush turns work queued during Update into commands.
func (m *Model) flush() []tea.Cmd {
	var cmds []tea.Cmd
	if m.frames.take() {
		cmds = append(cmds, frameTick())
	}
	fetches := m.loader.drain()
	for _, f := range fetches {
		cmds = append(cmds, m.runFetch(m.loader.engine, f))
	}
	if len(fetches) > 0 {
		m.render()
	}
	return cmds
}

func (m *Model) close() {
	m.quitting = true
	m.trigger.Close()
	if m.loader.engine != nil {
		m.loader.engine.Close()
	}
}

func (m Model) snapshot() feed.Snapshot {
	if m.loader.engine == nil {
		return feed.Snapshot{}
	}
	return m.loader.engine.Snapshot()
}

func (m Model) loading() bool {
	snap := m.snapshot()
	return snap.IsFetching || snap.IsFetchingMore
}

// resize adjusts the pane when the terminal or the help view changes size.
func (m *Model) resize() {
	height := m.height - chromeHeight
	if m.help.ShowAll {
		height -= len(m.keymap.FullHelp()[0]) - 1
	}
	m.help.Width = m.width
	m.pane.Resize(m.width, height)
}
