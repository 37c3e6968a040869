// Package components holds the building blocks of the feed screen.
package components

import (
	"strings"

	"github.com/Veraticus/moneyfeed/internal/scroll"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// FeedPane is the scrollable list of feed rows. It is the scroll container
// the proximity trigger observes, so it implements scroll.Region.
type FeedPane struct {
	listeners map[int]func()
	vp        viewport.Model
	nextID    int
}

// PaneKeys are the bindings the pane scrolls with.
type PaneKeys struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

// NewFeedPane creates a pane of the given size.
func NewFeedPane(width, height int, keys PaneKeys) *FeedPane {
	vp := viewport.New(width, height)
	vp.MouseWheelEnabled = true
	vp.KeyMap.Up = keys.Up
	vp.KeyMap.Down = keys.Down
	vp.KeyMap.PageUp = keys.PageUp
	vp.KeyMap.PageDown = keys.PageDown

	return &FeedPane{
		vp:        vp,
		listeners: make(map[int]func()),
	}
}

// Parent implements scroll.Node. The pane is the root of its layout.
func (p *FeedPane) Parent() scroll.Node { return nil }

// Overflow implements scroll.Node.
func (p *FeedPane) Overflow() scroll.Overflow { return scroll.OverflowAuto }

// Attached implements scroll.Node.
func (p *FeedPane) Attached() bool { return true }

// Metrics implements scroll.Region.
func (p *FeedPane) Metrics() scroll.Metrics {
	return scroll.Metrics{
		ScrollTop:    p.vp.YOffset,
		ScrollHeight: p.vp.TotalLineCount(),
		ClientHeight: p.vp.Height,
	}
}

// Subscribe implements scroll.Region.
func (p *FeedPane) Subscribe(fn func()) func() {
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		delete(p.listeners, id)
	}
}

// Listeners returns how many scroll listeners are registered.
func (p *FeedPane) Listeners() int {
	return len(p.listeners)
}

func (p *FeedPane) notify() {
	for _, fn := range p.listeners {
		fn()
	}
}

// Update forwards key and mouse messages to the viewport and notifies
// listeners when the scroll position moved.
func (p *FeedPane) Update(msg tea.Msg) tea.Cmd {
	before := p.vp.YOffset
	var cmd tea.Cmd
	p.vp, cmd = p.vp.Update(msg)
	if p.vp.YOffset != before {
		p.notify()
	}
	return cmd
}

// GotoTop scrolls to the first row.
func (p *FeedPane) GotoTop() {
	before := p.vp.YOffset
	p.vp.GotoTop()
	if p.vp.YOffset != before {
		p.notify()
	}
}

// GotoBottom scrolls to the last row.
func (p *FeedPane) GotoBottom() {
	before := p.vp.YOffset
	p.vp.GotoBottom()
	if p.vp.YOffset != before {
		p.notify()
	}
}

// ScrollTo moves the window so that row offset is at the top.
func (p *FeedPane) ScrollTo(offset int) {
	before := p.vp.YOffset
	p.vp.SetYOffset(offset)
	if p.vp.YOffset != before {
		p.notify()
	}
}

// SetLines replaces the content. Listeners are not notified: new content is
// not a scroll change.
func (p *FeedPane) SetLines(lines []string) {
	p.vp.SetContent(strings.Join(lines, "\n"))
}

// Reset clears the content and scrolls back to the top silently.
func (p *FeedPane) Reset() {
	p.vp.SetContent("")
	p.vp.SetYOffset(0)
}

// Resize changes the visible window.
func (p *FeedPane) Resize(width, height int) {
	p.vp.Width = width
	p.vp.Height = max(height, 1)
	p.vp.SetYOffset(p.vp.YOffset)
}

// Width returns the pane width.
func (p *FeedPane) Width() int {
	return p.vp.Width
}

// View renders the visible window.
func (p *FeedPane) View() string {
	return p.vp.View()
}
