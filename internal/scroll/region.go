// Package scroll implements the Scroll-Proximity Trigger: it watches a
// scrollable region and asks a loader for more content when the visible
// window nears the bottom of the region.
package scroll

// Overflow describes how a node treats content taller than itself.
type Overflow int

// Overflow behaviours.
const (
	OverflowVisible Overflow = iota
	OverflowHidden
	OverflowAuto
	OverflowScroll
)

// Scrollable reports whether a node with this overflow can act as a scroll container.
func (o Overflow) Scrollable() bool {
	return o == OverflowAuto || o == OverflowScroll
}

// Node is an element in a layout tree.
type Node interface {
	Parent() Node
	Overflow() Overflow
	Attached() bool
}

// Metrics is a region's scroll geometry, in rows.
type Metrics struct {
	ScrollTop    int
	ScrollHeight int
	ClientHeight int
}

// DistanceFromBottom is how far the visible window's bottom is from the end of the content.
func (m Metrics) DistanceFromBottom() int {
	return m.ScrollHeight - m.ScrollTop - m.ClientHeight
}

// Overflows reports whether the content is taller than the visible window.
func (m Metrics) Overflows() bool {
	return m.ScrollHeight > m.ClientHeight
}

// Region is a node whose scroll position can be read and observed.
type Region interface {
	Node
	Metrics() Metrics
	// Subscribe registers fn to run on every scroll change and returns a
	// function that removes it.
	Subscribe(fn func()) (unsubscribe func())
}

// Resolve picks the region to observe. An explicit region wins; otherwise the
// nearest scrollable ancestor of anchor is used, then window. It returns nil
// when nothing qualifies.
func Resolve(explicit Region, anchor Node, window Region) Region {
	if explicit != nil {
		return explicit
	}
	if anchor != nil {
		for n := anchor.Parent(); n != nil; n = n.Parent() {
			if !n.Overflow().Scrollable() {
				continue
			}
			if r, ok := n.(Region); ok {
				return r
			}
		}
	}
	return window
}
