package tui

import "github.com/Veraticus/moneyfeed/internal/feed"

// feedLoader lets the scroll trigger start loads on the current engine. The
// trigger runs inside Update, so Fetches are queued and turned into commands
// once Update returns.
type feedLoader struct {
	engine *feed.Engine
	queue  []*feed.Fetch
}

func (l *feedLoader) CanLoadMore() bool {
	return l.engine != nil && l.engine.CanLoadMore()
}

func (l *feedLoader) LoadMore() {
	if l.engine == nil {
		return
	}
	if f := l.engine.LoadMore(); f != nil {
		l.queue = append(l.queue, f)
	}
}

func (l *feedLoader) enqueue(f *feed.Fetch) {
	if f != nil {
		l.queue = append(l.queue, f)
	}
}

func (l *feedLoader) drain() []*feed.Fetch {
	q := l.queue
	l.queue = nil
	return q
}

// frameScheduler records that the trigger wants a frame; the model turns
// that into a single tick.
type frameScheduler struct {
	requested bool
}

func (f *frameScheduler) RequestFrame() {
	f.requested = true
}

func (f *frameScheduler) take() bool {
	r := f.requested
	f.requested = false
	return r
}
