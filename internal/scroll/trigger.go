package scroll

import (
	"log/slog"
	"sync"
	"time"
)

// Defaults used when a Trigger is built without options.
const (
	DefaultThreshold  = 300
	DefaultRetryDelay = 100 * time.Millisecond
)

// Loader is the pagination side of the trigger.
type Loader interface {
	CanLoadMore() bool
	LoadMore()
}

// FrameScheduler runs Trigger.Frame on the next render frame.
// RequestFrame is called at most once per pending frame.
type FrameScheduler interface {
	RequestFrame()
}

// FrameFunc adapts a function to FrameScheduler.
type FrameFunc func()

// RequestFrame calls f.
func (f FrameFunc) RequestFrame() { f() }

// Trigger turns scroll notifications into single LoadMore calls.
type Trigger struct {
	loader     Loader
	frames     FrameScheduler
	explicit   Region
	window     Region
	anchor     Node
	region     Region
	after      func(time.Duration, func()) (stop func() bool)
	detach     func()
	stopRetry  func() bool
	threshold  int
	retryDelay time.Duration
	attaches   int
	mu         sync.Mutex
	dirty      bool
	framePend  bool
	deferred   bool
	retried    bool
	closed     bool
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithThreshold sets the distance from the bottom below which a load fires.
func WithThreshold(threshold int) Option {
	return func(t *Trigger) {
		if threshold >= 0 {
			t.threshold = threshold
		}
	}
}

// WithRetryDelay sets how long Observe waits before its single re-resolution.
func WithRetryDelay(d time.Duration) Option {
	return func(t *Trigger) {
		t.retryDelay = d
	}
}

// WithContainer supplies an explicit scroll container.
func WithContainer(r Region) Option {
	return func(t *Trigger) {
		t.explicit = r
	}
}

// WithAnchor sets the node whose ancestors are searched for a scroll container.
func WithAnchor(n Node) Option {
	return func(t *Trigger) {
		t.anchor = n
	}
}

// WithWindow sets the region used when no container resolves.
func WithWindow(r Region) Option {
	return func(t *Trigger) {
		t.window = r
	}
}

// WithAfterFunc replaces time.AfterFunc for the resolution retry.
func WithAfterFunc(after func(time.Duration, func()) func() bool) Option {
	return func(t *Trigger) {
		t.after = after
	}
}

// New creates a trigger. With a nil scheduler every notification is evaluated immediately.
func New(loader Loader, frames FrameScheduler, opts ...Option) *Trigger {
	t := &Trigger{
		loader:     loader,
		frames:     frames,
		threshold:  DefaultThreshold,
		retryDelay: DefaultRetryDelay,
		after: func(d time.Duration, fn func()) func() bool {
			return time.AfterFunc(d, fn).Stop
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe resolves the scroll container and subscribes to it. If nothing
// resolves because the anchor is not attached yet, resolution is retried once.
func (t *Trigger) Observe() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.region != nil {
		return
	}
	if r := Resolve(t.explicit, t.anchor, t.window); r != nil {
		t.attachLocked(r)
		return
	}
	if t.retried || t.anchor == nil || t.anchor.Attached() {
		slog.Debug("No scroll container found, trigger is inert")
		return
	}

	t.retried = true
	t.stopRetry = t.after(t.retryDelay, t.retryObserve)
}

func (t *Trigger) retryObserve() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopRetry = nil
	if t.closed || t.region != nil {
		return
	}
	if r := Resolve(t.explicit, t.anchor, t.window); r != nil {
		t.attachLocked(r)
		return
	}
	slog.Debug("No scroll container found after retry, trigger is inert")
}

// SetContainer switches to a new explicit container. The old listener is
// released before the new one is attached.
func (t *Trigger) SetContainer(r Region) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.explicit = r
	next := Resolve(r, t.anchor, t.window)
	if next == t.region {
		return
	}
	t.detachLocked()
	if next != nil {
		t.attachLocked(next)
	}
}

// Close releases the listener. Further notifications are ignored.
func (t *Trigger) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	if t.stopRetry != nil {
		t.stopRetry()
		t.stopRetry = nil
	}
	t.detachLocked()
}

// Observing reports whether a container is attached.
func (t *Trigger) Observing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.region != nil
}

// Attaches returns how many times a listener has been attached.
func (t *Trigger) Attaches() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attaches
}

// Notify records a scroll change. At most one frame is requested until it runs.
func (t *Trigger) Notify() {
	t.mu.Lock()
	if t.closed || t.region == nil {
		t.mu.Unlock()
		return
	}
	t.dirty = true
	if t.framePend {
		t.mu.Unlock()
		return
	}
	t.framePend = true
	frames := t.frames
	t.mu.Unlock()

	if frames == nil {
		t.Frame()
		return
	}
	frames.RequestFrame()
}

// Frame evaluates the latest scroll position once and fires LoadMore when
// the window is within the threshold of the bottom and the loader allows it.
func (t *Trigger) Frame() {
	t.mu.Lock()
	t.framePend = false
	if !t.dirty || t.closed || t.region == nil {
		t.mu.Unlock()
		return
	}
	t.dirty = false

	m := t.region.Metrics()
	distance := m.DistanceFromBottom()
	if distance >= t.threshold {
		t.deferred = false
		t.mu.Unlock()
		return
	}
	if !t.loader.CanLoadMore() {
		t.deferred = true
		t.mu.Unlock()
		return
	}
	t.deferred = false
	t.mu.Unlock()

	slog.Debug("Near bottom, loading more", "distance", distance, "threshold", t.threshold)
	t.loader.LoadMore()
}

// LoadSettled tells the trigger that a load finished. If the last frame was
// near the bottom but blocked by that load, the position is evaluated again.
func (t *Trigger) LoadSettled() {
	t.mu.Lock()
	if !t.deferred || t.closed || t.region == nil {
		t.mu.Unlock()
		return
	}
	t.deferred = false
	t.mu.Unlock()

	t.Notify()
}

func (t *Trigger) attachLocked(r Region) {
	t.region = r
	t.detach = r.Subscribe(t.Notify)
	t.attaches++
}

func (t *Trigger) detachLocked() {
	if t.detach != nil {
		t.detach()
		t.detach = nil
	}
	t.region = nil
	t.dirty = false
	t.deferred = false
}
