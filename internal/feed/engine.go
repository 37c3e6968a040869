// Package feed implements the Pagination Engine behind a transaction feed.
//
// One Engine backs one mounted feed. It owns the feed state, allows at most one
// page request in flight, and ignores responses that belong to a superseded
// session. Requests are returned as *Fetch values so the caller decides where
// the network call runs (a tea.Cmd, a goroutine, or inline).
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/model"
	"github.com/Veraticus/moneyfeed/internal/service"
)

// ErrFetchReused is returned when a Fetch is run more than once.
var ErrFetchReused = errors.New("fetch already run")

// Engine paginates one subject's transactions.
type Engine struct {
	fetcher    service.PageFetcher
	gate       service.Gate
	lastErr    error
	cursor     *string
	balance    string
	inflight   *Fetch
	seen       map[string]struct{}
	subject    model.Subject
	mode       model.Mode
	items      []model.Transaction
	session    uint64
	limit      int
	pages      int
	offset     int
	state      State
	mu         sync.Mutex
	hasMore    bool
	hasSubject bool
	closed     bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithMode sets the pagination mode.
func WithMode(mode model.Mode) Option {
	return func(e *Engine) {
		e.mode = mode
	}
}

// WithLimit sets the page size.
func WithLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.limit = limit
		}
	}
}

// WithGate blocks Initialize while the gate reports no session.
func WithGate(gate service.Gate) Option {
	return func(e *Engine) {
		e.gate = gate
	}
}

// New creates an engine. It does nothing until Initialize is called.
func New(fetcher service.PageFetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher: fetcher,
		mode:    model.ModeOffset,
		limit:   model.DefaultPageLimit,
		state:   StateIdle,
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode returns the engine's pagination mode.
func (e *Engine) Mode() model.Mode {
	return e.mode
}

// Limit returns the page size.
func (e *Engine) Limit() int {
	return e.limit
}

// Initialize starts a new session for subject and returns the first page request.
// Any request still in flight for the previous session is cancelled and its
// response will be discarded.
func (e *Engine) Initialize(subject model.Subject) (*Fetch, error) {
	if e.gate != nil && !e.gate.IsAuthenticated() {
		return nil, common.ErrNotAuthenticated
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("feed for %s is closed", subject)
	}

	e.cancelInflightLocked()
	e.session++
	e.subject = subject
	e.hasSubject = true
	e.items = nil
	e.seen = make(map[string]struct{})
	e.pages = 0
	e.offset = 0
	e.cursor = nil
	e.balance = ""
	e.hasMore = true
	e.lastErr = nil
	e.state = StateIdle

	slog.Debug("Feed session started",
		"subject", subject.Key(),
		"session", e.session,
		"mode", e.mode,
		"limit", e.limit)

	return e.beginLocked(), nil
}

// LoadMore returns the request for the next page, or nil when a request is
// already in flight, the feed is exhausted, or no subject is set.
// Calling it repeatedly while a request is pending never issues a second one.
func (e *Engine) LoadMore() *Fetch {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.canLoadLocked() {
		return nil
	}
	return e.beginLocked()
}

// CanLoadMore reports whether LoadMore would issue a request.
func (e *Engine) CanLoadMore() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canLoadLocked()
}

// Close tears the feed down. In-flight responses are discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.cancelInflightLocked()
	e.session++
	e.closed = true
}

// Drain runs first and then keeps loading pages until the feed is exhausted,
// calling onPage after each page. It stops at the first error.
func (e *Engine) Drain(ctx context.Context, first *Fetch, onPage func(Outcome)) error {
	for f := first; f != nil; f = e.LoadMore() {
		out := f.Run(ctx)
		if onPage != nil {
			onPage(out)
		}
		if out.Err != nil {
			return out.Err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) canLoadLocked() bool {
	if !e.hasSubject || e.closed || !e.hasMore {
		return false
	}
	return e.state == StateIdle || e.state == StateErrored
}

func (e *Engine) beginLocked() *Fetch {
	ev := eventLoadMore
	if e.pages == 0 {
		ev = eventLoadInitial
	}

	next, ok := advance(e.state, ev)
	if !ok {
		slog.Warn("Ignoring illegal feed transition", "state", e.state, "event", ev)
		return nil
	}
	e.state = next

	req := model.PageRequest{
		Subject: e.subject,
		Mode:    e.mode,
		Limit:   e.limit,
	}
	switch e.mode {
	case model.ModeCursor:
		if e.cursor != nil {
			cursor := *e.cursor
			req.Cursor = &cursor
		}
	default:
		req.Offset = e.offset
	}

	abandon, cancel := context.WithCancel(context.Background())
	f := &Fetch{
		engine:  e,
		req:     req,
		session: e.session,
		initial: ev == eventLoadInitial,
		abandon: abandon,
		cancel:  cancel,
	}
	e.inflight = f
	return f
}

func (e *Engine) cancelInflightLocked() {
	if e.inflight != nil {
		e.inflight.cancel()
		e.inflight = nil
	}
}

func (e *Engine) complete(f *Fetch, page model.PageResult, err error) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := Outcome{
		Subject: f.req.Subject,
		Session: f.session,
		Initial: f.initial,
	}

	if f.session != e.session || e.inflight != f {
		slog.Debug("Discarding stale page",
			"subject", f.req.Subject.Key(),
			"session", f.session,
			"current_session", e.session)
		out.Err = common.ErrStaleResponse
		out.Kind = common.KindStale
		out.Stale = true
		return out
	}
	e.inflight = nil
	f.cancel()

	if err != nil {
		e.lastErr = err
		e.state, _ = advance(e.state, eventFail)
		out.Err = err
		out.Kind = common.Classify(err)
		out.HasMore = e.hasMore

		slog.Debug("Feed page failed",
			"subject", f.req.Subject.Key(),
			"page", e.pages+1,
			"error", err)
		return out
	}

	out.Appended = e.appendLocked(page.Items)
	e.pages++
	e.lastErr = nil
	if page.Balance != "" {
		e.balance = page.Balance
	}

	switch e.mode {
	case model.ModeCursor:
		e.hasMore = page.NextCursor != nil &&
			(f.req.Cursor == nil || *page.NextCursor != *f.req.Cursor)
		e.cursor = page.NextCursor
	default:
		e.hasMore = len(page.Items) == e.limit
		e.offset = e.pages * e.limit
	}

	ev := eventPage
	if !e.hasMore {
		ev = eventLastPage
	}
	e.state, _ = advance(e.state, ev)
	out.HasMore = e.hasMore

	slog.Debug("Feed page applied",
		"subject", f.req.Subject.Key(),
		"page", e.pages,
		"items", len(page.Items),
		"appended", out.Appended,
		"total", len(e.items),
		"has_more", e.hasMore)

	return out
}

func (e *Engine) appendLocked(items []model.Transaction) int {
	ref := e.subject.Reference()
	appended := 0
	for _, item := range items {
		if _, dup := e.seen[item.ID]; dup {
			slog.Debug("Dropping duplicate transaction", "id", item.ID, "subject", e.subject.Key())
			continue
		}
		e.seen[item.ID] = struct{}{}
		item.ResolveDirection(ref)
		e.items = append(e.items, item)
		appended++
	}
	return appended
}

// Fetch is one reserved page request. Run it exactly once.
type Fetch struct {
	abandon context.Context
	engine  *Engine
	cancel  context.CancelFunc
	req     model.PageRequest
	session uint64
	ran     atomic.Bool
	initial bool
}

// Request returns the page request this fetch will issue.
func (f *Fetch) Request() model.PageRequest {
	return f.req
}

// Initial reports whether this fetch loads the first page of its session.
func (f *Fetch) Initial() bool {
	return f.initial
}

// Run performs the request and applies the result to the engine.
// The request context is cancelled early if the session is superseded.
func (f *Fetch) Run(ctx context.Context) Outcome {
	if !f.ran.CompareAndSwap(false, true) {
		return Outcome{Subject: f.req.Subject, Session: f.session, Err: ErrFetchReused, Kind: common.KindNetwork}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(f.abandon, cancel)
	defer stop()

	page, err := f.engine.fetcher.FetchPage(ctx, f.req)
	return f.engine.complete(f, page, err)
}

// Outcome reports what a Fetch did to the feed.
type Outcome struct {
	Err      error
	Subject  model.Subject
	Kind     common.ErrorKind
	Session  uint64
	Appended int
	HasMore  bool
	Initial  bool
	Stale    bool
}
