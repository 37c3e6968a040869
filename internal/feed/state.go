package feed

// State is the Pagination Engine's lifecycle state.
type State int

// Engine states.
const (
	StateIdle State = iota
	StateLoadingInitial
	StateLoadingMore
	StateExhausted
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingInitial:
		return "loading-initial"
	case StateLoadingMore:
		return "loading-more"
	case StateExhausted:
		return "exhausted"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Loading reports whether a request is in flight.
func (s State) Loading() bool {
	return s == StateLoadingInitial || s == StateLoadingMore
}

type event int

const (
	eventLoadInitial event = iota
	eventLoadMore
	eventPage
	eventLastPage
	eventFail
)

func (e event) String() string {
	switch e {
	case eventLoadInitial:
		return "load-initial"
	case eventLoadMore:
		return "load-more"
	case eventPage:
		return "page"
	case eventLastPage:
		return "last-page"
	case eventFail:
		return "fail"
	}
	return "unknown"
}

// transitions lists every legal move. A session reset returns to StateIdle
// from anywhere and is handled outside the table.
var transitions = map[State]map[event]State{
	StateIdle: {
		eventLoadInitial: StateLoadingInitial,
		eventLoadMore:    StateLoadingMore,
	},
	StateLoadingInitial: {
		eventPage:     StateIdle,
		eventLastPage: StateExhausted,
		eventFail:     StateErrored,
	},
	StateLoadingMore: {
		eventPage:     StateIdle,
		eventLastPage: StateExhausted,
		eventFail:     StateErrored,
	},
	StateErrored: {
		eventLoadInitial: StateLoadingInitial,
		eventLoadMore:    StateLoadingMore,
	},
	StateExhausted: {},
}

// advance returns the state reached from s on e, or false when e is not legal in s.
func advance(s State, e event) (State, bool) {
	next, ok := transitions[s][e]
	return next, ok
}
