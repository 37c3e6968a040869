package feed

import (
	"github.com/Veraticus/moneyfeed/internal/common"
	"github.com/Veraticus/moneyfeed/internal/model"
)

// Snapshot is the read-only view a renderer consumes.
type Snapshot struct {
	LastError      error
	Subject        model.Subject
	Balance        string
	ErrorKind      common.ErrorKind
	Items          []model.Transaction
	Session        uint64
	Pages          int
	State          State
	HasMore        bool
	IsFetching     bool
	IsFetchingMore bool
}

// Snapshot copies the current feed state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := make([]model.Transaction, len(e.items))
	copy(items, e.items)

	return Snapshot{
		Subject:        e.subject,
		Items:          items,
		Balance:        e.balance,
		Session:        e.session,
		Pages:          e.pages,
		State:          e.state,
		HasMore:        e.hasSubject && e.hasMore,
		IsFetching:     e.state == StateLoadingInitial,
		IsFetchingMore: e.state == StateLoadingMore,
		LastError:      e.lastErr,
		ErrorKind:      common.Classify(e.lastErr),
	}
}

// Len returns the number of accumulated transactions.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// Empty reports whether nothing has been accumulated yet.
func (s Snapshot) Empty() bool {
	return len(s.Items) == 0
}

// InitialFailure reports a failed first load, which replaces the whole feed with an error.
func (s Snapshot) InitialFailure() bool {
	return s.LastError != nil && s.Pages == 0
}
