package model

import "fmt"

// DefaultPageLimit is the page size used when a feed does not set one.
const DefaultPageLimit = 20

// Mode selects how a backend endpoint paginates.
type Mode string

// Pagination modes.
const (
	ModeCursor Mode = "cursor"
	ModeOffset Mode = "offset"
)

// ParseMode validates a configured pagination mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCursor:
		return ModeCursor, nil
	case ModeOffset:
		return ModeOffset, nil
	}
	return "", fmt.Errorf("unknown pagination mode %q", s)
}

// SubjectKind tells whether a feed follows an account or the signed-in user.
type SubjectKind string

// Subject kinds.
const (
	SubjectAccount SubjectKind = "account"
	SubjectUser    SubjectKind = "user"
)

// Subject is the entity whose transactions a feed displays.
type Subject struct {
	Label string
	Kind  SubjectKind
	ID    int64
}

// AccountSubject builds a subject for an account feed.
func AccountSubject(id int64, label string) Subject {
	return Subject{Kind: SubjectAccount, ID: id, Label: label}
}

// UserSubject builds a subject for the signed-in user's feed.
func UserSubject(id int64, label string) Subject {
	return Subject{Kind: SubjectUser, ID: id, Label: label}
}

// Key identifies the subject independently of its label.
func (s Subject) Key() string {
	return fmt.Sprintf("%s:%d", s.Kind, s.ID)
}

// Reference returns the direction reference for this subject.
func (s Subject) Reference() Reference {
	if s.Kind == SubjectAccount {
		return Reference{AccountID: s.ID}
	}
	return Reference{UserID: s.ID}
}

// String returns the label, falling back to the key.
func (s Subject) String() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Key()
}

// PageRequest identifies the next page to fetch.
// Cursor is used by cursor-mode endpoints, Offset by offset-mode ones.
type PageRequest struct {
	Cursor  *string
	Subject Subject
	Mode    Mode
	Offset  int
	Limit   int
}

// PageResult is one page returned by the backend.
// NextCursor is only set by cursor-mode endpoints; nil signals exhaustion.
// Balance is the account's current balance when the endpoint reports one.
type PageResult struct {
	NextCursor *string
	Balance    string
	Items      []Transaction
}

// Account is a backend account summary.
type Account struct {
	Balance string
	Name    string
	Type    string
	ID      int64
}

// User is the authenticated principal.
type User struct {
	Username string
	ID       int64
}
