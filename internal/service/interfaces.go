// Package service defines the interfaces between the feed core and its collaborators.
package service

import (
	"context"

	"github.com/Veraticus/moneyfeed/internal/model"
)

// PageFetcher issues one page request against the backend.
type PageFetcher interface {
	FetchPage(ctx context.Context, req model.PageRequest) (model.PageResult, error)
}

// Gate reports whether a feed may initialize.
type Gate interface {
	IsAuthenticated() bool
}

// Session is the authentication collaborator.
type Session interface {
	Gate
	Login(ctx context.Context, username, password string) error
	Logout() error
	CurrentUser() (model.User, bool)
}

// AccountLister lists the signed-in user's accounts.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
}
