package tui

import (
	"github.com/Veraticus/moneyfeed/internal/feed"
	"github.com/Veraticus/moneyfeed/internal/model"
)

// Data loading messages.
type accountsLoadedMsg struct {
	err      error
	accounts []model.Account
}

type pageLoadedMsg struct {
	engine  *feed.Engine
	outcome feed.Outcome
}

// frameMsg runs the scroll trigger's pending evaluation.
type frameMsg struct{}
