package server

import (
	"context"

	"github.com/onnwee/jackbot/chat"
	"github.com/onnwee/jackbot/config"
	"github.com/onnwee/jackbot/ownership"
	"github.com/onnwee/jackbot/status"
	"github.com/onnwee/jackbot/users"
)

// ControlSender forwards a stored chat event to the control bridge.
type ControlSender interface {
	Send(ev chat.Event) error
}

// Correlator recomputes and persists a user's NFT ownership.
type Correlator interface {
	Correlate(ctx context.Context, rec users.Record) (ownership.Result, error)
}

// UserIDResolver looks up a platform user id by login.
type UserIDResolver interface {
	GetUserID(ctx context.Context, login string) (string, error)
}

// Deps are the components the handlers operate on. Bridge and Helix may be nil.
type Deps struct {
	Config     *config.Config
	Registry   *status.Registry
	Store      *chat.Store
	Bridge     ControlSender
	Users      users.Repository
	Correlator Correlator
	Helix      UserIDResolver
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}
