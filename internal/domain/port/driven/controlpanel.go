package driven

import (
	"context"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// ControlPanel defines the driven port for the game panel's client API. An
// implementation is bound to a single operator's key. Failures are returned
// as *model.Error of kind Upstream or Timeout and are never retried.
type ControlPanel interface {
	GetResources(ctx context.Context, serverID string) (model.ServerResources, error)
	SendCommand(ctx context.Context, serverID, command string) error
	SetPower(ctx context.Context, serverID string, signal model.PowerSignal) error
	// VerifyAccount fetches the account that owns the key. Used to validate a
	// freshly bound key.
	VerifyAccount(ctx context.Context) (model.Account, error)
}

// ControlPanelFactory builds a ControlPanel authenticated with the given key.
type ControlPanelFactory func(secret string) ControlPanel
