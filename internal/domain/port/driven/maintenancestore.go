package driven

import (
	"context"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// MaintenanceStore defines the driven port for the global maintenance flag.
// Transition is the only mutation and must run inside the backing store's
// transaction primitive so that concurrent calls are serialized.
type MaintenanceStore interface {
	// Get returns the current state, or ModeNormal defaults when none exists.
	Get(ctx context.Context) (model.MaintenanceState, error)

	// Transition moves the state to the given mode. If the state is already
	// in that mode, no write is performed and the result has OK=false with
	// Reason "ALREADY_<MODE>". The error is non-nil only when the store
	// itself failed.
	Transition(ctx context.Context, to model.Mode, operator string) (model.TransitionResult, error)
}
