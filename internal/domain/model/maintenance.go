package model

import "time"

// Mode is the global maintenance mode of the game server.
type Mode string

const (
	ModeNormal      Mode = "NORMAL"
	ModeMaintenance Mode = "MAINTENANCE"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeNormal || m == ModeMaintenance
}

// RollbackOperator is recorded as the operator of compensating transitions.
const RollbackOperator = "system-rollback"

// MaintenanceState is the single global maintenance record. A missing record
// reads as ModeNormal with an empty operator and zero UpdatedAt.
type MaintenanceState struct {
	Mode      Mode
	Operator  string
	UpdatedAt time.Time
}

// TransitionResult reports the outcome of a mode transition. When OK is false
// no write was performed and Reason is "ALREADY_<MODE>".
type TransitionResult struct {
	OK     bool
	From   Mode
	To     Mode
	Reason string
}

// AlreadyReason returns the no-op reason code for a transition into m.
func AlreadyReason(m Mode) string {
	return "ALREADY_" + string(m)
}
