package model

// PowerSignal is a power action understood by the control panel.
type PowerSignal string

const (
	PowerStart   PowerSignal = "start"
	PowerStop    PowerSignal = "stop"
	PowerRestart PowerSignal = "restart"
	PowerKill    PowerSignal = "kill"
)

// Valid reports whether s is a known power signal.
func (s PowerSignal) Valid() bool {
	switch s {
	case PowerStart, PowerStop, PowerRestart, PowerKill:
		return true
	}
	return false
}

// ServerResources holds the control panel's live resource metrics for one
// server. Metric fields are nil when the panel omitted them.
type ServerResources struct {
	State        string
	CPUAbsolute  *float64
	MemoryBytes  *int64
	DiskBytes    *int64
	UptimeMillis *int64
}

// PlayerCount is the result of a query-protocol probe.
type PlayerCount struct {
	Online int
	Max    int
	Raw    map[string]string
}

// StatusSnapshot merges control panel metrics with the player probe.
// PlayersOnline and MaxPlayers are nil when the probe failed.
type StatusSnapshot struct {
	Resources     ServerResources
	PlayersOnline *int
	MaxPlayers    *int
}

// Account is the control panel account a key belongs to.
type Account struct {
	ID        int64
	Username  string
	Email     string
	FirstName string
	LastName  string
	Admin     bool
}
