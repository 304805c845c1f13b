package model

// Operator is an authenticated user of the orchestration API, as resolved by
// the identity provider.
type Operator struct {
	UID   string
	Email string
	Name  string
}

// DisplayName returns the label recorded against state changes and shown in
// in-game announcements.
func (o Operator) DisplayName() string {
	switch {
	case o.Email != "":
		return o.Email
	case o.UID != "":
		return o.UID
	default:
		return "unknown"
	}
}
