package model

import "time"

// CredentialRecord is the persisted, encrypted form of an operator's control
// panel key. Ciphertext, Nonce and AuthTag always come from a single
// encryption call; a record missing any of them is treated as absent.
type CredentialRecord struct {
	OwnerID    string
	Ciphertext []byte
	Nonce      []byte
	AuthTag    []byte
	Last4      string
	UpdatedAt  time.Time
}

// Complete reports whether all crypto fields are present.
func (r CredentialRecord) Complete() bool {
	return len(r.Ciphertext) > 0 && len(r.Nonce) > 0 && len(r.AuthTag) > 0
}

// CredentialMeta is the display-safe view of a bound credential.
type CredentialMeta struct {
	Bound     bool
	Last4     string
	UpdatedAt time.Time
}
