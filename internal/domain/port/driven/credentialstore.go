// Package driven defines the outbound ports the application depends on.
package driven

import (
	"context"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// CredentialStore defines the driven port for encrypted credential
// persistence. The store never sees plaintext; encryption is the vault's job.
type CredentialStore interface {
	// Put stores the record for record.OwnerID, replacing every column of any
	// previous record. UpdatedAt is assigned by the store.
	Put(ctx context.Context, record model.CredentialRecord) error

	// Get returns the record for ownerID, or (nil, nil) when no complete
	// record exists.
	Get(ctx context.Context, ownerID string) (*model.CredentialRecord, error)
}
