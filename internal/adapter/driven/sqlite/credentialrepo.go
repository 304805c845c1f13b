package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
	"github.com/ericfisherdev/opscenter/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// It stores ciphertext, nonce and tag as opaque blobs; it never decrypts.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// Put stores or replaces the credential record for record.OwnerID. All crypto
// columns are overwritten together; updated_at is assigned by SQLite.
func (r *CredentialRepo) Put(ctx context.Context, record model.CredentialRecord) error {
	if !record.Complete() {
		return fmt.Errorf("put credential %q: incomplete record", record.OwnerID)
	}

	query := `INSERT INTO operator_credentials (owner_id, ciphertext, nonce, auth_tag, last4, updated_at)
		VALUES (?, ?, ?, ?, ?, ` + sqliteTimestamp + `)
		ON CONFLICT(owner_id) DO UPDATE SET
			ciphertext = excluded.ciphertext,
			nonce      = excluded.nonce,
			auth_tag   = excluded.auth_tag,
			last4      = excluded.last4,
			updated_at = excluded.updated_at`

	_, err := r.db.Writer.ExecContext(ctx, query,
		record.OwnerID, record.Ciphertext, record.Nonce, record.AuthTag, record.Last4)
	if err != nil {
		return fmt.Errorf("put credential %q: %w", record.OwnerID, err)
	}
	return nil
}

// Get retrieves the credential record for ownerID.
// Returns (nil, nil) if no record exists or the stored record is incomplete.
func (r *CredentialRepo) Get(ctx context.Context, ownerID string) (*model.CredentialRecord, error) {
	const query = `SELECT ciphertext, nonce, auth_tag, last4, updated_at
		FROM operator_credentials WHERE owner_id = ?`

	record := model.CredentialRecord{OwnerID: ownerID}
	var updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, ownerID).Scan(
		&record.Ciphertext, &record.Nonce, &record.AuthTag, &record.Last4, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %q: %w", ownerID, err)
	}

	if !record.Complete() {
		return nil, nil
	}

	record.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at for credential %q: %w", ownerID, err)
	}

	return &record, nil
}
