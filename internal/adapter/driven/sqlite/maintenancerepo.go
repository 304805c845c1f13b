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
var _ driven.MaintenanceStore = (*MaintenanceRepo)(nil)

// maintenanceStateID is the primary key of the singleton state row.
const maintenanceStateID = "global"

// MaintenanceRepo is the SQLite implementation of the MaintenanceStore port.
// Transitions run as immediate transactions on the single writer connection.
type MaintenanceRepo struct {
	db *DB
}

// NewMaintenanceRepo creates a new MaintenanceRepo backed by the given DB.
func NewMaintenanceRepo(db *DB) *MaintenanceRepo {
	return &MaintenanceRepo{db: db}
}

// Get returns the current maintenance state, or ModeNormal defaults if the
// row has never been written.
func (r *MaintenanceRepo) Get(ctx context.Context) (model.MaintenanceState, error) {
	const query = `SELECT mode, operator, updated_at FROM maintenance_state WHERE id = ?`

	var mode, operator, updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, maintenanceStateID).Scan(&mode, &operator, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MaintenanceState{Mode: model.ModeNormal}, nil
	}
	if err != nil {
		return model.MaintenanceState{}, fmt.Errorf("get maintenance state: %w", err)
	}

	state := model.MaintenanceState{Mode: model.Mode(mode), Operator: operator}
	state.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.MaintenanceState{}, fmt.Errorf("parse maintenance updated_at: %w", err)
	}
	return state, nil
}

// Transition moves the global state to the given mode inside a single write
// transaction. When the state already equals to, the transaction is rolled
// back without writing and the result carries Reason ALREADY_<MODE>.
func (r *MaintenanceRepo) Transition(ctx context.Context, to model.Mode, operator string) (model.TransitionResult, error) {
	if !to.Valid() {
		return model.TransitionResult{}, fmt.Errorf("transition: unknown mode %q", to)
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return model.TransitionResult{}, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	from := model.ModeNormal
	var current string
	err = tx.QueryRowContext(ctx, `SELECT mode FROM maintenance_state WHERE id = ?`, maintenanceStateID).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return model.TransitionResult{}, fmt.Errorf("read maintenance mode: %w", err)
	default:
		from = model.Mode(current)
	}

	if from == to {
		return model.TransitionResult{OK: false, From: from, To: to, Reason: model.AlreadyReason(to)}, nil
	}

	query := `INSERT INTO maintenance_state (id, mode, operator, updated_at)
		VALUES (?, ?, ?, ` + sqliteTimestamp + `)
		ON CONFLICT(id) DO UPDATE SET
			mode       = excluded.mode,
			operator   = excluded.operator,
			updated_at = excluded.updated_at`

	if _, err := tx.ExecContext(ctx, query, maintenanceStateID, string(to), operator); err != nil {
		return model.TransitionResult{}, fmt.Errorf("write maintenance mode: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.TransitionResult{}, fmt.Errorf("commit transition: %w", err)
	}

	return model.TransitionResult{OK: true, From: from, To: to}, nil
}
