// Package redisstore implements the MaintenanceStore port on Redis, for
// deployments that already run a Redis instance next to the orchestrator.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
	"github.com/ericfisherdev/opscenter/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MaintenanceStore = (*MaintenanceRepo)(nil)

const (
	defaultKey = "opscenter:maintenance:global"

	fieldMode      = "mode"
	fieldOperator  = "operator"
	fieldUpdatedAt = "updated_at"

	// maxTxAttempts bounds how often an optimistic transaction is re-run
	// after losing a WATCH race.
	maxTxAttempts = 8
)

// MaintenanceRepo stores the global maintenance state in a Redis hash and
// serializes transitions with WATCH/MULTI/EXEC.
type MaintenanceRepo struct {
	rdb *redis.Client
	key string
}

// NewMaintenanceRepo creates a MaintenanceRepo. An empty key selects the
// default "opscenter:maintenance:global".
func NewMaintenanceRepo(rdb *redis.Client, key string) *MaintenanceRepo {
	if key == "" {
		key = defaultKey
	}
	return &MaintenanceRepo{rdb: rdb, key: key}
}

// Get returns the current state, or ModeNormal defaults if the hash is absent.
func (r *MaintenanceRepo) Get(ctx context.Context) (model.MaintenanceState, error) {
	values, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return model.MaintenanceState{}, fmt.Errorf("get maintenance state: %w", err)
	}
	return decodeState(values)
}

// Transition moves the state to the given mode. The read and the write run
// under WATCH on the state key; a concurrent writer aborts EXEC and the body
// is re-run against the new value, so the loser observes the winner's mode
// and reports ALREADY_<MODE>.
func (r *MaintenanceRepo) Transition(ctx context.Context, to model.Mode, operator string) (model.TransitionResult, error) {
	if !to.Valid() {
		return model.TransitionResult{}, fmt.Errorf("transition: unknown mode %q", to)
	}

	var result model.TransitionResult
	txf := func(tx *redis.Tx) error {
		values, err := tx.HGetAll(ctx, r.key).Result()
		if err != nil {
			return fmt.Errorf("read maintenance mode: %w", err)
		}
		current, err := decodeState(values)
		if err != nil {
			return err
		}

		if current.Mode == to {
			result = model.TransitionResult{OK: false, From: current.Mode, To: to, Reason: model.AlreadyReason(to)}
			return nil
		}

		now, err := tx.Time(ctx).Result()
		if err != nil {
			return fmt.Errorf("read server time: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key,
				fieldMode, string(to),
				fieldOperator, operator,
				fieldUpdatedAt, strconv.FormatInt(now.UnixMilli(), 10),
			)
			return nil
		})
		if err != nil {
			return err
		}

		result = model.TransitionResult{OK: true, From: current.Mode, To: to}
		return nil
	}

	for range maxTxAttempts {
		err := r.rdb.Watch(ctx, txf, r.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return model.TransitionResult{}, fmt.Errorf("transition to %s: %w", to, err)
		}
		return result, nil
	}

	return model.TransitionResult{}, fmt.Errorf("transition to %s: %w after %d attempts", to, redis.TxFailedErr, maxTxAttempts)
}

func decodeState(values map[string]string) (model.MaintenanceState, error) {
	state := model.MaintenanceState{Mode: model.ModeNormal}
	if mode, ok := values[fieldMode]; ok && mode != "" {
		state.Mode = model.Mode(mode)
	}
	state.Operator = values[fieldOperator]

	if raw, ok := values[fieldUpdatedAt]; ok && raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.MaintenanceState{}, fmt.Errorf("parse maintenance updated_at %q: %w", raw, err)
		}
		state.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return state, nil
}
