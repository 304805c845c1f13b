package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// ErrRollbackFailed is joined onto a saga error when a compensation step
// could not be applied.
var ErrRollbackFailed = errors.New("rollback failed")

// sagaStep is one action of a saga. compensate may be nil for steps whose
// side effects are not undone.
type sagaStep struct {
	name       string
	action     func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// saga runs steps in order and, when one fails, compensates the committed
// steps in reverse order.
type saga struct {
	name   string
	steps  []sagaStep
	logger *slog.Logger
}

// run executes the saga. The returned error is the failing step's error,
// joined with ErrRollbackFailed and the compensation errors if any
// compensation failed. Compensations run on a context that survives
// cancellation of ctx.
func (s *saga) run(ctx context.Context) error {
	committed := make([]sagaStep, 0, len(s.steps))

	for _, step := range s.steps {
		if err := step.action(ctx); err != nil {
			level := slog.LevelError
			if model.IsKind(err, model.KindConflict) {
				level = slog.LevelInfo
			}
			s.logger.Log(ctx, level, "saga step failed", "saga", s.name, "step", step.name, "error", err)
			return s.rollback(context.WithoutCancel(ctx), committed, fmt.Errorf("%s: %w", step.name, err))
		}
		committed = append(committed, step)
	}
	return nil
}

func (s *saga) rollback(ctx context.Context, committed []sagaStep, cause error) error {
	var rollbackErrs []error

	for i := len(committed) - 1; i >= 0; i-- {
		step := committed[i]
		if step.compensate == nil {
			continue
		}
		if err := step.compensate(ctx); err != nil {
			s.logger.Error("saga compensation failed", "saga", s.name, "step", step.name, "error", err)
			rollbackErrs = append(rollbackErrs, fmt.Errorf("compensate %s: %w", step.name, err))
			continue
		}
		s.logger.Info("saga step compensated", "saga", s.name, "step", step.name)
	}

	if len(rollbackErrs) == 0 {
		return cause
	}
	return errors.Join(append([]error{cause, ErrRollbackFailed}, rollbackErrs...)...)
}
