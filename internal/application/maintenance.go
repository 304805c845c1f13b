package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
	"github.com/ericfisherdev/opscenter/internal/domain/port/driven"
)

const (
	whitelistOn  = "whitelist on"
	whitelistOff = "whitelist off"
)

// MaintenanceOutcome describes a completed maintenance transition.
type MaintenanceOutcome struct {
	From    model.Mode
	To      model.Mode
	Message string
}

// MaintenanceService runs the maintenance start and stop sagas against the
// global maintenance lock and the operator's control panel.
type MaintenanceService struct {
	store    driven.MaintenanceStore
	serverID string
	logger   *slog.Logger
}

// NewMaintenanceService creates a MaintenanceService for one game server.
func NewMaintenanceService(store driven.MaintenanceStore, serverID string, logger *slog.Logger) *MaintenanceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceService{
		store:    store,
		serverID: serverID,
		logger:   logger.With("component", "maintenance"),
	}
}

// State returns the current maintenance state.
func (s *MaintenanceService) State(ctx context.Context) (model.MaintenanceState, error) {
	state, err := s.store.Get(ctx)
	if err != nil {
		return model.MaintenanceState{}, fmt.Errorf("get maintenance state: %w", err)
	}
	return state, nil
}

// Start enters maintenance: it takes the lock, warns online players and
// turns the allow-list on. If the lock is already held a Conflict error is
// returned and no remote call is made. If a remote step fails the lock is
// released back to NORMAL and the remote error is returned.
func (s *MaintenanceService) Start(ctx context.Context, operator model.Operator, control driven.ControlPanel) (MaintenanceOutcome, error) {
	name := operator.DisplayName()

	sg := &saga{
		name:   "maintenance.start",
		logger: s.logger,
		steps: []sagaStep{
			s.lockStep(model.ModeMaintenance, model.ModeNormal, name),
			s.commandStep(control, "announce", fmt.Sprintf("say [OpsCenter] %s started maintenance: the server is going down for maintenance, please log off soon.", name)),
			s.commandStep(control, "allow-list", whitelistOn),
		},
	}
	if err := sg.run(ctx); err != nil {
		return MaintenanceOutcome{}, err
	}

	s.logger.Info("maintenance started", "operator", name)
	return MaintenanceOutcome{
		From:    model.ModeNormal,
		To:      model.ModeMaintenance,
		Message: "maintenance started (allow-list enabled)",
	}, nil
}

// Stop leaves maintenance: it releases the lock, turns the allow-list off
// and tells players the server is back. Failure handling mirrors Start.
func (s *MaintenanceService) Stop(ctx context.Context, operator model.Operator, control driven.ControlPanel) (MaintenanceOutcome, error) {
	name := operator.DisplayName()

	sg := &saga{
		name:   "maintenance.stop",
		logger: s.logger,
		steps: []sagaStep{
			s.lockStep(model.ModeNormal, model.ModeMaintenance, name),
			s.commandStep(control, "allow-list", whitelistOff),
			s.commandStep(control, "announce", fmt.Sprintf("say [OpsCenter] %s finished maintenance: the server is back to normal, welcome back.", name)),
		},
	}
	if err := sg.run(ctx); err != nil {
		return MaintenanceOutcome{}, err
	}

	s.logger.Info("maintenance stopped", "operator", name)
	return MaintenanceOutcome{
		From:    model.ModeMaintenance,
		To:      model.ModeNormal,
		Message: "maintenance stopped (allow-list disabled)",
	}, nil
}

// lockStep transitions the global state to `to`. Its compensation restores
// `from` under the rollback operator.
func (s *MaintenanceService) lockStep(to, from model.Mode, operator string) sagaStep {
	return sagaStep{
		name: "lock",
		action: func(ctx context.Context) error {
			res, err := s.store.Transition(ctx, to, operator)
			if err != nil {
				return fmt.Errorf("transition to %s: %w", to, err)
			}
			if !res.OK {
				return model.ConflictError(res.Reason, conflictMessage(to))
			}
			return nil
		},
		compensate: func(ctx context.Context) error {
			res, err := s.store.Transition(ctx, from, model.RollbackOperator)
			if err != nil {
				return fmt.Errorf("transition to %s: %w", from, err)
			}
			if !res.OK {
				s.logger.Warn("rollback found state already restored", "mode", from)
			}
			return nil
		},
	}
}

func (s *MaintenanceService) commandStep(control driven.ControlPanel, name, command string) sagaStep {
	return sagaStep{
		name: name,
		action: func(ctx context.Context) error {
			return control.SendCommand(ctx, s.serverID, command)
		},
	}
}

func conflictMessage(to model.Mode) string {
	if to == model.ModeMaintenance {
		return "maintenance is already active"
	}
	return "maintenance is not active"
}
