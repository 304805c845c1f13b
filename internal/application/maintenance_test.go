package application_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/opscenter/internal/application"
	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var alice = model.Operator{UID: "uid-alice", Email: "alice@example.com"}

func newMaintenanceService(store *mockMaintenanceStore) *application.MaintenanceService {
	return application.NewMaintenanceService(store, "srv-1", discardLogger)
}

func TestMaintenanceService_StartSuccess(t *testing.T) {
	store := newMockMaintenanceStore(model.ModeNormal)
	control := &mockControlPanel{}

	out, err := newMaintenanceService(store).Start(context.Background(), alice, control)
	require.NoError(t, err)
	assert.Equal(t, model.ModeNormal, out.From)
	assert.Equal(t, model.ModeMaintenance, out.To)
	assert.NotEmpty(t, out.Message)

	cmds := control.sentCommands()
	require.Len(t, cmds, 2)
	assert.True(t, strings.HasPrefix(cmds[0], "say [OpsCenter] alice@example.com started maintenance"))
	assert.Equal(t, "whitelist on", cmds[1])

	state, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ModeMaintenance, state.Mode)
	assert.Equal(t, "alice@example.com", state.Operator)
}

func TestMaintenanceService_StartConflictMakesNoRemoteCalls(t *testing.T) {
	store := newMockMaintenanceStore(model.ModeMaintenance)
	control := &mockControlPanel{}

	_, err := newMaintenanceService(store).Start(context.Background(), alice, control)
	require.Error(t, err)

	var appErr *model.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, model.KindConflict, appErr.Kind)
	assert.Equal(t, "ALREADY_MAINTENANCE", appErr.Code)

	assert.Empty(t, control.sentCommands())
	assert.Len(t, store.transitions(), 1, "no compensation for a lock that was never taken")
}

func TestMaintenanceService_StartRollsBackWhenAllowListFails(t *testing.T) {
	store := newMockMaintenanceStore(model.ModeNormal)
	upstream := model.UpstreamError("send command", 502, "bad gateway", nil)
	control := &mockControlPanel{failCommand: "whitelist on", commandErr: upstream}

	_, err := newMaintenanceService(store).Start(context.Background(), alice, control)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindUpstream))
	assert.False(t, errors.Is(err, application.ErrRollbackFailed))

	state, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ModeNormal, state.Mode)
	assert.Equal(t, model.RollbackOperator, state.Operator)

	// The announcement already went out and is not retracted.
	cmds := control.sentCommands()
	require.Len(t, cmds, 2)
	assert.Contains(t, cmds[0], "started maintenance")

	assert.Equal(t, []transitionCall{
		{To: model.ModeMaintenance, Operator: "alice@example.com"},
		{To: model.ModeNormal, Operator: model.RollbackOperator},
	}, store.transitions())
}

func TestMaintenanceService_StartRollsBackOnTimeout(t *testing.T) {
	store := newMockMaintenanceStore(model.ModeNormal)
	timeout := model.TimeoutError("send command", context.DeadlineExceeded)
	control := &mockControlPanel{failCommand: "say [OpsCenter] uid-bob started maintenance: the server is going down for maintenance, please log off soon.", commandErr: timeout}

	_, err := newMaintenanceService(store).Start(context.Background(), model.Operator{UID: "uid-bob"}, control)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindTimeout))
	assert.Len(t, control.sentCommands(), 1, "allow-list step is skipped")

	state, _ := store.Get(context.Background())
	assert.Equal(t, model.ModeNormal, state.Mode)
}

func TestMaintenanceService_RollbackFailureDoesNotMaskCause(t *testing.T) {
	store := newMockMaintenanceStore(model.ModeNormal)
	store.failOperator = model.RollbackOperator
	store.transitionErr = errors.New("database is locked")
	upstream := model.UpstreamError("send command", 500, "", nil)
	control := &mockControlPanel{failCommand: "whitelist on", commandErr: upstream}

	_, err := newMaintenanceService(store).Start(context.Background(), alice, control)
	require.Error(t, err)
	assert.ErrorIs(t, err, application.ErrRollbackFailed)
	assert.ErrorIs(t, err, store.transitionErr)
	assert.True(t, model.IsKind(err, model.KindUpstream), "original error kind is preserved")

	state, _ := store.Get(context.Background())
	assert.Equal(t, model.ModeMaintenance, state.Mode)
}

func TestMaintenanceService_RollbackSurvivesCanceledRequest(t *testing.T) {
	store := newMockMaintenanceStore(model.ModeNormal)
	ctx, cancel := context.WithCancel(context.Background())

	control := &cancelingControlPanel{cancel: cancel}

	_, err := newMaintenanceService(store).Start(ctx, alice, control)
	require.Error(t, err)

	state, _ := store.Get(context.Background())
	assert.Equal(t, model.ModeNormal, state.Mode)
}

func TestMaintenanceService_StopSuccess(t *testing.T) {
	store := newMockMaintenanceStore(model.ModeMaintenance)
	control := &mockControlPanel{}

	out, err := newMaintenanceService(store).Stop(context.Background(), alice, control)
	require.NoError(t, err)
	assert.Equal(t, model.ModeNormal, out.To)

	cmds := control.sentCommands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "whitelist off", cmds[0])
	assert.Contains(t, cmds[1], "finished maintenance")
}

func TestMaintenanceService_StopConflict(t *testing.T) {
	store := newMockMaintenanceStore(model.ModeNormal)
	control := &mockControlPanel{}

	_, err := newMaintenanceService(store).Stop(context.Background(), alice, control)
	require.Error(t, err)

	var appErr *model.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ALREADY_NORMAL", appErr.Code)
	assert.Empty(t, control.sentCommands())
}

func TestMaintenanceService_StopRollsBackToMaintenance(t *testing.T) {
	store := newMockMaintenanceStore(model.ModeMaintenance)
	control := &mockControlPanel{failCommand: "whitelist off", commandErr: model.UpstreamError("send command", 503, "", nil)}

	_, err := newMaintenanceService(store).Stop(context.Background(), alice, control)
	require.Error(t, err)

	state, _ := store.Get(context.Background())
	assert.Equal(t, model.ModeMaintenance, state.Mode)
	assert.Equal(t, model.RollbackOperator, state.Operator)
}

func TestMaintenanceService_State(t *testing.T) {
	store := newMockMaintenanceStore(model.ModeMaintenance)

	state, err := newMaintenanceService(store).State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ModeMaintenance, state.Mode)
}

// cancelingControlPanel cancels the request context during the first command
// and then fails it, the way a client disconnect surfaces mid-saga.
type cancelingControlPanel struct {
	mockControlPanel
	cancel context.CancelFunc
}

func (c *cancelingControlPanel) SendCommand(ctx context.Context, _ string, _ string) error {
	c.cancel()
	return model.TimeoutError("send command", ctx.Err())
}

func TestMaintenanceService_LogLevelByFailureKind(t *testing.T) {
	tests := []struct {
		name      string
		mode      model.Mode
		control   *mockControlPanel
		wantError bool
	}{
		{
			name:    "conflict is not an error",
			mode:    model.ModeMaintenance,
			control: &mockControlPanel{},
		},
		{
			name:      "remote failure is an error",
			mode:      model.ModeNormal,
			control:   &mockControlPanel{failCommand: "whitelist on", commandErr: model.UpstreamError("send command", 502, "", nil)},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			svc := application.NewMaintenanceService(newMockMaintenanceStore(tt.mode), "srv-1", logger)

			_, err := svc.Start(context.Background(), alice, tt.control)
			require.Error(t, err)

			assert.Contains(t, buf.String(), "saga step failed")
			assert.Equal(t, tt.wantError, strings.Contains(buf.String(), `"level":"ERROR"`))
		})
	}
}
