package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/opscenter/internal/application"
	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

func ptr[T any](v T) *T { return &v }

func runningResources() model.ServerResources {
	return model.ServerResources{
		State:        "running",
		CPUAbsolute:  ptr(12.5),
		MemoryBytes:  ptr(int64(2 << 30)),
		DiskBytes:    ptr(int64(5 << 30)),
		UptimeMillis: ptr(int64(3_600_000)),
	}
}

func TestStatusService_MergesResourcesAndPlayers(t *testing.T) {
	control := &mockControlPanel{resources: runningResources()}
	probe := &mockProbe{probe: func(context.Context) (model.PlayerCount, error) {
		return model.PlayerCount{Online: 3, Max: 20}, nil
	}}

	snap, err := application.NewStatusService(probe, "srv-1", discardLogger).Snapshot(context.Background(), control)
	require.NoError(t, err)

	assert.Equal(t, "running", snap.Resources.State)
	require.NotNil(t, snap.PlayersOnline)
	require.NotNil(t, snap.MaxPlayers)
	assert.Equal(t, 3, *snap.PlayersOnline)
	assert.Equal(t, 20, *snap.MaxPlayers)
}

func TestStatusService_ProbeTimeoutLeavesPlayersNil(t *testing.T) {
	control := &mockControlPanel{resources: runningResources()}
	probe := &mockProbe{probe: func(ctx context.Context) (model.PlayerCount, error) {
		probeCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		<-probeCtx.Done()
		return model.PlayerCount{}, model.TimeoutError("query probe", probeCtx.Err())
	}}

	snap, err := application.NewStatusService(probe, "srv-1", discardLogger).Snapshot(context.Background(), control)
	require.NoError(t, err)

	assert.Equal(t, "running", snap.Resources.State)
	assert.Equal(t, 12.5, *snap.Resources.CPUAbsolute)
	assert.Nil(t, snap.PlayersOnline)
	assert.Nil(t, snap.MaxPlayers)
}

func TestStatusService_ResourceFailureFails(t *testing.T) {
	upstream := model.UpstreamError("get resources", 502, "", nil)
	control := &mockControlPanel{resourcesErr: upstream}
	probe := &mockProbe{probe: func(context.Context) (model.PlayerCount, error) {
		return model.PlayerCount{Online: 1, Max: 10}, nil
	}}

	_, err := application.NewStatusService(probe, "srv-1", discardLogger).Snapshot(context.Background(), control)
	require.Error(t, err)
	assert.True(t, errors.Is(err, upstream))
}

func TestStatusService_NilProbe(t *testing.T) {
	control := &mockControlPanel{resources: runningResources()}

	snap, err := application.NewStatusService(nil, "srv-1", discardLogger).Snapshot(context.Background(), control)
	require.NoError(t, err)
	assert.Nil(t, snap.PlayersOnline)
}
