package application

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
	"github.com/ericfisherdev/opscenter/internal/domain/port/driven"
)

// StatusService merges control panel resource metrics with the query
// protocol player count.
type StatusService struct {
	probe    driven.PlayerProbe
	serverID string
	logger   *slog.Logger
}

// NewStatusService creates a StatusService. probe may be nil, in which case
// player counts are always reported as unknown.
func NewStatusService(probe driven.PlayerProbe, serverID string, logger *slog.Logger) *StatusService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusService{
		probe:    probe,
		serverID: serverID,
		logger:   logger.With("component", "status"),
	}
}

// Snapshot fetches resources and players concurrently. A resource failure
// fails the snapshot; a probe failure only leaves the player counts nil.
func (s *StatusService) Snapshot(ctx context.Context, control driven.ControlPanel) (model.StatusSnapshot, error) {
	var (
		resources model.ServerResources
		players   *model.PlayerCount
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := control.GetResources(gctx, s.serverID)
		if err != nil {
			return fmt.Errorf("get resources: %w", err)
		}
		resources = res
		return nil
	})

	if s.probe != nil {
		g.Go(func() error {
			count, err := s.probe.Probe(gctx)
			if err != nil {
				s.logger.Debug("player probe failed", "error", err)
				return nil
			}
			players = &count
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return model.StatusSnapshot{}, err
	}

	snap := model.StatusSnapshot{Resources: resources}
	if players != nil {
		snap.PlayersOnline = &players.Online
		snap.MaxPlayers = &players.Max
	}
	return snap, nil
}
