package driven

import (
	"context"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// PlayerProbe defines the driven port for the best-effort live player count.
type PlayerProbe interface {
	Probe(ctx context.Context) (model.PlayerCount, error)
}
