package driven

import (
	"context"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// IdentityVerifier defines the driven port for validating bearer identity
// tokens issued by the external identity provider.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (model.Operator, error)
}
