// Package httphandler is the JSON API driving adapter.
package httphandler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ericfisherdev/opscenter/internal/application"
	"github.com/ericfisherdev/opscenter/internal/domain/model"
	"github.com/ericfisherdev/opscenter/internal/domain/port/driven"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "opscenter-api"

// CredentialVault is the subset of the vault used by the key endpoints.
type CredentialVault interface {
	Bind(ctx context.Context, ownerID, secret string) (string, error)
	Meta(ctx context.Context, ownerID string) (model.CredentialMeta, error)
}

// ControlClients resolves an operator's control panel client. Forget drops
// the client built from a replaced key.
type ControlClients interface {
	ForOperator(ctx context.Context, ownerID string) (driven.ControlPanel, error)
	Forget(ownerID string)
}

// MaintenanceRunner runs the maintenance sagas.
type MaintenanceRunner interface {
	Start(ctx context.Context, operator model.Operator, control driven.ControlPanel) (application.MaintenanceOutcome, error)
	Stop(ctx context.Context, operator model.Operator, control driven.ControlPanel) (application.MaintenanceOutcome, error)
	State(ctx context.Context) (model.MaintenanceState, error)
}

// StatusReader builds the merged server status.
type StatusReader interface {
	Snapshot(ctx context.Context, control driven.ControlPanel) (model.StatusSnapshot, error)
}

// Deps holds the collaborators of the HTTP adapter. Notifier may be nil when
// no chat channel is configured.
type Deps struct {
	Identity    driven.IdentityVerifier
	Vault       CredentialVault
	Clients     ControlClients
	Maintenance MaintenanceRunner
	Status      StatusReader
	Notifier    driven.Notifier
	ServerID    string
	CORSOrigins []string
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	identity    driven.IdentityVerifier
	vault       CredentialVault
	clients     ControlClients
	maintenance MaintenanceRunner
	status      StatusReader
	notifier    driven.Notifier
	serverID    string
	corsOrigins []string
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	return &Handler{
		identity:    deps.Identity,
		vault:       deps.Vault,
		clients:     deps.Clients,
		maintenance: deps.Maintenance,
		status:      deps.Status,
		notifier:    deps.Notifier,
		serverID:    deps.ServerID,
		corsOrigins: deps.CORSOrigins,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with the CORS, request id, logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	auth := h.requireAuth
	bound := func(next http.HandlerFunc) http.HandlerFunc { return h.requireAuth(h.requireBound(next)) }

	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/me", auth(h.Me))

	mux.HandleFunc("GET /api/ptero-key", auth(h.GetKey))
	mux.HandleFunc("PUT /api/ptero-key", auth(h.BindKey))
	mux.HandleFunc("POST /api/ptero-key/test", bound(h.TestKey))

	mux.HandleFunc("GET /api/status", bound(h.Status))
	mux.HandleFunc("POST /api/power/start", bound(h.PowerStart))
	mux.HandleFunc("POST /api/power/stop", bound(h.PowerStop))
	mux.HandleFunc("POST /api/command", bound(h.Command))

	mux.HandleFunc("POST /api/maintenance/start", bound(h.StartMaintenance))
	mux.HandleFunc("POST /api/maintenance/stop", bound(h.StopMaintenance))
	mux.HandleFunc("GET /api/maintenance/status", auth(h.MaintenanceStatus))

	mux.HandleFunc("POST /api/discord/announce", auth(h.Announce))
	mux.HandleFunc("GET /api/discord/messages", auth(h.Messages))

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)
	wrapped = corsMiddleware(h.corsOrigins, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{OK: true, Service: ServiceName})
}

// Me returns the authenticated operator.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, meResponse{OK: true, User: toUserResponse(operatorFrom(r.Context()))})
}
