package httphandler

import (
	"net/http"
)

// StartMaintenance runs the maintenance start saga for the caller.
func (h *Handler) StartMaintenance(w http.ResponseWriter, r *http.Request) {
	out, err := h.maintenance.Start(r.Context(), operatorFrom(r.Context()), controlFrom(r.Context()))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, maintenanceResponse{OK: true, Message: out.Message})
}

// StopMaintenance runs the maintenance stop saga for the caller.
func (h *Handler) StopMaintenance(w http.ResponseWriter, r *http.Request) {
	out, err := h.maintenance.Stop(r.Context(), operatorFrom(r.Context()), controlFrom(r.Context()))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, maintenanceResponse{OK: true, Message: out.Message})
}

// MaintenanceStatus returns the global maintenance state.
func (h *Handler) MaintenanceStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.maintenance.State(r.Context())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, maintenanceStatusResponse{OK: true, State: toMaintenanceStateResponse(state)})
}
