package httphandler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// Status returns the game server state merged with the player count.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	snap, err := h.status.Snapshot(r.Context(), controlFrom(r.Context()))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toStatusResponse(snap))
}

// PowerStart sends the start signal.
func (h *Handler) PowerStart(w http.ResponseWriter, r *http.Request) {
	h.power(w, r, model.PowerStart)
}

// PowerStop sends the stop signal.
func (h *Handler) PowerStop(w http.ResponseWriter, r *http.Request) {
	h.power(w, r, model.PowerStop)
}

func (h *Handler) power(w http.ResponseWriter, r *http.Request, signal model.PowerSignal) {
	if err := controlFrom(r.Context()).SetPower(r.Context(), h.serverID, signal); err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	h.logger.Info("power signal sent", "signal", string(signal), "operator", operatorFrom(r.Context()).DisplayName())
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Command sends a console command to the game server.
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	command := strings.TrimSpace(req.Command)
	if command == "" {
		writeError(w, http.StatusBadRequest, "", "command is required")
		return
	}

	if err := controlFrom(r.Context()).SendCommand(r.Context(), h.serverID, command); err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
