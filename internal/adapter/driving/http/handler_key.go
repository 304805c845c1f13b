package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// GetKey reports whether the caller has a control panel key bound. The key
// itself is never returned.
func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	op := operatorFrom(r.Context())

	meta, err := h.vault.Meta(r.Context(), op.UID)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toKeyMetaResponse(meta))
}

// BindKey stores a new control panel key for the caller, replacing any
// previous one.
func (h *Handler) BindKey(w http.ResponseWriter, r *http.Request) {
	var req BindKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidKeyFormat, "invalid request body")
		return
	}

	op := operatorFrom(r.Context())
	last4, err := h.vault.Bind(r.Context(), op.UID, req.Token)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	h.clients.Forget(op.UID)
	h.logger.Info("control panel key bound", "operator", op.DisplayName())
	writeJSON(w, http.StatusOK, KeyMetaResponse{OK: true, Bound: true, Last4: &last4})
}

// TestKey calls the panel's account endpoint with the caller's key. Any
// panel failure is reported as 400 since it means the key is unusable.
func (h *Handler) TestKey(w http.ResponseWriter, r *http.Request) {
	account, err := controlFrom(r.Context()).VerifyAccount(r.Context())
	if err != nil {
		switch model.KindOf(err) {
		case model.KindUpstream, model.KindTimeout:
			writeAppErrorStatus(w, h.logger, http.StatusBadRequest, err)
		default:
			writeAppError(w, h.logger, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, testKeyResponse{OK: true, Account: toAccountResponse(account)})
}
