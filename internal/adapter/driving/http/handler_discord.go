package httphandler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

const (
	defaultMessageLimit = 20
	maxMessageLimit     = 50
)

// Announce posts an announcement to the community channel.
func (h *Handler) Announce(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		writeError(w, http.StatusInternalServerError, model.CodeNotifierNotConfigured, "chat notifier is not configured")
		return
	}

	var req AnnounceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	id, err := h.notifier.Announce(r.Context(), model.Announcement{
		Title:      req.Title,
		Reason:     req.Reason,
		Message:    req.Message,
		RemindKick: req.RemindKick,
		Operator:   operatorFrom(r.Context()).DisplayName(),
	})
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, announceResponse{OK: true, DiscordMessageID: id})
}

// Messages returns the newest channel messages. The limit query parameter
// defaults to 20 and is capped at 50.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		writeError(w, http.StatusInternalServerError, model.CodeNotifierNotConfigured, "chat notifier is not configured")
		return
	}

	messages, err := h.notifier.RecentMessages(r.Context(), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	resp := make([]ChatMessageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, toChatMessageResponse(m))
	}

	writeJSON(w, http.StatusOK, messagesResponse{OK: true, Messages: resp})
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultMessageLimit
	}
	return min(n, maxMessageLimit)
}
