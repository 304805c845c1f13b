package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/opscenter/internal/application"
	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"ok":false,"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{OK: false, Error: message, Code: code})
}

// statusFor maps an error kind to its HTTP status. This is the only place
// where domain errors become HTTP statuses.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindUnauthorized:
		return http.StatusUnauthorized
	case model.KindNotBound, model.KindIntegrity:
		return http.StatusPreconditionFailed
	case model.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError converts err into the error response contract using the
// status mapped from its kind.
func writeAppError(w http.ResponseWriter, logger *slog.Logger, err error) {
	writeAppErrorStatus(w, logger, statusFor(model.KindOf(err)), err)
}

// writeAppErrorStatus is writeAppError with an explicit status, for the few
// routes whose contract overrides the kind mapping.
func writeAppErrorStatus(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	resp := errorResponse{OK: false, Error: "internal server error"}

	var appErr *model.Error
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Code = appErr.Code
		if appErr.Kind == model.KindUpstream || appErr.Kind == model.KindTimeout {
			resp.Debug = &debugInfo{HTTPStatus: appErr.StatusCode, Detail: appErr.Body}
		}
	}
	if errors.Is(err, application.ErrRollbackFailed) {
		resp.Code = model.CodeRollbackFailed
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "kind", model.KindOf(err).String(), "error", err)
	} else {
		logger.Debug("request rejected", "status", status, "kind", model.KindOf(err).String(), "error", err)
	}

	writeJSON(w, status, resp)
}

// errorResponse is the standard error response body.
type errorResponse struct {
	OK    bool       `json:"ok"`
	Error string     `json:"error"`
	Code  string     `json:"code,omitempty"`
	Debug *debugInfo `json:"debug,omitempty"`
}

type debugInfo struct {
	HTTPStatus int    `json:"httpStatus,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

// UserResponse is the authenticated operator.
type UserResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type meResponse struct {
	OK   bool         `json:"ok"`
	User UserResponse `json:"user"`
}

// KeyMetaResponse reports whether the caller has a control panel key bound.
type KeyMetaResponse struct {
	OK        bool    `json:"ok"`
	Bound     bool    `json:"bound"`
	Last4     *string `json:"last4"`
	UpdatedAt *string `json:"updatedAt"`
}

// BindKeyRequest is the JSON body of PUT /api/ptero-key.
type BindKeyRequest struct {
	Token string `json:"token"`
}

// AccountResponse is the panel account a key belongs to.
type AccountResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Admin     bool   `json:"admin"`
}

type testKeyResponse struct {
	OK      bool            `json:"ok"`
	Account AccountResponse `json:"account"`
}

// ServerInfo is the server block of the status response.
type ServerInfo struct {
	Status        string `json:"status"`
	PlayersOnline *int   `json:"playersOnline"`
	MaxPlayers    *int   `json:"maxPlayers"`
}

// ServerStats is the stats block of the status response.
type ServerStats struct {
	CPU         *float64 `json:"cpu"`
	MemoryBytes *int64   `json:"memoryBytes"`
	DiskBytes   *int64   `json:"diskBytes"`
	Uptime      *int64   `json:"uptime"`
}

// StatusResponse is the JSON representation of GET /api/status.
type StatusResponse struct {
	OK     bool        `json:"ok"`
	Server ServerInfo  `json:"server"`
	Stats  ServerStats `json:"stats"`
}

// CommandRequest is the JSON body of POST /api/command.
type CommandRequest struct {
	Command string `json:"command"`
}

type maintenanceResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// MaintenanceStateResponse is the JSON view of the maintenance state.
// Operator and UpdatedAt are null until the first transition.
type MaintenanceStateResponse struct {
	Mode      string  `json:"mode"`
	Operator  *string `json:"operator"`
	UpdatedAt *string `json:"updatedAt"`
}

type maintenanceStatusResponse struct {
	OK    bool                     `json:"ok"`
	State MaintenanceStateResponse `json:"state"`
}

// AnnounceRequest is the JSON body of POST /api/discord/announce.
type AnnounceRequest struct {
	Title      string `json:"title"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
	RemindKick bool   `json:"remindKick"`
}

type announceResponse struct {
	OK               bool   `json:"ok"`
	DiscordMessageID string `json:"discordMessageId"`
}

// ChatMessageResponse is one channel message.
type ChatMessageResponse struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Avatar    string `json:"avatar"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type messagesResponse struct {
	OK       bool                  `json:"ok"`
	Messages []ChatMessageResponse `json:"messages"`
}

func toUserResponse(op model.Operator) UserResponse {
	return UserResponse{UID: op.UID, Email: op.Email, Name: op.Name}
}

func toKeyMetaResponse(meta model.CredentialMeta) KeyMetaResponse {
	resp := KeyMetaResponse{OK: true, Bound: meta.Bound}
	if meta.Bound {
		resp.Last4 = &meta.Last4
		resp.UpdatedAt = formatTime(meta.UpdatedAt)
	}
	return resp
}

func toAccountResponse(a model.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Admin:     a.Admin,
	}
}

func toStatusResponse(snap model.StatusSnapshot) StatusResponse {
	state := snap.Resources.State
	if state == "" {
		state = "unknown"
	}
	return StatusResponse{
		OK: true,
		Server: ServerInfo{
			Status:        state,
			PlayersOnline: snap.PlayersOnline,
			MaxPlayers:    snap.MaxPlayers,
		},
		Stats: ServerStats{
			CPU:         snap.Resources.CPUAbsolute,
			MemoryBytes: snap.Resources.MemoryBytes,
			DiskBytes:   snap.Resources.DiskBytes,
			Uptime:      snap.Resources.UptimeMillis,
		},
	}
}

func toMaintenanceStateResponse(s model.MaintenanceState) MaintenanceStateResponse {
	resp := MaintenanceStateResponse{Mode: string(s.Mode)}
	if s.Operator != "" {
		op := s.Operator
		resp.Operator = &op
	}
	resp.UpdatedAt = formatTime(s.UpdatedAt)
	return resp
}

func toChatMessageResponse(m model.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:        m.ID,
		Author:    m.Author,
		Avatar:    m.Avatar,
		Content:   m.Content,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	}
}

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
