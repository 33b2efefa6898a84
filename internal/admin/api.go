package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gymgate/access-router/internal/auth"
	"github.com/gymgate/access-router/internal/hub"
)

// SetLogLevelRequest is the body of POST /api/loglevel.
type SetLogLevelRequest struct {
	Level string `json:"level"`
}

// HandleSetLogLevel changes the runtime log level.
// POST /api/loglevel
// Body: {"level": "debug|info|warn|error"}
func (h *Handler) HandleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req SetLogLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON")
		return
	}

	var level slog.Level
	switch strings.ToLower(req.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		WriteErrorWithHint(w, http.StatusBadRequest, ErrCodeInvalidRequest,
			"Invalid level", "Use one of: debug, info, warn, error")
		return
	}

	h.logLevel.Set(level)
	h.logger.Info("log level changed", "new_level", level.String())

	writeJSON(w, http.StatusOK, map[string]string{"level": strings.ToLower(req.Level)})
}

// ConnectionsResponse is the body of GET /api/connections.
type ConnectionsResponse struct {
	Count       int        `json:"count"`
	Connections []hub.Info `json:"connections"`
}

// HandleConnections lists live websocket clients.
// GET /api/connections
func (h *Handler) HandleConnections(w http.ResponseWriter, r *http.Request) {
	resp := ConnectionsResponse{Connections: []hub.Info{}}
	if h.connections != nil {
		resp.Count = h.connections.Count()
		if list := h.connections.Snapshot(); list != nil {
			resp.Connections = list
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ScanModeResponse is the body of GET /api/scanmode.
type ScanModeResponse struct {
	AdminID          *int64 `json:"admin_id"`
	RegistrationMode bool   `json:"registration_mode"`
	ReplacementMode  bool   `json:"replacement_mode"`
}

// HandleScanMode reports the scan mode of the caller's scope. Super
// admins read the super scope.
// GET /api/scanmode
func (h *Handler) HandleScanMode(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Not authenticated")
		return
	}

	var scope int64
	if !p.Super {
		scope = p.OperatorID
	}
	var resp ScanModeResponse
	if scope > 0 {
		resp.AdminID = &scope
	}
	if h.modes != nil {
		f := h.modes.Flags(scope)
		resp.RegistrationMode = f.Registration
		resp.ReplacementMode = f.Replacement
	}
	writeJSON(w, http.StatusOK, resp)
}

// WhoamiResponse describes the caller's token.
type WhoamiResponse struct {
	AdminID      *int64 `json:"admin_id"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
	Role         string `json:"role,omitempty"`
}

// HandleWhoami returns the scope derived from the bearer token.
// GET /api/whoami
func (h *Handler) HandleWhoami(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Not authenticated")
		return
	}
	resp := WhoamiResponse{IsSuperAdmin: p.Super, Role: p.Role}
	if p.OperatorID > 0 {
		id := p.OperatorID
		resp.AdminID = &id
	}
	writeJSON(w, http.StatusOK, resp)
}
