package toolserver

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/aspects-ai/constellationfs/internal/constellation/identity"
	"github.com/aspects-ai/constellationfs/internal/constellation/router"
)

const maxRequestBody = 16 << 20

const sessionHeader = "Mcp-Session-Id"

// RouterFactory builds a fresh per-user Router, bound to whatever backend
// the server process was configured for (spec §4.8 scopes each session to
// a user, not the process).
type RouterFactory func(userID string) (*router.Router, error)

// HTTPServer implements the multi-session HTTP mode (spec §4.8 "HTTP mode
// (multi-session)").
type HTTPServer struct {
	AuthToken     string
	WorkspaceRoot string
	NewRouter     RouterFactory
	Registry      *Registry
	Logger        *slog.Logger
}

// Handler returns the http.Handler exposing /mcp and /health.
func (h *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", h.handleMCP)
	mux.HandleFunc("/health", h.handleHealth)
	return mux
}

func (h *HTTPServer) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": h.Registry.Count()})
}

func (h *HTTPServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if !h.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	workspaceRoot := r.Header.Get("X-Workspace-Root")
	if workspaceRoot != "" && workspaceRoot != h.WorkspaceRoot {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("workspace root mismatch: request specified %q, server configured %q", workspaceRoot, h.WorkspaceRoot),
		})
		return
	}

	session, statusErr := h.resolveSession(r)
	if statusErr != nil {
		writeJSON(w, statusErr.status, map[string]string{"error": statusErr.message})
		return
	}

	body, readErr := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if readErr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request"})
		return
	}

	resp := (&StdioServer{Session: session, Logger: h.logger()}).handle(r.Context(), req)

	w.Header().Set(sessionHeader, session.ID)
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPServer) authorized(r *http.Request) bool {
	if h.AuthToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	return auth == "Bearer "+h.AuthToken
}

type statusError struct {
	status  int
	message string
}

// resolveSession implements spec §4.8 "Session context resolution": an
// existing Mcp-Session-Id must already be registered, or a fresh session is
// created from the X-User-ID/X-Workspace headers.
func (h *HTTPServer) resolveSession(r *http.Request) (*Session, *statusError) {
	if id := r.Header.Get(sessionHeader); id != "" {
		s, ok := h.Registry.Get(id)
		if !ok {
			return nil, &statusError{status: http.StatusBadRequest, message: "Session not found"}
		}
		return s, nil
	}

	userID := r.Header.Get("X-User-ID")
	if err := identity.ValidateUserID(userID); err != nil {
		return nil, &statusError{status: http.StatusBadRequest, message: err.Error()}
	}
	workspaceName := r.Header.Get("X-Workspace")

	rt, err := h.NewRouter(userID)
	if err != nil {
		return nil, &statusError{status: http.StatusBadRequest, message: err.Error()}
	}
	facade, err := rt.GetWorkspace(r.Context(), workspaceName, nil)
	if err != nil {
		return nil, &statusError{status: http.StatusBadRequest, message: err.Error()}
	}

	session := &Session{ID: uuid.NewString(), UserID: userID, Facade: facade, Router: rt}
	h.Registry.Put(session)
	return session, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

