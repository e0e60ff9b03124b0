package toolserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspects-ai/constellationfs/internal/constellation/localexec"
	"github.com/aspects-ai/constellationfs/internal/constellation/router"
)

func newTestHTTPServer(t *testing.T, authToken string) (*HTTPServer, string) {
	t.Helper()
	root := t.TempDir()
	exec := localexec.New("sh", 10_000, nil)

	server := &HTTPServer{
		AuthToken:     authToken,
		WorkspaceRoot: root,
		Registry:      NewRegistry(nil),
		NewRouter: func(userID string) (*router.Router, error) {
			return router.New(router.KindLocal, exec, root, "app", userID, nil, nil)
		},
	}
	return server, root
}

func postMCP(t *testing.T, handler http.Handler, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(raw))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHTTPServer_Health(t *testing.T) {
	server, _ := newTestHTTPServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHTTPServer_MCP_RejectsNonPost(t *testing.T) {
	server, _ := newTestHTTPServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHTTPServer_MCP_RequiresAuthTokenWhenConfigured(t *testing.T) {
	server, _ := newTestHTTPServer(t, "secret")
	rec := postMCP(t, server.Handler(), map[string]string{"X-User-ID": "alice"}, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/list"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPServer_MCP_AcceptsValidBearerToken(t *testing.T) {
	server, _ := newTestHTTPServer(t, "secret")
	headers := map[string]string{"X-User-ID": "alice", "Authorization": "Bearer secret"}
	rec := postMCP(t, server.Handler(), headers, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/list"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(sessionHeader))
}

func TestHTTPServer_MCP_WorkspaceRootMismatchRejected(t *testing.T) {
	server, root := newTestHTTPServer(t, "")
	headers := map[string]string{"X-User-ID": "alice", "X-Workspace-Root": "/somewhere/else"}
	rec := postMCP(t, server.Handler(), headers, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/list"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "/somewhere/else")
	assert.Contains(t, body["error"], root)
}

func TestHTTPServer_MCP_UnknownSessionIDRejected(t *testing.T) {
	server, _ := newTestHTTPServer(t, "")
	headers := map[string]string{sessionHeader: "does-not-exist"}
	rec := postMCP(t, server.Handler(), headers, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/list"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPServer_MCP_CreatesSessionAndReusesItByHeader(t *testing.T) {
	server, _ := newTestHTTPServer(t, "")

	first := postMCP(t, server.Handler(), map[string]string{"X-User-ID": "alice", "X-Workspace": "scratch"}, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/list"})
	require.Equal(t, http.StatusOK, first.Code)
	sessionID := first.Header().Get(sessionHeader)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, 1, server.Registry.Count())

	second := postMCP(t, server.Handler(), map[string]string{sessionHeader: sessionID}, map[string]any{"jsonrpc": "2.0", "id": 2, "method": "tools/list"})
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, server.Registry.Count())
}

func TestHTTPServer_MCP_InvalidUserIDRejected(t *testing.T) {
	server, _ := newTestHTTPServer(t, "")
	headers := map[string]string{"X-User-ID": "bad user"}
	rec := postMCP(t, server.Handler(), headers, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/list"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
