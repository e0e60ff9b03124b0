// Package toolserver exposes a Workspace Facade as a fixed set of named
// tools over stdio or HTTP (spec §4.8, component C9). Both transports
// share one dispatcher; only session resolution differs (stdio closes
// over a single facade, HTTP looks one up by session ID). Tool request/
// result payload shapes reuse github.com/mark3labs/mcp-go/mcp so a real
// MCP client can talk to either transport without translation — see
// SPEC_FULL.md D3.
package toolserver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aspects-ai/constellationfs/internal/constellation/router"
	"github.com/aspects-ai/constellationfs/internal/constellation/workspace"
)

// Session binds one facade to one protocol session (spec §4.8 "Session
// context resolution").
type Session struct {
	ID       string
	UserID   string
	Facade   *workspace.Facade
	Router   *router.Router
	OnClosed func()
}

// Registry tracks live HTTP-mode sessions, keyed by session ID (spec §4.8
// "Each session gets its own transport instance and facade").
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewRegistry builds an empty session registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{sessions: make(map[string]*Session), logger: logger}
}

// Put registers a session.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Get looks up a session by ID.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close removes and destroys the session's router, running onsessionclosed
// (spec §4.8 "onsessionclosed destroys the facade").
func (r *Registry) Close(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if s.Router != nil {
		if err := s.Router.Destroy(); err != nil {
			r.logger.Warn("session router destroy failed", "session", id, "error", err)
		}
	}
	if s.OnClosed != nil {
		s.OnClosed()
	}
}

// Count returns the number of live sessions (spec §4.8 "GET /health returns
// {status, sessions: <count>}").
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// resolveFacade is the piece of "session context resolution" (spec §4.8)
// shared by both transports once a *Session has been found: stdio hands one
// in directly from process start, HTTP looks it up from the Registry by
// session ID before calling this.
func resolveFacade(_ context.Context, s *Session) *workspace.Facade {
	return s.Facade
}
