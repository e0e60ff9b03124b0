// Package router implements the Backend Router (spec §4.7, component C7):
// it owns one execapi.Executor (local subprocess or remote SSH channel),
// validates and caches per-user-per-workspace facades, and creates the
// on-site workspace directory lazily. Grounded on the teacher's
// sync.Map-backed registry idiom in internal/runner/resource/manager.go,
// adapted here from a resource-tracking registry to a facade cache.
package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/aspects-ai/constellationfs/internal/constellation/errcode"
	"github.com/aspects-ai/constellationfs/internal/constellation/execapi"
	"github.com/aspects-ai/constellationfs/internal/constellation/identity"
	"github.com/aspects-ai/constellationfs/internal/constellation/workspace"
)

// Kind names the executor backend a Router is bound to.
type Kind string

// Kind values (spec §3 "Backend kind").
const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Closer is implemented by remotechannel.Manager; Router.Destroy calls it
// for remote routers so the channel is torn down with the cache (spec §4.7
// "remote routers also end the channel").
type Closer interface {
	Close() error
}

// Router is one FileSystem instance bound to a single user and backend
// (spec §4.7).
type Router struct {
	kind     Kind
	executor execapi.Executor
	root     string
	appID    string
	userID   string
	logger   *slog.Logger
	channel  Closer // nil for local routers

	mu        sync.Mutex
	workspace map[string]*workspace.Facade
}

// New builds a Router for userID against workspaceRoot/appID, bound to
// executor. channel is the remotechannel.Manager to close on Destroy, or
// nil for a local router.
func New(kind Kind, executor execapi.Executor, workspaceRoot, appID, userID string, channel Closer, logger *slog.Logger) (*Router, error) {
	if err := identity.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		kind:      kind,
		executor:  executor,
		root:      workspaceRoot,
		appID:     appID,
		userID:    userID,
		logger:    logger,
		channel:   channel,
		workspace: make(map[string]*workspace.Facade),
	}, nil
}

// GetWorkspace validates name, ensures the on-site workspace directory
// exists, and returns the cached Facade for (name, envConfig) — a distinct
// custom environment produces a distinct cache entry and thus a distinct
// Facade (spec §4.7 "name:hash(envConfig)").
func (r *Router) GetWorkspace(ctx context.Context, name string, envConfig map[string]string) (*workspace.Facade, error) {
	if name == "" {
		name = identity.DefaultWorkspaceName
	}
	if err := identity.ValidateWorkspaceName(name); err != nil {
		return nil, err
	}

	key := cacheKey(name, envConfig)

	r.mu.Lock()
	if f, ok := r.workspace[key]; ok {
		r.mu.Unlock()
		return f, nil
	}
	r.mu.Unlock()

	path := identity.WorkspacePath(r.root, r.appID, r.userID, name)
	if r.kind == KindLocal {
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, errcode.WithPath(errcode.WriteFailed, "failed to create workspace directory", path, err)
		}
	} else {
		if _, _, err := r.executor.Exec(ctx, path, "mkdir -p "+path, execapi.UTF8, nil, nil); err != nil {
			r.logger.Debug("remote workspace mkdir via exec fallback failed, retrying through Mkdir", "path", path, "error", err)
			if mkErr := r.executor.Mkdir(ctx, path, ".", true); mkErr != nil {
				return nil, mkErr
			}
		}
	}

	f := workspace.New(path, name, envConfig, r.executor, r.logger)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.workspace[key]; ok {
		return existing, nil
	}
	r.workspace[key] = f
	return f, nil
}

// ListWorkspaces returns the names of every workspace with a live cached
// Facade (spec §4.7 "listWorkspaces").
func (r *Router) ListWorkspaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make(map[string]struct{}, len(r.workspace))
	for _, f := range r.workspace {
		names[f.Name()] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// WorkspaceInfo is one entry in ListWorkspacesDetailed (SPEC_FULL.md D4).
type WorkspaceInfo struct {
	Name string
	Stat execapi.Stat
	Err  error
}

// ListWorkspacesDetailed supplements ListWorkspaces with a stat per cached
// workspace root (SPEC_FULL.md D4, an additive superset of spec §4.7
// listWorkspaces). A per-workspace stat failure is recorded on that entry,
// not returned as a call-wide error, so one broken workspace does not hide
// the rest.
func (r *Router) ListWorkspacesDetailed(ctx context.Context) []WorkspaceInfo {
	r.mu.Lock()
	facades := make([]*workspace.Facade, 0, len(r.workspace))
	seen := make(map[string]bool, len(r.workspace))
	for _, f := range r.workspace {
		if seen[f.Name()] {
			continue
		}
		seen[f.Name()] = true
		facades = append(facades, f)
	}
	r.mu.Unlock()

	sort.Slice(facades, func(i, j int) bool { return facades[i].Name() < facades[j].Name() })

	out := make([]WorkspaceInfo, len(facades))
	for i, f := range facades {
		st, err := r.executor.Stat(ctx, f.Path(), ".")
		out[i] = WorkspaceInfo{Name: f.Name(), Stat: st, Err: err}
	}
	return out
}

// Destroy clears the facade cache and, for a remote router, ends the
// shared channel (spec §4.7 "destroy()").
func (r *Router) Destroy() error {
	r.mu.Lock()
	r.workspace = make(map[string]*workspace.Facade)
	r.mu.Unlock()

	if r.channel != nil {
		return r.channel.Close()
	}
	return nil
}

// cacheKey returns name unchanged when envConfig is empty, or
// "name:<first 16 hex digits of the sha256 of the canonicalized config>"
// otherwise (spec §4.7).
func cacheKey(name string, envConfig map[string]string) string {
	if len(envConfig) == 0 {
		return name
	}
	keys := make([]string, 0, len(envConfig))
	for k := range envConfig {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]string, len(envConfig))
	canon := make([]string, 0, len(keys))
	for _, k := range keys {
		ordered[k] = envConfig[k]
		canon = append(canon, k)
	}
	b, _ := json.Marshal(struct {
		Keys   []string          `json:"keys"`
		Values map[string]string `json:"values"`
	}{Keys: canon, Values: ordered})
	sum := sha256.Sum256(b)
	return name + ":" + hex.EncodeToString(sum[:])[:16]
}
