// Package config holds the process-wide, one-shot configuration
// ConstellationFS needs before any FileSystem can be constructed (spec §3,
// §5), plus the optional static TOML file the tool-server binary loads for
// its own defaults (spec SPEC_FULL.md §A3).
package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/aspects-ai/constellationfs/internal/constellation/errcode"
)

// process is the one-shot global: appId and workspaceRoot, set exactly once
// before first use (spec §3 invariants, §5 "Process-wide state").
type process struct {
	mu            sync.RWMutex
	set           bool
	appID         string
	workspaceRoot string
}

var global process

// Set initializes the process-wide appId/workspaceRoot. Calling it twice is
// a configuration error; tests may call Reset first.
func Set(appID, workspaceRoot string) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.set {
		return errcode.Wrap(errcode.InvalidConfiguration, "appId/workspaceRoot already set", errcode.ErrConfigAlreadySet)
	}
	if appID == "" {
		return errcode.New(errcode.InvalidConfiguration, "appId must not be empty")
	}
	if workspaceRoot == "" {
		workspaceRoot = defaultWorkspaceRoot()
	}
	global.appID = appID
	global.workspaceRoot = workspaceRoot
	global.set = true
	return nil
}

// SetFromEnv initializes the singleton from CONSTELLATION_WORKSPACE_ROOT
// (spec §6) and the given appID, defaulting workspaceRoot when the env var
// is absent.
func SetFromEnv(appID string) error {
	root := os.Getenv("CONSTELLATION_WORKSPACE_ROOT")
	return Set(appID, root)
}

// AppID returns the configured appId, or an error if Set has not run yet.
func AppID() (string, error) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	if !global.set {
		return "", errcode.Wrap(errcode.InvalidConfiguration, "read before configuration was set", errcode.ErrConfigNotSet)
	}
	return global.appID, nil
}

// WorkspaceRoot returns the configured workspace root, or an error if Set
// has not run yet.
func WorkspaceRoot() (string, error) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	if !global.set {
		return "", errcode.Wrap(errcode.InvalidConfiguration, "read before configuration was set", errcode.ErrConfigNotSet)
	}
	return global.workspaceRoot, nil
}

// Reset clears the one-shot singleton. Test-only hook, per spec §5 ("Testing
// hooks may reset it").
func Reset() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global = process{}
}

func defaultWorkspaceRoot() string {
	return filepath.Join(os.TempDir(), "constellation-fs")
}
