// Package workspace implements the Workspace Facade (spec §4.7, component
// C8): the public per-(user,workspace) operation surface agents call.
// Every method forwards to the execapi.Executor bound at construction,
// after path arguments pass through pathsafety (spec §4.2). Grounded on the
// teacher's thin delegating-wrapper idiom in internal/runner/executor's
// public entrypoints, generalized here to a struct bound to one executor
// instance rather than a package-level function set.
package workspace

import (
	"context"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/aspects-ai/constellationfs/internal/constellation/execapi"
)

// Facade is the operation surface exposed for one (user, workspace) pair
// (spec §4.7 "Facade operations").
type Facade struct {
	path      string
	name      string
	envConfig map[string]string
	executor  execapi.Executor
	logger    *slog.Logger
}

// New builds a Facade bound to executor, rooted at path.
func New(path, name string, envConfig map[string]string, executor execapi.Executor, logger *slog.Logger) *Facade {
	return &Facade{path: path, name: name, envConfig: envConfig, executor: executor, logger: logger}
}

// Name returns the workspace's name, as given to Router.GetWorkspace.
func (f *Facade) Name() string { return f.name }

// Path returns the workspace's on-site root directory.
func (f *Facade) Path() string { return f.path }

// Exec runs command in this workspace (spec §4.7 "exec(command, encoding?)").
func (f *Facade) Exec(ctx context.Context, command string, encoding execapi.Encoding, onDangerous execapi.DangerousOpHandler) (string, []byte, error) {
	return f.executor.Exec(ctx, f.path, command, encoding, f.envConfig, onDangerous)
}

// Read reads path as UTF-8 text (spec §4.7 "read(path)").
func (f *Facade) Read(ctx context.Context, relPath string) (string, error) {
	s, _, err := f.executor.ReadFile(ctx, f.path, relPath, execapi.UTF8)
	return s, err
}

// ReadFile reads path with an explicit encoding, returning whichever of the
// string/byte results the encoding selects (spec §4.7 "readFile/writeFile
// with explicit encoding variants").
func (f *Facade) ReadFile(ctx context.Context, relPath string, encoding execapi.Encoding) (string, []byte, error) {
	return f.executor.ReadFile(ctx, f.path, relPath, encoding)
}

// Write writes content (as text) to path (spec §4.7 "write(path, content)").
func (f *Facade) Write(ctx context.Context, relPath, content string) error {
	return f.executor.WriteFile(ctx, f.path, relPath, []byte(content))
}

// WriteFile writes raw bytes to path.
func (f *Facade) WriteFile(ctx context.Context, relPath string, content []byte) error {
	return f.executor.WriteFile(ctx, f.path, relPath, content)
}

// Mkdir creates path, recursively when requested (spec §4.7 "mkdir(path,
// recursive?)").
func (f *Facade) Mkdir(ctx context.Context, relPath string, recursive bool) error {
	return f.executor.Mkdir(ctx, f.path, relPath, recursive)
}

// Touch creates or updates the mtime of path (spec §4.7 "touch(path)").
func (f *Facade) Touch(ctx context.Context, relPath string) error {
	return f.executor.Touch(ctx, f.path, relPath)
}

// Stat returns kind/size/mtime for path (spec §4.7 "stat(path)").
func (f *Facade) Stat(ctx context.Context, relPath string) (execapi.Stat, error) {
	return f.executor.Stat(ctx, f.path, relPath)
}

// Ls lists names (or, with details, FileInfo-shaped entries) under relPath,
// optionally filtered by a glob-style pattern matched against entry names
// (spec §4.7 "ls(pattern?, {details?})").
func (f *Facade) Ls(ctx context.Context, relPath, pattern string, details bool) ([]string, []execapi.Entry, error) {
	entries, err := f.executor.ListDir(ctx, f.path, relPath)
	if err != nil {
		return nil, nil, err
	}
	if pattern != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if ok, _ := path.Match(pattern, e.Name); ok {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	if details {
		return nil, entries, nil
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil, nil
}

// Exists reports whether the workspace directory itself exists (spec §4.7
// "exists() for the workspace").
func (f *Facade) Exists(ctx context.Context) (bool, error) {
	return f.executor.Exists(ctx, f.path, ".")
}

// FileExists reports whether relPath exists within the workspace (spec
// §4.7 "fileExists(path) for a member").
func (f *Facade) FileExists(ctx context.Context, relPath string) (bool, error) {
	return f.executor.Exists(ctx, f.path, relPath)
}

// Delete removes the entire workspace directory tree (spec §4.7
// "delete()").
func (f *Facade) Delete(ctx context.Context) error {
	return f.executor.DeleteTree(ctx, f.path)
}

// List is an alias for Ls(ctx, ".", "", false) returning just names (spec
// §4.7 "list()").
func (f *Facade) List(ctx context.Context) ([]string, error) {
	names, _, err := f.Ls(ctx, ".", "", false)
	return names, err
}

// Move renames or relocates a workspace member via the executor's shell
// (no direct execapi move primitive; implemented as exec mv, matching how
// the tool server's move_file tool is specified in spec §4.8).
func (f *Facade) Move(ctx context.Context, from, to string) error {
	cmd := "mv " + shellQuotePair(from, to)
	_, _, err := f.Exec(ctx, cmd, execapi.UTF8, nil)
	return err
}

func shellQuotePair(from, to string) string {
	q := func(s string) string { return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'" }
	return q(from) + " " + q(to)
}
