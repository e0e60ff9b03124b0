// Package execapi defines the capability surface both the local and remote
// executors implement (spec §4.4/§4.6, design note "Two mostly-parallel
// filesystems"). All other components — router, facade, tool server —
// consume only this interface, never a concrete backend type. Grounded on
// the teacher's CommandExecutor/FileSystem interface split in
// internal/runner/executor/interface.go.
package execapi

import (
	"context"
	"time"
)

// Encoding selects how exec/readFile results are returned (spec §4.4).
type Encoding int

// Encoding values.
const (
	UTF8 Encoding = iota
	Buffer
)

// Kind classifies a directory entry (spec §3 "stat").
type Kind string

// Kind values.
const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
	KindSymlink   Kind = "symlink"
	KindOther     Kind = "other"
)

// Stat is the result of a stat call (spec §4.4).
type Stat struct {
	Kind  Kind
	Size  int64
	Mtime time.Time
}

// Entry is one directory listing result when detailed listing is requested
// (spec §4.4 listDir / §4.7 ls with details).
type Entry struct {
	Name string
	Kind Kind
}

// DangerousOpHandler is invoked only for Dangerous-class safety verdicts
// (spec §4.1); when set, the triggering call returns empty output instead
// of failing.
type DangerousOpHandler func(command string)

// Executor is the capability surface shared by the local (C4) and remote
// (C6) executors.
type Executor interface {
	Exec(ctx context.Context, workspacePath, command string, encoding Encoding, customEnv map[string]string, onDangerous DangerousOpHandler) (string, []byte, error)
	ReadFile(ctx context.Context, workspacePath, relPath string, encoding Encoding) (string, []byte, error)
	WriteFile(ctx context.Context, workspacePath, relPath string, content []byte) error
	Mkdir(ctx context.Context, workspacePath, relPath string, recursive bool) error
	Touch(ctx context.Context, workspacePath, relPath string) error
	Stat(ctx context.Context, workspacePath, relPath string) (Stat, error)
	ListDir(ctx context.Context, workspacePath, relPath string) ([]Entry, error)
	Exists(ctx context.Context, workspacePath, relPath string) (bool, error)
	DeleteTree(ctx context.Context, workspacePath string) error
}
