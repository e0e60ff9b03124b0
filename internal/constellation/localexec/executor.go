// Package localexec implements the local host executor (spec §4.4,
// component C4): subprocess exec under a scrubbed environment and
// workspace-confined file operations. Grounded on the teacher's
// internal/runner/executor/executor.go (subprocess spawn/output-capture
// idiom) and internal/runner/executor/environment.go (env merge idiom).
package localexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aspects-ai/constellationfs/internal/constellation/errcode"
	"github.com/aspects-ai/constellationfs/internal/constellation/execapi"
	"github.com/aspects-ai/constellationfs/internal/constellation/pathsafety"
	"github.com/aspects-ai/constellationfs/internal/constellation/safety"
)

// Executor is the local (host subprocess) implementation of execapi.Executor.
type Executor struct {
	Shell           string
	MaxOutputLength int
	Logger          *slog.Logger
}

// New builds a local executor. shell defaults to localexec.DetectShell()
// when empty.
func New(shell string, maxOutputLength int, logger *slog.Logger) *Executor {
	if shell == "" {
		shell = DetectShell()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{Shell: shell, MaxOutputLength: maxOutputLength, Logger: logger}
}

var _ execapi.Executor = (*Executor)(nil)

// Exec runs command through the detected shell with cwd=workspacePath and a
// scrubbed environment, after the safety analyzer clears it (spec §4.4).
func (e *Executor) Exec(ctx context.Context, workspacePath, command string, encoding execapi.Encoding, customEnv map[string]string, onDangerous execapi.DangerousOpHandler) (string, []byte, error) {
	if command == "" {
		return "", nil, errcode.New(errcode.EmptyCommand, "command must not be empty")
	}

	verdict, _ := safety.Analyze(command, workspacePath)
	if !verdict.Safe {
		if verdict.Kind == safety.KindDangerous && onDangerous != nil {
			onDangerous(command)
			return "", []byte{}, nil
		}
		return "", nil, classifyVerdict(command, verdict)
	}

	base := BaseEnvironment(workspacePath, e.Shell)
	env, overridden, err := MergeCustomEnv(base, customEnv)
	if err != nil {
		return "", nil, errcode.WithCommand(errcode.ExecError, err.Error(), command, err)
	}
	for _, k := range overridden {
		e.Logger.Warn("protected environment variable overridden", "key", k, "command", command)
	}

	if err := os.MkdirAll(env["TMPDIR"], 0o700); err != nil {
		return "", nil, errcode.WithCommand(errcode.ExecError, "failed to create TMPDIR", command, err)
	}

	envList := make([]string, 0, len(env))
	for k, v := range env {
		envList = append(envList, k+"="+v)
	}

	// #nosec G204 - command has already cleared the safety analyzer above.
	cmd := exec.CommandContext(ctx, e.Shell, "-c", command)
	cmd.Dir = workspacePath
	cmd.Env = envList

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.Logger.Debug("executing command", "command", command, "workspace", workspacePath)
	runErr := cmd.Run()
	e.Logger.Debug("command finished", "command", command, "error", runErr)

	if runErr != nil {
		var exitErr *exec.ExitError
		if asExitError(runErr, &exitErr) {
			detail := stderr.String()
			if detail == "" {
				detail = stdout.String()
			}
			return "", nil, &errcode.Error{
				Code:    errcode.ExecFailed,
				Message: fmt.Sprintf("exit code %d: %s", exitErr.ExitCode(), detail),
				Command: command,
			}
		}
		return "", nil, errcode.WithCommand(errcode.ExecError, "failed to spawn command", command, runErr)
	}

	if encoding == execapi.Buffer {
		return "", stdout.Bytes(), nil
	}
	return CapOutput(stdout.String(), e.MaxOutputLength), nil, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

func classifyVerdict(command string, v safety.Verdict) error {
	switch v.Kind {
	case safety.KindNetworkCommand:
		return errcode.DangerousOperationError(command, v.Reason)
	case safety.KindEscape:
		return &errcode.Error{Code: errcode.PathEscapeAttempt, Message: v.Reason, Command: command}
	case safety.KindInvalidPath:
		return &errcode.Error{Code: errcode.AbsolutePathRejected, Message: v.Reason, Command: command}
	default:
		return errcode.DangerousOperationError(command, v.Reason)
	}
}

func (e *Executor) resolve(workspacePath, relPath string) (string, error) {
	return pathsafety.ResolveSafely(workspacePath, relPath)
}

// ReadFile reads relPath under workspacePath after a symlink-safety check.
func (e *Executor) ReadFile(_ context.Context, workspacePath, relPath string, encoding execapi.Encoding) (string, []byte, error) {
	full, err := e.resolve(workspacePath, relPath)
	if err != nil {
		return "", nil, err
	}
	if v := pathsafety.SymlinkSafety(workspacePath, relPath); !v.Safe {
		return "", nil, &errcode.Error{Code: errcode.PathEscapeAttempt, Message: v.Reason, Path: relPath}
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", nil, errcode.WithPath(errcode.ReadFailed, "failed to read file", relPath, err)
	}
	if encoding == execapi.Buffer {
		return "", data, nil
	}
	return string(data), nil, nil
}

// WriteFile ensures relPath's parent directories exist, checks symlink
// safety on the parent, and writes content (spec §4.2 "file-modifying
// operations call symlinkSafety on parent(path)").
func (e *Executor) WriteFile(_ context.Context, workspacePath, relPath string, content []byte) error {
	full, err := e.resolve(workspacePath, relPath)
	if err != nil {
		return err
	}
	parent := filepath.Dir(relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errcode.WithPath(errcode.WriteFailed, "failed to create parent directories", relPath, err)
	}
	if v := pathsafety.SymlinkSafety(workspacePath, parent); !v.Safe {
		return &errcode.Error{Code: errcode.PathEscapeAttempt, Message: v.Reason, Path: relPath}
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return errcode.WithPath(errcode.WriteFailed, "failed to write file", relPath, err)
	}
	return nil
}

// Mkdir creates relPath under workspacePath, recursively when requested.
func (e *Executor) Mkdir(_ context.Context, workspacePath, relPath string, recursive bool) error {
	full, err := e.resolve(workspacePath, relPath)
	if err != nil {
		return err
	}
	if v := pathsafety.SymlinkSafety(workspacePath, filepath.Dir(relPath)); !v.Safe {
		return &errcode.Error{Code: errcode.PathEscapeAttempt, Message: v.Reason, Path: relPath}
	}
	if recursive {
		err = os.MkdirAll(full, 0o755)
	} else {
		err = os.Mkdir(full, 0o755)
		if os.IsExist(err) {
			err = nil // idempotent, per spec §8 property 6
		}
	}
	if err != nil {
		return errcode.WithPath(errcode.WriteFailed, "failed to create directory", relPath, err)
	}
	return nil
}

// Touch creates relPath if absent, or updates its mtime if present, per
// spec §8 property 6 (idempotent, content unchanged).
func (e *Executor) Touch(_ context.Context, workspacePath, relPath string) error {
	full, err := e.resolve(workspacePath, relPath)
	if err != nil {
		return err
	}
	if v := pathsafety.SymlinkSafety(workspacePath, filepath.Dir(relPath)); !v.Safe {
		return &errcode.Error{Code: errcode.PathEscapeAttempt, Message: v.Reason, Path: relPath}
	}
	now := time.Now()
	if f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
		f.Close()
	} else {
		return errcode.WithPath(errcode.WriteFailed, "failed to touch file", relPath, err)
	}
	if err := os.Chtimes(full, now, now); err != nil {
		return errcode.WithPath(errcode.WriteFailed, "failed to update mtime", relPath, err)
	}
	return nil
}

// Stat returns kind/size/mtime for relPath.
func (e *Executor) Stat(_ context.Context, workspacePath, relPath string) (execapi.Stat, error) {
	full, err := e.resolve(workspacePath, relPath)
	if err != nil {
		return execapi.Stat{}, err
	}
	if v := pathsafety.SymlinkSafety(workspacePath, relPath); !v.Safe {
		return execapi.Stat{}, &errcode.Error{Code: errcode.PathEscapeAttempt, Message: v.Reason, Path: relPath}
	}
	info, err := os.Lstat(full)
	if err != nil {
		return execapi.Stat{}, errcode.WithPath(errcode.ReadFailed, "failed to stat path", relPath, err)
	}
	kind := execapi.KindFile
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		kind = execapi.KindSymlink
	case info.IsDir():
		kind = execapi.KindDirectory
	}
	return execapi.Stat{Kind: kind, Size: info.Size(), Mtime: info.ModTime()}, nil
}

// ListDir lists relPath's entries under workspacePath.
func (e *Executor) ListDir(_ context.Context, workspacePath, relPath string) ([]execapi.Entry, error) {
	full, err := e.resolve(workspacePath, relPath)
	if err != nil {
		return nil, err
	}
	if v := pathsafety.SymlinkSafety(workspacePath, relPath); !v.Safe {
		return nil, &errcode.Error{Code: errcode.PathEscapeAttempt, Message: v.Reason, Path: relPath}
	}
	dirEntries, err := os.ReadDir(full)
	if err != nil {
		return nil, errcode.WithPath(errcode.LsFailed, "failed to list directory", relPath, err)
	}
	entries := make([]execapi.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		kind := execapi.KindFile
		switch {
		case de.Type()&os.ModeSymlink != 0:
			kind = execapi.KindSymlink
		case de.IsDir():
			kind = execapi.KindDirectory
		}
		entries = append(entries, execapi.Entry{Name: de.Name(), Kind: kind})
	}
	return entries, nil
}

// Exists reports whether relPath exists under workspacePath.
func (e *Executor) Exists(_ context.Context, workspacePath, relPath string) (bool, error) {
	full, err := e.resolve(workspacePath, relPath)
	if err != nil {
		return false, err
	}
	_, statErr := os.Lstat(full)
	if os.IsNotExist(statErr) {
		return false, nil
	}
	if statErr != nil {
		return false, errcode.WithPath(errcode.ReadFailed, "failed to stat path", relPath, statErr)
	}
	return true, nil
}

// DeleteTree removes the entire workspace directory tree.
func (e *Executor) DeleteTree(_ context.Context, workspacePath string) error {
	if err := os.RemoveAll(workspacePath); err != nil {
		return errcode.WithPath(errcode.WriteFailed, "failed to delete workspace tree", workspacePath, err)
	}
	return nil
}
