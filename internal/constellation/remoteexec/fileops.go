package remoteexec

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aspects-ai/constellationfs/internal/constellation/errcode"
	"github.com/aspects-ai/constellationfs/internal/constellation/execapi"
	"github.com/aspects-ai/constellationfs/internal/constellation/localexec"
	"github.com/aspects-ai/constellationfs/internal/constellation/pathsafety"
)

// checkEscape rejects relPath before it ever reaches the remote host. This
// catches lexical escapes (".."); escape via a remote symlink cannot be
// detected without the segment-by-segment Lstat/Readlink walk pathsafety
// does locally, which would cost one round trip per segment over SSH — left
// as an open question, see DESIGN.md.
func checkEscape(workspacePath, relPath string) error {
	if relPath == "" {
		return errcode.New(errcode.EmptyPath, "path must not be empty")
	}
	if pathsafety.IsEscaping(workspacePath, relPath) {
		return &errcode.Error{Code: errcode.AbsolutePathRejected, Message: "path escapes workspace", Path: relPath}
	}
	return nil
}

// Remote file operations are implemented by exec-ing POSIX utilities over
// the same channel as Exec, rather than a separate sftp subsystem: no
// complete example repo in the retrieved pack exercises pkg/sftp with
// source to ground on (only bare go.mod manifests reference it), so this
// follows the one transport the teacher and sibling examples actually
// demonstrate (spec §4.6 design note "remote file ops piggyback on exec").

// ReadFile reads relPath by base64-encoding it remotely (binary-safe) and
// decoding locally.
func (e *Executor) ReadFile(ctx context.Context, workspacePath, relPath string, encoding execapi.Encoding) (string, []byte, error) {
	if err := checkEscape(workspacePath, relPath); err != nil {
		return "", nil, err
	}
	full := remoteJoin(workspacePath, relPath)
	cmd := fmt.Sprintf("base64 %s 2>&1", localexec.ShellQuote(full))
	stdout, stderr, exitErr, err := e.run(ctx, cmd, "readFile: "+relPath)
	if err != nil {
		return "", nil, err
	}
	if exitErr != nil {
		return "", nil, errcode.WithPath(errcode.ReadFailed, "failed to read file: "+strings.TrimSpace(stderr), relPath, fmt.Errorf("exit %d", exitErr.ExitStatus()))
	}
	data, decodeErr := base64.StdEncoding.DecodeString(strings.ReplaceAll(stdout, "\n", ""))
	if decodeErr != nil {
		return "", nil, errcode.WithPath(errcode.ReadFailed, "failed to decode remote file contents", relPath, decodeErr)
	}
	if encoding == execapi.Buffer {
		return "", data, nil
	}
	return string(data), nil, nil
}

// WriteFile base64-encodes content locally and decodes it into relPath
// remotely, creating parent directories first.
func (e *Executor) WriteFile(ctx context.Context, workspacePath, relPath string, content []byte) error {
	if err := checkEscape(workspacePath, relPath); err != nil {
		return err
	}
	full := remoteJoin(workspacePath, relPath)
	encoded := base64.StdEncoding.EncodeToString(content)
	cmd := fmt.Sprintf("mkdir -p %s && echo %s | base64 -d > %s",
		localexec.ShellQuote(parentDir(full)), localexec.ShellQuote(encoded), localexec.ShellQuote(full))
	_, stderr, exitErr, err := e.run(ctx, cmd, "writeFile: "+relPath)
	if err != nil {
		return err
	}
	if exitErr != nil {
		return errcode.WithPath(errcode.WriteFailed, "failed to write file: "+strings.TrimSpace(stderr), relPath, fmt.Errorf("exit %d", exitErr.ExitStatus()))
	}
	return nil
}

// Mkdir creates relPath, recursively when requested.
func (e *Executor) Mkdir(ctx context.Context, workspacePath, relPath string, recursive bool) error {
	if err := checkEscape(workspacePath, relPath); err != nil {
		return err
	}
	full := remoteJoin(workspacePath, relPath)
	flag := ""
	if recursive {
		flag = "-p "
	}
	cmd := fmt.Sprintf("mkdir %s%s", flag, localexec.ShellQuote(full))
	_, stderr, exitErr, err := e.run(ctx, cmd, "mkdir: "+relPath)
	if err != nil {
		return err
	}
	if exitErr != nil && !strings.Contains(stderr, "File exists") {
		return errcode.WithPath(errcode.WriteFailed, "failed to create directory: "+strings.TrimSpace(stderr), relPath, fmt.Errorf("exit %d", exitErr.ExitStatus()))
	}
	return nil
}

// Touch creates relPath if absent, or updates its mtime if present.
func (e *Executor) Touch(ctx context.Context, workspacePath, relPath string) error {
	if err := checkEscape(workspacePath, relPath); err != nil {
		return err
	}
	full := remoteJoin(workspacePath, relPath)
	cmd := fmt.Sprintf("mkdir -p %s && touch %s", localexec.ShellQuote(parentDir(full)), localexec.ShellQuote(full))
	_, stderr, exitErr, err := e.run(ctx, cmd, "touch: "+relPath)
	if err != nil {
		return err
	}
	if exitErr != nil {
		return errcode.WithPath(errcode.WriteFailed, "failed to touch file: "+strings.TrimSpace(stderr), relPath, fmt.Errorf("exit %d", exitErr.ExitStatus()))
	}
	return nil
}

// Stat returns kind/size/mtime for relPath, parsed from a single `stat -c`
// invocation (spec §4.6 requires the coreutils `stat` on PATH — see spec
// §4.6 "Required remote utilities").
func (e *Executor) Stat(ctx context.Context, workspacePath, relPath string) (execapi.Stat, error) {
	if err := checkEscape(workspacePath, relPath); err != nil {
		return execapi.Stat{}, err
	}
	full := remoteJoin(workspacePath, relPath)
	cmd := fmt.Sprintf("stat -c '%%F|%%s|%%Y' %s", localexec.ShellQuote(full))
	stdout, stderr, exitErr, err := e.run(ctx, cmd, "stat: "+relPath)
	if err != nil {
		return execapi.Stat{}, err
	}
	if exitErr != nil {
		return execapi.Stat{}, errcode.WithPath(errcode.ReadFailed, "failed to stat path: "+strings.TrimSpace(stderr), relPath, fmt.Errorf("exit %d", exitErr.ExitStatus()))
	}
	return parseStatLine(strings.TrimSpace(stdout), relPath)
}

func parseStatLine(line, relPath string) (execapi.Stat, error) {
	fields := strings.SplitN(line, "|", 3)
	if len(fields) != 3 {
		return execapi.Stat{}, errcode.WithPath(errcode.ReadFailed, "unexpected stat output: "+line, relPath, nil)
	}
	kind := execapi.KindFile
	switch {
	case strings.Contains(fields[0], "symbolic link"):
		kind = execapi.KindSymlink
	case strings.Contains(fields[0], "directory"):
		kind = execapi.KindDirectory
	}
	size, _ := strconv.ParseInt(fields[1], 10, 64)
	epoch, _ := strconv.ParseInt(fields[2], 10, 64)
	return execapi.Stat{Kind: kind, Size: size, Mtime: time.Unix(epoch, 0)}, nil
}

// ListDir lists relPath's entries, one per line as "name|kind".
func (e *Executor) ListDir(ctx context.Context, workspacePath, relPath string) ([]execapi.Entry, error) {
	if err := checkEscape(workspacePath, relPath); err != nil {
		return nil, err
	}
	full := remoteJoin(workspacePath, relPath)
	cmd := fmt.Sprintf(
		`cd %s && for f in * .[!.]* ..?*; do [ -e "$f" ] || continue; if [ -L "$f" ]; then k=symlink; elif [ -d "$f" ]; then k=directory; else k=file; fi; printf '%%s|%%s\n' "$f" "$k"; done`,
		localexec.ShellQuote(full))
	stdout, stderr, exitErr, err := e.run(ctx, cmd, "listDir: "+relPath)
	if err != nil {
		return nil, err
	}
	if exitErr != nil {
		return nil, errcode.WithPath(errcode.LsFailed, "failed to list directory: "+strings.TrimSpace(stderr), relPath, fmt.Errorf("exit %d", exitErr.ExitStatus()))
	}

	var entries []execapi.Entry
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 {
			continue
		}
		kind := execapi.KindFile
		switch parts[1] {
		case "directory":
			kind = execapi.KindDirectory
		case "symlink":
			kind = execapi.KindSymlink
		}
		entries = append(entries, execapi.Entry{Name: parts[0], Kind: kind})
	}
	return entries, nil
}

// Exists reports whether relPath exists.
func (e *Executor) Exists(ctx context.Context, workspacePath, relPath string) (bool, error) {
	if err := checkEscape(workspacePath, relPath); err != nil {
		return false, err
	}
	full := remoteJoin(workspacePath, relPath)
	cmd := fmt.Sprintf("test -e %s", localexec.ShellQuote(full))
	_, _, exitErr, err := e.run(ctx, cmd, "exists: "+relPath)
	if err != nil {
		return false, err
	}
	return exitErr == nil, nil
}

// DeleteTree removes the entire remote workspace directory tree.
func (e *Executor) DeleteTree(ctx context.Context, workspacePath string) error {
	cmd := fmt.Sprintf("rm -rf %s", localexec.ShellQuote(workspacePath))
	_, stderr, exitErr, err := e.run(ctx, cmd, "deleteTree: "+workspacePath)
	if err != nil {
		return err
	}
	if exitErr != nil {
		return errcode.WithPath(errcode.WriteFailed, "failed to delete workspace tree: "+strings.TrimSpace(stderr), workspacePath, fmt.Errorf("exit %d", exitErr.ExitStatus()))
	}
	return nil
}

func remoteJoin(workspacePath, relPath string) string {
	if relPath == "" || relPath == "." {
		return workspacePath
	}
	return strings.TrimRight(workspacePath, "/") + "/" + strings.TrimLeft(relPath, "/")
}

func parentDir(full string) string {
	idx := strings.LastIndex(full, "/")
	if idx <= 0 {
		return "/"
	}
	return full[:idx]
}
