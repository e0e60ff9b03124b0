// Package remoteexec implements the remote (SSH-backed) executor (spec
// §4.6, component C6). It presents the same execapi.Executor surface as
// localexec, routing every operation over the shared remotechannel.Manager
// channel instead of a local subprocess. Grounded on
// _examples/aledsdavies-opal/core/decorator/ssh_session.go's Run method
// (session-per-call, stdin/stdout/stderr wiring, context-cancel via
// goroutine+select+Close, ssh.ExitError exit-code extraction).
package remoteexec

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/aspects-ai/constellationfs/internal/constellation/errcode"
	"github.com/aspects-ai/constellationfs/internal/constellation/execapi"
	"github.com/aspects-ai/constellationfs/internal/constellation/localexec"
	"github.com/aspects-ai/constellationfs/internal/constellation/logging"
	"github.com/aspects-ai/constellationfs/internal/constellation/remotechannel"
	"github.com/aspects-ai/constellationfs/internal/constellation/safety"
)

// Executor is the remote (SSH subprocess) implementation of
// execapi.Executor. Every call opens one exec channel on the shared
// Manager's client, per spec §4.5 ("channels are single-shot").
type Executor struct {
	Manager         *remotechannel.Manager
	MaxOutputLength int
	Logger          *slog.Logger
}

var _ execapi.Executor = (*Executor)(nil)

// New builds a remote executor bound to an already-constructed channel
// manager.
func New(manager *remotechannel.Manager, maxOutputLength int, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{Manager: manager, MaxOutputLength: maxOutputLength, Logger: logger}
}

// Exec runs command on the remote host, prefixed with a cd into
// workspacePath and with customEnv serialized as leading KEY='value'
// assignments (spec §4.6 "Remote exec"). Only UTF-8 output is supported:
// execapi.Buffer is rejected with ExecError.
func (e *Executor) Exec(ctx context.Context, workspacePath, command string, encoding execapi.Encoding, customEnv map[string]string, onDangerous execapi.DangerousOpHandler) (string, []byte, error) {
	if command == "" {
		return "", nil, errcode.New(errcode.EmptyCommand, "command must not be empty")
	}
	if encoding == execapi.Buffer {
		return "", nil, errcode.WithCommand(errcode.ExecError, "buffer encoding is not supported by the remote backend", command, nil)
	}

	verdict, _ := safety.Analyze(command, workspacePath)
	if !verdict.Safe {
		if verdict.Kind == safety.KindDangerous && onDangerous != nil {
			onDangerous(command)
			return "", []byte{}, nil
		}
		return "", nil, classifyVerdict(command, verdict)
	}

	full := buildRemoteCommand(workspacePath, command, customEnv)

	stdout, stderr, exitErr, err := e.run(ctx, full, "exec: "+command)
	if err != nil {
		return "", nil, err
	}
	if exitErr != nil {
		detail := stderr
		if detail == "" {
			detail = stdout
		}
		return "", nil, &errcode.Error{
			Code:    errcode.ExecFailed,
			Message: fmt.Sprintf("exit code %d: %s", exitErr.ExitStatus(), detail),
			Command: command,
		}
	}

	return localexec.CapOutput(stdout, e.MaxOutputLength), nil, nil
}

func buildRemoteCommand(workspacePath, command string, customEnv map[string]string) string {
	var b strings.Builder
	keys := make([]string, 0, len(customEnv))
	for k := range customEnv {
		if localexec.EnvBlocklist[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(localexec.ShellQuote(customEnv[k]))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "cd %s && %s", localexec.ShellQuote(workspacePath), command)
	return b.String()
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

// run opens one exec channel, registers it as a pending op against the
// manager (so channel loss rejects it), and races completion against the
// manager's operation timeout and ctx cancellation (spec §4.5 "Pending
// operation tracking", §4.6 "Operation-level timeout: 120 s per op").
func (e *Executor) run(ctx context.Context, remoteCmd, description string) (stdout, stderr string, exitErr *ssh.ExitError, err error) {
	client, err := e.Manager.Client(ctx)
	if err != nil {
		return "", "", nil, errcode.Wrap(errcode.ExecFailed, "remote channel unavailable", err)
	}

	session, err := client.NewSession()
	if err != nil {
		return "", "", nil, errcode.Wrap(errcode.ExecFailed, "failed to open remote session", err)
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	type result struct {
		err error
	}
	done := make(chan result, 1)

	op, untrack := e.Manager.Register(description, func(rejectErr error) {
		select {
		case done <- result{err: rejectErr}:
		default:
		}
	})
	defer untrack()

	e.Logger.Debug("executing remote command", "description", description)

	go func() {
		runErr := session.Run(remoteCmd)
		op.Fire(runErr)
	}()

	timeout := e.Manager.OperationTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		e.logResult(description, outBuf.Bytes(), errBuf.Bytes(), r.err)
		if r.err != nil {
			var ee *ssh.ExitError
			if asSSHExitError(r.err, &ee) {
				return outBuf.String(), errBuf.String(), ee, nil
			}
			return outBuf.String(), errBuf.String(), nil, r.err
		}
		return outBuf.String(), errBuf.String(), nil, nil
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		e.Logger.Debug("remote command cancelled", "description", description, "error", ctx.Err())
		return "", "", nil, ctx.Err()
	case <-timer.C:
		_ = session.Signal(ssh.SIGKILL)
		timeoutErr := &errcode.Error{Code: errcode.ExecFailed, Message: fmt.Sprintf("operation timed out after %s", timeout), Command: description}
		op.Fire(timeoutErr)
		e.Logger.Warn("remote command timed out", "description", description, "timeout", timeout)
		return "", "", nil, timeoutErr
	}
}

// logResult logs the outcome of a completed remote command at Debug,
// filtering stdout/stderr through logging.ScrubForLog so binary output
// never reaches the log verbatim (spec §4.6 "log-filter binary data").
func (e *Executor) logResult(description string, stdout, stderr []byte, runErr error) {
	e.Logger.Debug("remote command finished",
		"description", description,
		"stdout", logging.ScrubForLog(string(stdout)),
		"stderr", logging.ScrubForLog(string(stderr)),
		"error", runErr,
	)
}

func asSSHExitError(err error, target **ssh.ExitError) bool {
	ee, ok := err.(*ssh.ExitError)
	if ok {
		*target = ee
	}
	return ok
}
