// Package remotechannel maintains the single authenticated remote channel a
// remote-backend router uses for every operation (spec §4.5, component C5).
// Grounded on golang.org/x/crypto/ssh usage in
// _examples/aledsdavies-opal/core/decorator/ssh_session.go (dial/auth/
// session shape) with the lazy-connect/keep-alive/pending-op state machine
// layered on top per spec §4.5/§5.
package remotechannel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/aspects-ai/constellationfs/internal/constellation/errcode"
)

// PendingOp is one in-flight operation registered against the channel so it
// can be rejected on channel loss (spec §3 "Pending operation").
type PendingOp struct {
	ID          string
	Description string
	reject      func(error)
	completed   bool
	mu          sync.Mutex
}

// Fire completes the op with err (nil on success), whether that's the
// caller's own completion or a channel-loss rejection racing it — whichever
// fires first wins (spec §4.5 "Pending-operation tracking").
func (p *PendingOp) Fire(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.completed {
		return
	}
	p.completed = true
	p.reject(err)
}

// Manager owns exactly one authenticated SSH channel per remote router
// (spec §4.5).
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	client   *ssh.Client
	connErr  error
	connWait chan struct{}
	pending  map[string]*PendingOp
}

// New builds a Manager in the Disconnected state. Connect happens lazily,
// on the first call to Client (spec §4.5 "Lazy connect").
func New(cfg Config, logger *slog.Logger) *Manager {
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if cfg.KeepAliveMaxMiss <= 0 {
		cfg.KeepAliveMaxMiss = DefaultKeepAliveMaxMiss
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultOperationTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		logger:  logger,
		state:   Disconnected,
		pending: make(map[string]*PendingOp),
	}
}

// State returns the manager's current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Client returns the live *ssh.Client, connecting first if necessary. If a
// connect attempt is already in flight, the caller waits on it rather than
// starting a second one (spec §4.5 "Connect is serialized").
func (m *Manager) Client(ctx context.Context) (*ssh.Client, error) {
	m.mu.Lock()
	switch m.state {
	case Connected:
		client := m.client
		m.mu.Unlock()
		return client, nil
	case Connecting:
		wait := m.connWait
		m.mu.Unlock()
		select {
		case <-wait:
			return m.Client(ctx)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	default:
		m.connWait = make(chan struct{})
		m.state = Connecting
		m.mu.Unlock()
	}

	client, err := m.dial(ctx)

	m.mu.Lock()
	if err != nil {
		m.state = Disconnected
		m.connErr = err
		close(m.connWait)
		m.mu.Unlock()
		return nil, err
	}
	m.client = client
	m.state = Connected
	close(m.connWait)
	m.mu.Unlock()

	go m.keepAliveLoop(client)
	go m.watchClose(client)

	return client, nil
}

func (m *Manager) dial(ctx context.Context) (*ssh.Client, error) {
	auth, err := m.authMethods()
	if err != nil {
		return nil, err
	}

	hostKeyCallback := m.cfg.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // documented override seam, see SPEC_FULL.md D2
	}

	sshCfg := &ssh.ClientConfig{
		User:            m.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         m.cfg.OperationTimeout,
	}
	if m.cfg.Mode == AuthPassword {
		sshCfg.Auth = append(sshCfg.Auth, ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range questions {
				answers[i] = m.cfg.Password
			}
			return answers, nil
		}))
	}

	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprintf("%d", m.cfg.Port))
	dialer := net.Dialer{Timeout: m.cfg.OperationTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errcode.Wrap(errcode.ExecFailed, "failed to dial "+addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		return nil, errcode.Wrap(errcode.ExecFailed, "ssh handshake failed", err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func (m *Manager) authMethods() ([]ssh.AuthMethod, error) {
	if m.cfg.User == "" {
		return nil, errcode.New(errcode.InvalidConfiguration, "remote credentials must include a username")
	}

	switch m.cfg.Mode {
	case AuthPassword:
		return []ssh.AuthMethod{ssh.Password(m.cfg.Password)}, nil
	case AuthKey:
		signer, err := m.parseKey()
		if err != nil {
			return nil, err
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	default:
		return nil, errcode.New(errcode.InvalidConfiguration, "unknown remote auth mode")
	}
}

func (m *Manager) parseKey() (ssh.Signer, error) {
	if m.cfg.Passphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(m.cfg.PrivateKeyPEM, []byte(m.cfg.Passphrase))
		if err != nil {
			return nil, errcode.Wrap(errcode.InvalidConfiguration, "failed to parse private key with passphrase", err)
		}
		return signer, nil
	}

	signer, err := ssh.ParsePrivateKey(m.cfg.PrivateKeyPEM)
	if err == nil {
		return signer, nil
	}

	var passphraseErr *ssh.PassphraseMissingError
	if !asPassphraseMissing(err, &passphraseErr) {
		return nil, errcode.Wrap(errcode.InvalidConfiguration, "failed to parse private key", err)
	}

	if !term.IsTerminal(0) {
		return nil, errcode.New(errcode.InvalidConfiguration, "private key is encrypted and no passphrase was configured; no TTY available to prompt")
	}
	pass, promptErr := term.ReadPassword(0)
	if promptErr != nil {
		return nil, errcode.Wrap(errcode.InvalidConfiguration, "failed to read passphrase from terminal", promptErr)
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(m.cfg.PrivateKeyPEM, pass)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidConfiguration, "failed to parse private key with prompted passphrase", err)
	}
	return signer, nil
}

func asPassphraseMissing(err error, target **ssh.PassphraseMissingError) bool {
	pm, ok := err.(*ssh.PassphraseMissingError)
	if ok {
		*target = pm
	}
	return ok
}

// keepAliveLoop sends an application-level keep-alive request every
// KeepAliveInterval; after KeepAliveMaxMiss consecutive failures, the peer
// is considered dead and the channel transitions to Disconnected, draining
// all pending ops (spec §4.5 "Keep-alives").
func (m *Manager) keepAliveLoop(client *ssh.Client) {
	ticker := time.NewTicker(m.cfg.KeepAliveInterval)
	defer ticker.Stop()

	misses := 0
	for range ticker.C {
		m.mu.Lock()
		stillCurrent := m.client == client && m.state == Connected
		m.mu.Unlock()
		if !stillCurrent {
			return
		}

		_, _, err := client.SendRequest("keepalive@constellationfs", true, nil)
		if err != nil {
			misses++
			m.logger.Warn("remote keep-alive missed", "misses", misses)
			if misses >= m.cfg.KeepAliveMaxMiss {
				m.handleLoss(client, fmt.Errorf("missed %d consecutive keep-alives", misses))
				return
			}
			continue
		}
		misses = 0
	}
}

// watchClose blocks until the underlying connection closes or errors, then
// drains pending ops (spec §4.5 "Connection-loss handling").
func (m *Manager) watchClose(client *ssh.Client) {
	err := client.Wait()
	m.handleLoss(client, err)
}

func (m *Manager) handleLoss(client *ssh.Client, cause error) {
	m.mu.Lock()
	if m.client != client {
		m.mu.Unlock()
		return // already superseded by a later reconnect
	}
	m.state = Disconnected
	m.client = nil
	pending := m.pending
	m.pending = make(map[string]*PendingOp)
	m.mu.Unlock()

	reason := "Connection lost"
	if cause != nil {
		reason = fmt.Sprintf("Connection lost: %v", cause)
	}
	m.logger.Warn("remote channel lost", "reason", reason, "pending_ops", len(pending))

	for _, op := range pending {
		op.Fire(&errcode.Error{Code: errcode.ExecFailed, Message: reason})
	}
}

// Register tracks a new pending op and returns an untrack closure. reject is
// called at most once, whichever of timeout/completion/channel-loss fires
// first (spec §4.5 "Pending-operation tracking").
func (m *Manager) Register(description string, reject func(error)) (op *PendingOp, untrack func()) {
	op = &PendingOp{ID: uuid.NewString(), Description: description, reject: reject}

	m.mu.Lock()
	m.pending[op.ID] = op
	m.mu.Unlock()

	untrack = func() {
		m.mu.Lock()
		delete(m.pending, op.ID)
		m.mu.Unlock()
	}
	return op, untrack
}

// OperationTimeout returns the configured per-op timeout.
func (m *Manager) OperationTimeout() time.Duration {
	return m.cfg.OperationTimeout
}

// Close ends the channel, if any, and drains any pending ops.
func (m *Manager) Close() error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.state = Disconnected
	pending := m.pending
	m.pending = make(map[string]*PendingOp)
	m.mu.Unlock()

	for _, op := range pending {
		op.Fire(&errcode.Error{Code: errcode.ExecFailed, Message: "Connection lost: channel closed"})
	}

	if client == nil {
		return nil
	}
	return client.Close()
}
