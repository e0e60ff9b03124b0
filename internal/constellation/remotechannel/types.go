package remotechannel

import (
	"time"

	"golang.org/x/crypto/ssh"
)

// State is the channel's connection state machine (spec §4.5).
type State int

// State values, per spec §4.5 diagram.
const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// AuthMode selects how the channel authenticates (spec §4.5).
type AuthMode int

// AuthMode values.
const (
	AuthPassword AuthMode = iota
	AuthKey
)

// Config configures one Manager (spec §3 "FileSystem" remote backend,
// §4.5).
type Config struct {
	Host     string
	Port     int
	User     string
	Mode     AuthMode
	Password string

	PrivateKeyPEM []byte
	Passphrase    string

	KeepAliveInterval time.Duration
	KeepAliveMaxMiss  int
	OperationTimeout  time.Duration

	// HostKeyCallback, when nil, defaults to ssh.InsecureIgnoreHostKey() —
	// see SPEC_FULL.md D2 for the documented override seam.
	HostKeyCallback ssh.HostKeyCallback
}

// DefaultKeepAliveInterval, DefaultKeepAliveMaxMiss, and
// DefaultOperationTimeout implement spec §4.5's "every 30s" / "3 consecutive
// misses" / "120s per op" constants.
const (
	DefaultKeepAliveInterval = 30 * time.Second
	DefaultKeepAliveMaxMiss  = 3
	DefaultOperationTimeout  = 120 * time.Second
)
