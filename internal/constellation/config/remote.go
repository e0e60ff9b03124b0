package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/aspects-ai/constellationfs/internal/constellation/errcode"
)

// RemoteVMHost is a parsed REMOTE_VM_HOST value (spec §6): "user@host:port".
type RemoteVMHost struct {
	User string
	Host string
	Port int
}

// ParseRemoteVMHost reads and strictly parses REMOTE_VM_HOST. Absent or
// malformed input returns errcode.BackendNotImplemented carrying the
// offending value, per spec §6 ("Absent → BACKEND_NOT_IMPLEMENTED; wrong
// shape → BACKEND_NOT_IMPLEMENTED with the offending value in context").
func ParseRemoteVMHost() (RemoteVMHost, error) {
	raw := os.Getenv("REMOTE_VM_HOST")
	if raw == "" {
		return RemoteVMHost{}, errcode.New(errcode.BackendNotImplemented, "REMOTE_VM_HOST is not set")
	}
	return parseRemoteVMHost(raw)
}

func parseRemoteVMHost(raw string) (RemoteVMHost, error) {
	atIdx := strings.Index(raw, "@")
	if atIdx <= 0 {
		return RemoteVMHost{}, &errcode.Error{Code: errcode.BackendNotImplemented, Message: "REMOTE_VM_HOST must be user@host:port, got " + raw}
	}
	user := raw[:atIdx]
	rest := raw[atIdx+1:]

	colonIdx := strings.LastIndex(rest, ":")
	if colonIdx <= 0 || colonIdx == len(rest)-1 {
		return RemoteVMHost{}, &errcode.Error{Code: errcode.BackendNotImplemented, Message: "REMOTE_VM_HOST must be user@host:port, got " + raw}
	}
	host := rest[:colonIdx]
	portStr := rest[colonIdx+1:]

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return RemoteVMHost{}, &errcode.Error{Code: errcode.BackendNotImplemented, Message: "REMOTE_VM_HOST has an invalid port, got " + raw}
	}

	return RemoteVMHost{User: user, Host: host, Port: port}, nil
}
