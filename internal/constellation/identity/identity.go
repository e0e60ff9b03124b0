// Package identity validates user and workspace identifiers and computes
// canonical workspace paths (spec §3 "User identity"/"Workspace name", §4.3
// Workspace Identity). Grounded on the character-class validation idiom in
// the teacher's internal/common/validation.go and internal/runner/hashdir/validation.go.
package identity

import (
	"path"
	"regexp"
	"strings"

	"github.com/aspects-ai/constellationfs/internal/constellation/errcode"
)

// DefaultWorkspaceName is used when a caller does not name a workspace.
const DefaultWorkspaceName = "default"

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateUserID validates a user identifier per spec §3: non-empty,
// matches [A-Za-z0-9._-]+, no path separator, no "..", no control chars.
func ValidateUserID(s string) error {
	return validateIdentifier(s, "userId")
}

// ValidateWorkspaceName validates a workspace name using the same character
// class as user identity (spec §3).
func ValidateWorkspaceName(s string) error {
	return validateIdentifier(s, "workspaceName")
}

func validateIdentifier(s, field string) error {
	if strings.TrimSpace(s) == "" {
		return errcode.New(errcode.InvalidConfiguration, field+" must not be empty")
	}
	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return errcode.New(errcode.InvalidConfiguration, field+" must not contain a path separator")
	}
	if strings.Contains(s, "..") {
		return errcode.New(errcode.InvalidConfiguration, field+" must not contain '..'")
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return errcode.New(errcode.InvalidConfiguration, field+" must not contain control characters")
		}
	}
	if !identifierPattern.MatchString(s) {
		return errcode.New(errcode.InvalidConfiguration, field+" must match [A-Za-z0-9._-]+")
	}
	return nil
}

// WorkspacePath computes <workspaceRoot>/<appId>/<userId>/<workspaceName>
// using forward slashes regardless of host OS, since the remote execution
// site is always POSIX (spec §4.3). workspaceName defaults to
// DefaultWorkspaceName when empty.
func WorkspacePath(workspaceRoot, appID, userID, workspaceName string) string {
	if workspaceName == "" {
		workspaceName = DefaultWorkspaceName
	}
	return path.Join(workspaceRoot, appID, userID, workspaceName)
}
