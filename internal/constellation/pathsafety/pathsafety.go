// Package pathsafety validates that a workspace-relative path cannot escape
// its workspace, including through symlinks (spec §4.2 Path Validator).
// Grounded on the symlink-aware safe-open primitives in the teacher's
// internal/safefileio/safe_file.go and internal/safefileio/safe_file_linux.go.
package pathsafety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aspects-ai/constellationfs/internal/constellation/errcode"
)

// IsEscaping reports whether normalizing target against workspace yields a
// path outside workspace. An absolute target escapes by definition (spec
// §4.2).
func IsEscaping(workspace, target string) bool {
	if filepath.IsAbs(target) {
		return true
	}
	joined := filepath.Join(workspace, target)
	cleanWorkspace := filepath.Clean(workspace)
	return !withinPrefix(cleanWorkspace, joined)
}

// ResolveSafely returns the resolved absolute path of target within
// workspace, or an *errcode.Error carrying both inputs if it would escape.
func ResolveSafely(workspace, target string) (string, error) {
	if target == "" {
		return "", errcode.New(errcode.EmptyPath, "path must not be empty")
	}
	if IsEscaping(workspace, target) {
		return "", &errcode.Error{
			Code:    errcode.AbsolutePathRejected,
			Message: fmt.Sprintf("path %q escapes workspace %q", target, workspace),
			Path:    target,
		}
	}
	return filepath.Join(filepath.Clean(workspace), target), nil
}

// Verdict is the result of a symlink-escape walk over an existing path.
type Verdict struct {
	Safe    bool
	Reason  string
	Segment string
}

// SymlinkSafety walks each existing path segment from workspace down to
// target; for every segment that is a symlink, it reads the link target and
// resolves it relative to the segment's parent. If any resolved link
// destination escapes workspace, the walk returns an unsafe Verdict naming
// the offending segment. Nonexistent trailing segments terminate the walk
// as safe (a write may be about to create them). Any unexpected stat error
// fails closed (unsafe), per spec §4.2.
func SymlinkSafety(workspace, target string) Verdict {
	resolvedTarget, err := ResolveSafely(workspace, target)
	if err != nil {
		return Verdict{Safe: false, Reason: err.Error()}
	}

	cleanWorkspace := filepath.Clean(workspace)
	rel, err := filepath.Rel(cleanWorkspace, resolvedTarget)
	if err != nil {
		return Verdict{Safe: false, Reason: "could not compute relative path: " + err.Error()}
	}
	if rel == "." {
		return Verdict{Safe: true}
	}

	segments := strings.Split(filepath.ToSlash(rel), "/")
	current := cleanWorkspace
	for _, seg := range segments {
		current = filepath.Join(current, seg)

		info, statErr := os.Lstat(current)
		if statErr != nil {
			if errors.Is(statErr, os.ErrNotExist) {
				// Nonexistent trailing segment: writes may create it.
				return Verdict{Safe: true}
			}
			return Verdict{Safe: false, Reason: "failed to stat " + current + ": " + statErr.Error(), Segment: seg}
		}

		if info.Mode()&os.ModeSymlink == 0 {
			continue
		}

		linkDest, readErr := os.Readlink(current)
		if readErr != nil {
			return Verdict{Safe: false, Reason: "failed to read symlink " + current + ": " + readErr.Error(), Segment: seg}
		}
		if !filepath.IsAbs(linkDest) {
			linkDest = filepath.Join(filepath.Dir(current), linkDest)
		}
		if !withinPrefix(cleanWorkspace, linkDest) {
			return Verdict{
				Safe:    false,
				Reason:  fmt.Sprintf("symlink %q resolves to %q, outside workspace %q", seg, linkDest, workspace),
				Segment: seg,
			}
		}
	}

	return Verdict{Safe: true}
}

// Offense describes one invalid path reported by ValidateMany.
type Offense struct {
	Path   string
	Reason string
}

// ValidateMany runs SymlinkSafety over every path and reports each offender.
func ValidateMany(workspace string, paths []string) (offenses []Offense, valid bool) {
	valid = true
	for _, p := range paths {
		v := SymlinkSafety(workspace, p)
		if !v.Safe {
			valid = false
			offenses = append(offenses, Offense{Path: p, Reason: v.Reason})
		}
	}
	return offenses, valid
}

// withinPrefix reports whether candidate is prefix (a directory) or a path
// underneath it, after cleaning both.
func withinPrefix(prefix, candidate string) bool {
	cleanPrefix := filepath.Clean(prefix)
	cleanCandidate := filepath.Clean(candidate)
	if cleanCandidate == cleanPrefix {
		return true
	}
	return strings.HasPrefix(cleanCandidate, cleanPrefix+string(filepath.Separator))
}
