package localexec

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aspects-ai/constellationfs/internal/constellation/errcode"
)

// EnvBlocklist is silently dropped from any caller-supplied environment
// (spec §3 "Custom environment", §6).
var EnvBlocklist = map[string]bool{
	"LD_PRELOAD": true, "LD_LIBRARY_PATH": true,
	"DYLD_INSERT_LIBRARIES": true, "DYLD_LIBRARY_PATH": true,
	"IFS": true, "BASH_ENV": true, "ENV": true,
}

// EnvProtected are allowed in a custom environment but logged at warn level
// when overridden (spec §3).
var EnvProtected = map[string]bool{
	"PATH": true, "HOME": true, "PWD": true, "TMPDIR": true,
	"TMP": true, "SHELL": true, "USER": true,
}

// DetectShell returns "bash" if it is on PATH, else "sh" (spec §4.4 "Shell
// detection").
func DetectShell() string {
	if _, err := exec.LookPath("bash"); err == nil {
		return "bash"
	}
	return "sh"
}

// BaseEnvironment builds the scrubbed base environment for a local exec
// call: a platform-reasonable PATH, host USER, the detected shell, PWD/HOME
// pinned to workspacePath, TMPDIR under it, a C locale, and the blocklist
// explicitly unset (spec §4.4).
func BaseEnvironment(workspacePath, shell string) map[string]string {
	env := map[string]string{
		"PATH":    defaultSystemPath(),
		"USER":    os.Getenv("USER"),
		"SHELL":   shell,
		"PWD":     workspacePath,
		"HOME":    workspacePath,
		"TMPDIR":  filepath.Join(workspacePath, ".tmp"),
		"LANG":    "C",
		"LC_ALL":  "C",
	}
	return env
}

// MergeCustomEnv overlays custom onto base, silently dropping blocked keys
// and rejecting any value containing a NUL byte (spec §3 "Custom
// environment" invariants). It returns the merged map and, separately, the
// set of protected keys that were overridden (for warn-level logging by the
// caller).
func MergeCustomEnv(base, custom map[string]string) (merged map[string]string, overriddenProtected []string, err error) {
	merged = make(map[string]string, len(base)+len(custom))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range custom {
		if EnvBlocklist[k] {
			continue
		}
		if strings.Contains(v, "\x00") {
			return nil, nil, errcode.New(errcode.InvalidConfiguration, "environment value for "+k+" contains a NUL byte")
		}
		if strings.Contains(v, "\n") || strings.Contains(v, ";") {
			return nil, nil, errcode.New(errcode.InvalidConfiguration, "environment value for "+k+" contains a newline or semicolon")
		}
		if EnvProtected[k] {
			if _, wasBase := base[k]; wasBase && base[k] != v {
				overriddenProtected = append(overriddenProtected, k)
			}
		}
		merged[k] = v
	}
	return merged, overriddenProtected, nil
}

func defaultSystemPath() string {
	return "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
}
