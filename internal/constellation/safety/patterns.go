package safety

import "regexp"

// dangerousPattern is one entry in the static dangerous-operation table,
// matched against the full (masked) command line. Shape grounded on the
// teacher's DangerousCommandPattern in
// internal/runner/security/command_analysis.go, minus the risk-level field
// (this spec's verdict is binary safe/unsafe, not risk-graded).
type dangerousPattern struct {
	regex  *regexp.Regexp
	reason string
}

// dangerousPatterns implements spec §4.1's dangerous-operation classes.
// Matched against the full (masked) command line so multi-token and
// pipe/substitution forms are caught without a bespoke parser per class.
var dangerousPatterns = []dangerousPattern{
	{regexp.MustCompile(`\brm\s+(-[a-zA-Z]*[rf][a-zA-Z]*\s+)+(/|~|\*)(\s|$)`), "recursive/force removal rooted at /, ~, or *"},
	{regexp.MustCompile(`\brm\s+-[a-zA-Z]*[rf][a-zA-Z]*\s+.*(/|~|\*)\s*$`), "recursive/force removal rooted at /, ~, or *"},
	{regexp.MustCompile(`\bsudo\b`), "privilege escalation via sudo"},
	{regexp.MustCompile(`\bsu\s`), "privilege escalation via su"},
	{regexp.MustCompile(`^su$`), "privilege escalation via su"},
	{regexp.MustCompile(`\bchmod\s+(-R\s+)?([0-7]*7[0-7]{2}|a\+w|o\+w|ugo\+w)\b`), "permission change granting world-write"},
	{regexp.MustCompile(`\bchown\s+(-R\s+)?root\b`), "ownership change to root"},
	{regexp.MustCompile(`\b(curl|wget)\b[^|]*\|\s*(sudo\s+)?(sh|bash|zsh|ksh|dash)\b`), "piping a network fetch into a shell interpreter"},
	{regexp.MustCompile(`(^|[^\w.])(nc|ncat|telnet|ftp|ssh)\b`), "direct network client for lateral movement"},
	{regexp.MustCompile(`\bkill\s+-9\b`), "forceful process kill"},
	{regexp.MustCompile(`\b(killall|pkill)\b`), "bulk process control"},
	{regexp.MustCompile(`\b(shutdown|reboot|halt)\b`), "system power control"},
	{regexp.MustCompile(`\binit\s+[06]\b`), "system runlevel control"},
	{regexp.MustCompile(`\b(mount|umount|fdisk|mkfs(\.\w+)?|fsck)\b`), "filesystem management"},
	{regexp.MustCompile(`\b(cp|mv|ln)\b[^&|;]*\.\./`), "path-traversal argument to a copy/move/link command"},
}

// commandSubstitutionPattern finds `$(...)` or backtick forms; its captured
// body is re-scanned against dangerousPatterns (spec: "command-substitution
// or backtick forms that invoke any of the above").
var commandSubstitutionPattern = regexp.MustCompile("\\$\\(([^)]*)\\)|`([^`]*)`")

// networkCommandBases are the base tokens that are unconditionally unsafe
// (spec §4.1 final verdict, NetworkCommand class).
var networkCommandBases = map[string]bool{
	"wget": true, "curl": true, "nc": true, "ncat": true,
	"ssh": true, "scp": true, "rsync": true,
}

// escapeVerbs are directory-change verbs that escape the workspace's notion
// of "current directory" (spec §4.1 Workspace-escape patterns).
var escapeVerbs = map[string]bool{
	"cd": true, "pushd": true, "popd": true,
}

// envRebindPattern matches `export PATH=`, `export HOME=`, `export PWD=`.
var envRebindPattern = regexp.MustCompile(`\bexport\s+(PATH|HOME|PWD)=`)

// homeExpansionPattern matches `~/...` or a bare `$HOME`/`${HOME}` token.
var homeExpansionPattern = regexp.MustCompile(`(^|[\s"'])~/|\$\{?HOME\}?\b`)

// genericVarExpansionPattern matches `${...}` forms used to rebind state.
var genericVarExpansionPattern = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// pathVerbs are commands whose positional (non-flag) arguments are treated
// as candidate file paths (spec §4.1 "Path-argument extraction").
var pathVerbs = map[string]bool{
	"cat": true, "less": true, "grep": true, "find": true, "ls": true,
	"rm": true, "cp": true, "mv": true, "touch": true, "mkdir": true,
	"head": true, "tail": true,
}
