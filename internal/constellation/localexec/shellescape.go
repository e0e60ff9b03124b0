package localexec

import "strings"

// ShellQuote single-quotes s for safe interpolation into a shell command
// line, escaping embedded single quotes with the standard '\'' trick.
// Adapted from the teacher's ShellEscape (internal/runner/executor/shell_escape.go),
// simplified to always quote — ConstellationFS uses this for env-var value
// interpolation (spec §4.6 "K='v' prefix") and for quoting paths in the
// remote executor's commands, where unconditional quoting is simpler and no
// less correct than the teacher's safe-charset fast path.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
