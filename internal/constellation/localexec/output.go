package localexec

import (
	"fmt"
	"strings"
)

// CapOutput trims trailing whitespace from s and, if maxOutputLength > 0
// and s exceeds it, truncates to the first (maxOutputLength-50) characters
// followed by a literal truncation notice naming the original and shown
// lengths (spec §4.4 "Output collection", §8 property 9, scenario S7).
func CapOutput(s string, maxOutputLength int) string {
	trimmed := strings.TrimRight(s, " \t\n\r")
	if maxOutputLength <= 0 || len(trimmed) <= maxOutputLength {
		return trimmed
	}

	shown := maxOutputLength - 50
	if shown < 0 {
		shown = 0
	}
	notice := fmt.Sprintf("... [Output truncated. Full output was %d characters, showing first %d]", len(trimmed), shown)
	return trimmed[:shown] + notice
}
