// Package safety implements the static command-line safety analyzer (spec
// §4.1, component C1): dangerous-operation detection, workspace-escape
// detection, and path-argument extraction, with heredoc bodies masked out
// before any pattern is applied. Grounded on the teacher's
// internal/runner/security/command_analysis.go (pattern-table idiom) and
// internal/runner/security/network_analyzer.go.
package safety

import (
	"strings"

	"github.com/aspects-ai/constellationfs/internal/constellation/pathsafety"
)

// Analyze classifies command per spec §4.1's final-verdict ordering:
// NetworkCommand base token, then Dangerous pattern, then Escape pattern
// (after heredoc masking), then InvalidPath (any path extracted from the
// heredoc-masked command that fails the path validator against workspace),
// else Safe. workspace may be empty,
// in which case the InvalidPath check is skipped (callers that haven't
// resolved a workspace yet, e.g. config validation, can still get a
// dangerous/escape verdict).
func Analyze(command string, workspace string) (Verdict, ParsedCommand) {
	parsed := Parse(command)

	if parsed.Base != "" && networkCommandBases[parsed.Base] {
		return unsafe(KindNetworkCommand, "base command "+parsed.Base+" is a network client"), parsed
	}

	masked := maskHeredocs(command)

	if reason, ok := matchDangerous(masked); ok {
		parsed.HasDangerousPattern = true
		return unsafe(KindDangerous, reason), parsed
	}

	if reason, ok := matchEscape(masked); ok {
		return unsafe(KindEscape, reason), parsed
	}

	if workspace != "" {
		for _, p := range Parse(masked).Paths {
			if !pathsafety.SymlinkSafety(workspace, p).Safe {
				return unsafe(KindInvalidPath, "path argument "+p+" fails workspace validation"), parsed
			}
		}
	}

	return safe(), parsed
}

// matchDangerous tests masked against dangerousPatterns directly, and
// against the body of any command-substitution/backtick form, per spec
// §4.1 ("command-substitution or backtick forms that invoke any of the
// above").
func matchDangerous(masked string) (string, bool) {
	for _, p := range dangerousPatterns {
		if p.regex.MatchString(masked) {
			return p.reason, true
		}
	}

	for _, m := range commandSubstitutionPattern.FindAllStringSubmatch(masked, -1) {
		body := m[1]
		if body == "" {
			body = m[2]
		}
		for _, p := range dangerousPatterns {
			if p.regex.MatchString(body) {
				return p.reason + " (via command substitution)", true
			}
		}
	}

	return "", false
}

// matchEscape tests masked for workspace-escape patterns: directory-change
// verbs as the base of any statement, PATH/HOME/PWD export rebinding,
// absolute-path/home-expansion tokens, and ${...} expansions (spec §4.1
// Workspace-escape patterns).
func matchEscape(masked string) (string, bool) {
	tokens := tokenize(masked)
	for _, stmt := range splitStatements(tokens) {
		if len(stmt) == 0 {
			continue
		}
		base := stmt[0].text
		if escapeVerbs[base] {
			return "directory-change verb " + base, true
		}
	}

	if envRebindPattern.MatchString(masked) {
		return "export rebinds PATH/HOME/PWD", true
	}

	if homeExpansionPattern.MatchString(masked) {
		return "token references ~/ or $HOME", true
	}

	if genericVarExpansionPattern.MatchString(masked) {
		return "shell-variable expansion may rebind state", true
	}

	for _, stmt := range splitStatements(tokens) {
		for _, t := range stmt {
			if !t.quoted && strings.HasPrefix(t.text, "/") {
				return "absolute path token " + t.text, true
			}
		}
	}

	return "", false
}

// Parse breaks command into a ParsedCommand: base token, remaining tokens,
// deduplicated path arguments, and derived flags (spec §3 "Parsed
// command"). Parse never fails; it is purely structural.
func Parse(command string) ParsedCommand {
	tokens := tokenize(command)
	var pc ParsedCommand
	if len(tokens) == 0 {
		return pc
	}

	pc.Base = tokens[0].text
	for _, t := range tokens[1:] {
		if t.text == ";" || t.text == "&" || t.text == "|" {
			continue
		}
		pc.Args = append(pc.Args, t.text)
	}

	seen := make(map[string]bool)
	addPath := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		pc.Paths = append(pc.Paths, p)
		if strings.HasPrefix(p, "/") {
			pc.HasAbsolutePath = true
		}
	}

	isVerbContext := pathVerbs[pc.Base]
	for _, t := range tokens[1:] {
		if t.text == ";" || t.text == "&" || t.text == "|" {
			continue
		}
		if looksLikeScheme(t.text) {
			continue
		}
		if t.quoted {
			addPath(t.text)
			continue
		}
		if strings.HasPrefix(t.text, "-") {
			continue
		}
		if strings.HasPrefix(t.text, "/") || strings.HasPrefix(t.text, "./") || strings.HasPrefix(t.text, "../") {
			addPath(t.text)
			continue
		}
		if isVerbContext {
			addPath(t.text)
		}
	}

	return pc
}

func looksLikeScheme(s string) bool {
	idx := strings.Index(s, "://")
	return idx > 0
}
