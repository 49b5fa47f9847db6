package agentrt

import "regexp"

// PermissionMode controls how an `ask` permission decision is resolved for
// a tool call (§4.3 step 2).
type PermissionMode string

const (
	// PermissionModeDefault raises an interrupt on `ask`; `deny` errors.
	PermissionModeDefault PermissionMode = "default"
	// PermissionModeAcceptEdits treats `ask` as `allow`.
	PermissionModeAcceptEdits PermissionMode = "acceptEdits"
	// PermissionModeBypass treats every decision as `allow`.
	PermissionModeBypass PermissionMode = "bypassPermissions"
)

// blockShellFileOpsPatterns are the command patterns installed under
// acceptEdits when blockShellFileOps is configured: output redirection,
// the file-mutating coreutils, and package-manager writes (§4.3 step 2).
var blockShellFileOpsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`>>?[^&]`),                                      // output redirection, not >&
	regexp.MustCompile(`\b(rm|mv|cp|touch|mkdir|rmdir|chmod|chown)\b`), // file-mutating coreutils
	regexp.MustCompile(`\b(npm|pnpm|yarn|pip|pip3|go)\s+(install|add|get|remove|uninstall)\b`),
	regexp.MustCompile(`\bapt(-get)?\s+(install|remove|purge)\b`),
}

// matchBlockedCommand reports the first blockShellFileOps pattern that
// matches command, or "" if none do.
func matchBlockedCommand(command string) string {
	for _, re := range blockShellFileOpsPatterns {
		if re.MatchString(command) {
			return re.String()
		}
	}
	return ""
}

// resolvedPermission is what step 2 of the tool wrapper settles on, after
// folding the hook-aggregated decision through the configured mode.
type resolvedPermission struct {
	Decision PermissionDecision
	Reason   string
}

// resolvePermission applies mode on top of the hook-aggregated decision
// (§4.3 step 2). blockShellFileOps, when true and mode is acceptEdits,
// additionally denies commands matching blockShellFileOpsPatterns — this
// check only applies to tools whose input looks like a shell command,
// passed in via command (empty for non-shell tools).
func resolvePermission(decision PermissionDecision, reason string, mode PermissionMode, blockShellFileOps bool, command string) resolvedPermission {
	switch mode {
	case PermissionModeBypass:
		return resolvedPermission{Decision: PermissionAllow}
	case PermissionModeAcceptEdits:
		if blockShellFileOps && command != "" {
			if pattern := matchBlockedCommand(command); pattern != "" {
				return resolvedPermission{Decision: PermissionDeny, Reason: "blocked by pattern " + pattern}
			}
		}
		if decision == PermissionAsk {
			return resolvedPermission{Decision: PermissionAllow}
		}
		return resolvedPermission{Decision: decision, Reason: reason}
	default: // PermissionModeDefault
		return resolvedPermission{Decision: decision, Reason: reason}
	}
}
