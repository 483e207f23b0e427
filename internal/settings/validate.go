package settings

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Known top-level settings keys. Anything else is a probable typo, flagged
// as a warning so forward-compatible keys never block generation.
var knownTopLevelKeys = map[string]bool{
	"hooks":          true,
	"permissions":    true,
	"env":            true,
	"preferences":    true,
	"mcpServers":     true,
	"mcp":            true,
	"sandbox":        true,
	"enabledPlugins": true,
}

var knownHookEvents = map[string]bool{
	"PreToolUse":         true,
	"PostToolUse":        true,
	"PostToolUseFailure": true,
	"SessionStart":       true,
	"SessionEnd":         true,
	"Notification":       true,
	"Stop":               true,
	"PreCompact":         true,
	"PostCompact":        true,
	"UserPromptSubmit":   true,
	"TaskCompleted":      true,
	"PermissionRequest":  true,
	"SubagentStart":      true,
	"SubagentStop":       true,
}

var knownHookEntryFields = map[string]bool{
	"matcher":     true,
	"hooks":       true,
	"event":       true,
	"type":        true,
	"command":     true,
	"timeout":     true,
	"description": true,
}

// Auto-approve safety: commands an agent may run without confirmation must
// never include an unrestricted shell or an interpreter exec flag.
var dangerousBareCommands = map[string]bool{
	"*":          true,
	"sh":         true,
	"bash":       true,
	"zsh":        true,
	"fish":       true,
	"osascript":  true,
	"powershell": true,
	"curl":       true,
	"wget":       true,
	"eval":       true,
}

var interpreterExecPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^python\s+-c\b`),
	regexp.MustCompile(`^python3\s+-c\b`),
	regexp.MustCompile(`^node\s+-e\b`),
	regexp.MustCompile(`^perl\s+-e\b`),
	regexp.MustCompile(`^ruby\s+-e\b`),
}

var pipeToShell = regexp.MustCompile(`\|\s*(sh|bash|python|python3)\b`)

// StructureWarnings reports schema problems in the merged document. These
// are warnings, not errors: an unrecognized key must never block
// generation.
func StructureWarnings(merged Document) []string {
	var warnings []string

	var unknown []string
	for key := range merged {
		if !knownTopLevelKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		warnings = append(warnings, fmt.Sprintf("unknown top-level key %q (possible typo)", key))
	}

	warnings = append(warnings, hookWarnings(merged)...)
	warnings = append(warnings, schemaIssueWarnings(merged)...)
	return warnings
}

func hookWarnings(merged Document) []string {
	var warnings []string
	hooks, ok := merged["hooks"].(Document)
	if !ok {
		return nil
	}

	var events []string
	for event := range hooks {
		events = append(events, event)
	}
	sort.Strings(events)

	for _, event := range events {
		if event == "auto-approve" {
			// auto-approve has its own structure, checked by Validate.
			continue
		}
		if !knownHookEvents[event] {
			warnings = append(warnings, fmt.Sprintf("unknown hook event %q", event))
		}
		entries, ok := hooks[event].([]any)
		if !ok {
			continue
		}
		for _, raw := range entries {
			entry, ok := raw.(Document)
			if !ok {
				continue
			}
			var fields []string
			for field := range entry {
				fields = append(fields, field)
			}
			sort.Strings(fields)
			for _, field := range fields {
				if !knownHookEntryFields[field] {
					warnings = append(warnings, fmt.Sprintf("unknown field %q in hook entry for event %q", field, event))
				}
			}
		}
	}
	return warnings
}

// Validate runs the blocking checks on a merged document. A non-empty
// result fails the generation with no output written.
func Validate(merged Document) []string {
	var errs []string

	if hooks, ok := merged["hooks"].(Document); ok {
		if autoApprove, ok := hooks["auto-approve"].(Document); ok {
			if cmds, ok := autoApprove["bash_commands"].([]any); ok {
				errs = append(errs, validateAutoApprove(cmds)...)
			}
		}
	}

	if perms, ok := merged["permissions"].(Document); ok {
		allow, _ := perms["allow"].([]any)
		deny, _ := perms["deny"].([]any)
		errs = append(errs, allowDenyConflicts(allow, deny)...)
	}

	return errs
}

func validateAutoApprove(commands []any) []string {
	var errs []string
	for _, raw := range commands {
		cmd, ok := raw.(string)
		if !ok {
			continue
		}
		// Surrounding whitespace must not defeat the anchored checks.
		cmd = strings.TrimSpace(cmd)
		if dangerousBareCommands[cmd] {
			errs = append(errs, fmt.Sprintf("auto-approve blocked: %q is a dangerous bare command", cmd))
			continue
		}
		for _, pat := range interpreterExecPatterns {
			if pat.MatchString(cmd) {
				errs = append(errs, fmt.Sprintf("auto-approve blocked: %q uses an interpreter exec flag", cmd))
				break
			}
		}
		if pipeToShell.MatchString(cmd) {
			errs = append(errs, fmt.Sprintf("auto-approve blocked: %q contains a pipe-to-shell pattern", cmd))
		}
	}
	return errs
}

func allowDenyConflicts(allow, deny []any) []string {
	allowSet := make(map[string]bool)
	for _, raw := range allow {
		if s, ok := raw.(string); ok {
			allowSet[s] = true
		}
	}
	var conflicts []string
	for _, raw := range deny {
		if s, ok := raw.(string); ok && allowSet[s] {
			conflicts = append(conflicts, s)
		}
	}
	sort.Strings(conflicts)
	var errs []string
	for _, entry := range conflicts {
		errs = append(errs, fmt.Sprintf("allow/deny conflict: %q appears in both lists", entry))
	}
	return errs
}
