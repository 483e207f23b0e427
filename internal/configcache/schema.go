package configcache

import (
	"fmt"
	"sort"
)

// kind is the expected shape of one config key.
type kind int

const (
	kindString kind = iota
	kindInt
	kindList
	kindDynamicTable // sub-table with caller-defined keys
)

// node is either a leaf kind or a nested table of named children.
type node struct {
	leaf     kind
	isLeaf   bool
	children map[string]node
}

func leaf(k kind) node                    { return node{leaf: k, isLeaf: true} }
func table(children map[string]node) node { return node{children: children} }

// schema enumerates the known toolkit.toml sections and keys. Unknown
// keys are validation errors so typos surface at generation time rather
// than as silently missing env vars.
var schema = table(map[string]node{
	"toolkit": table(map[string]node{
		"remote_url": leaf(kindString),
	}),
	"project": table(map[string]node{
		"name":         leaf(kindString),
		"version_file": leaf(kindString),
		"stacks":       leaf(kindList),
	}),
	"hooks": table(map[string]node{
		"setup": table(map[string]node{
			"python_min_version": leaf(kindString),
			"required_tools":     leaf(kindList),
			"optional_tools":     leaf(kindList),
			"security_tools":     leaf(kindList),
		}),
		"post-edit-lint": table(map[string]node{
			"linters": leaf(kindDynamicTable),
		}),
		"task-completed": table(map[string]node{
			"gates": leaf(kindDynamicTable),
		}),
		"auto-approve": table(map[string]node{
			"write_paths":       leaf(kindList),
			"bash_commands":     leaf(kindList),
			"mcp_tool_prefixes": leaf(kindList),
		}),
		"subagent-context": table(map[string]node{
			"critical_rules":  leaf(kindList),
			"available_tools": leaf(kindList),
			"stack_info":      leaf(kindString),
		}),
		"compact": table(map[string]node{
			"source_dirs":       leaf(kindList),
			"source_extensions": leaf(kindList),
			"state_dirs":        leaf(kindList),
		}),
		"session-end": table(map[string]node{
			"agent_memory_max_lines": leaf(kindInt),
			"hook_log_max_lines":     leaf(kindInt),
		}),
	}),
	"skills": table(map[string]node{
		"implement": table(map[string]node{
			"tdd_enforcement": leaf(kindString),
		}),
	}),
	"notifications": table(map[string]node{
		"app_name":         leaf(kindString),
		"permission_sound": leaf(kindString),
	}),
})

// enumValues restricts certain string keys to a fixed value set.
var enumValues = map[string][]string{
	"skills.implement.tdd_enforcement": {"strict", "guided", "off"},
}

// validateSchema checks decoded TOML data against the schema and the
// enum constraints, returning all problems rather than the first.
func validateSchema(data map[string]any) []string {
	errs := validateTable(data, schema, "")
	errs = append(errs, validateEnums(data, "")...)
	return errs
}

func validateTable(data map[string]any, n node, path string) []string {
	var errs []string
	for _, key := range sortedKeys(data) {
		value := data[key]
		fullKey := key
		if path != "" {
			fullKey = path + "." + key
		}
		child, known := n.children[key]
		if !known {
			errs = append(errs, fmt.Sprintf("unknown key %q", fullKey))
			continue
		}
		if child.isLeaf {
			errs = append(errs, validateLeaf(value, child.leaf, fullKey)...)
			continue
		}
		sub, ok := value.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("expected table for %q, got %T", fullKey, value))
			continue
		}
		errs = append(errs, validateTable(sub, child, fullKey)...)
	}
	return errs
}

func validateLeaf(value any, k kind, fullKey string) []string {
	switch k {
	case kindString:
		if _, ok := value.(string); !ok {
			return []string{fmt.Sprintf("expected string for %q, got %T", fullKey, value)}
		}
	case kindInt:
		if _, ok := value.(int64); !ok {
			return []string{fmt.Sprintf("expected integer for %q, got %T", fullKey, value)}
		}
	case kindList:
		if _, ok := value.([]any); !ok {
			return []string{fmt.Sprintf("expected list for %q, got %T", fullKey, value)}
		}
	case kindDynamicTable:
		if _, ok := value.(map[string]any); !ok {
			return []string{fmt.Sprintf("expected table for %q, got %T", fullKey, value)}
		}
	}
	return nil
}

func validateEnums(data map[string]any, path string) []string {
	var errs []string
	for _, key := range sortedKeys(data) {
		value := data[key]
		fullKey := key
		if path != "" {
			fullKey = path + "." + key
		}
		if sub, ok := value.(map[string]any); ok {
			errs = append(errs, validateEnums(sub, fullKey)...)
			continue
		}
		allowed, constrained := enumValues[fullKey]
		if !constrained {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		valid := false
		for _, a := range allowed {
			if s == a {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, fmt.Sprintf("invalid value for %q: %q (allowed: %v)", fullKey, s, allowed))
		}
	}
	return errs
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
