package manifest

import (
	"time"

	"github.com/toolkit-labs/toolkit/internal/layout"
)

// Status records who owns an entry's content.
type Status string

const (
	// StatusManaged marks content fully owned by upstream, safe to
	// overwrite during sync.
	StatusManaged Status = "managed"

	// StatusCustomized marks content the project has intentionally
	// modified. A refresh never overwrites it.
	StatusCustomized Status = "customized"

	// StatusCopyManaged marks content that could not be linked to its
	// upstream source and is tracked purely by content-hash comparison.
	StatusCopyManaged Status = "copy-managed"
)

// Category discriminates the three entry sub-schemas. Agents and rules
// are single files carrying one hash; skills are directories carrying a
// file list.
type Category string

const (
	CategoryAgent Category = "agent"
	CategoryRule  Category = "rule"
	CategorySkill Category = "skill"
)

// Entry is one vendored artifact. ToolkitHash is set for agents and
// rules; Files is set for skills. The shared shape keeps the categories'
// logic from diverging silently.
type Entry struct {
	Path         string     `json:"path"`
	Category     Category   `json:"category"`
	Status       Status     `json:"status"`
	ToolkitHash  string     `json:"toolkit_hash,omitempty"`
	Files        []string   `json:"files,omitempty"`
	CustomizedAt *time.Time `json:"customized_at,omitempty"`
}

// Manifest is the aggregate root, persisted as sorted JSON at the fixed
// project-relative path.
type Manifest struct {
	ToolkitVersion   string           `json:"toolkit_version"`
	GeneratedAt      time.Time        `json:"generated_at"`
	LastSubtreeMerge string           `json:"last_subtree_merge"`
	Agents           map[string]Entry `json:"agents"`
	Rules            map[string]Entry `json:"rules"`
	Skills           map[string]Entry `json:"skills"`
}

// Lookup resolves an entry path ("agents/reviewer.md", "rules/tdd.md",
// "skills/commit-analyzer") to its category map name and key. The skill
// key is the directory name even when a file within it is given.
func (m *Manifest) Lookup(entryPath string) (Entry, bool) {
	category, name, ok := splitEntryPath(entryPath)
	if !ok {
		return Entry{}, false
	}
	var entry Entry
	var found bool
	switch category {
	case layout.AgentsDir:
		entry, found = m.Agents[name]
	case layout.RulesDir:
		entry, found = m.Rules[name]
	case layout.SkillsDir:
		entry, found = m.Skills[name]
	}
	return entry, found
}

// setEntry stores an entry back under its category map.
func (m *Manifest) setEntry(entry Entry) {
	category, name, ok := splitEntryPath(entry.Path)
	if !ok {
		return
	}
	switch category {
	case layout.AgentsDir:
		m.Agents[name] = entry
	case layout.RulesDir:
		m.Rules[name] = entry
	case layout.SkillsDir:
		m.Skills[name] = entry
	}
}

func splitEntryPath(p string) (category, name string, ok bool) {
	if err := layout.ValidEntryPath(p); err != nil {
		return "", "", false
	}
	rest := p
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			category = rest[:i]
			name = rest[i+1:]
			break
		}
	}
	if category == layout.SkillsDir {
		// Skill entries are keyed by directory name.
		for i := 0; i < len(name); i++ {
			if name[i] == '/' {
				name = name[:i]
				break
			}
		}
	}
	return category, name, true
}

// nowUTC is the single timestamp policy point: UTC, second precision.
var nowUTC = func() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
