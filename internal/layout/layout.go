package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Directory names under the assistant dir. These double as the category
// prefixes used in manifest entry paths ("agents/reviewer.md").
const (
	AssistantDirName = ".assistant"
	ToolkitDirName   = "toolkit"

	AgentsDir = "agents"
	RulesDir  = "rules"
	SkillsDir = "skills"
)

// Fixed file names under the assistant dir.
const (
	ManifestFileName = "toolkit-manifest.json"
	SettingsFileName = "settings.json"
	TomlFileName     = "toolkit.toml"
	CacheFileName    = "toolkit-cache.env"
)

// Layout resolves all toolkit paths relative to a project root.
type Layout struct {
	Root string
}

// New returns a Layout rooted at the given project directory.
func New(root string) Layout {
	return Layout{Root: root}
}

// AssistantDir returns the project's .assistant directory.
func (l Layout) AssistantDir() string {
	return filepath.Join(l.Root, AssistantDirName)
}

// ToolkitDir returns the vendored upstream subtree directory.
func (l Layout) ToolkitDir() string {
	return filepath.Join(l.AssistantDir(), ToolkitDirName)
}

// ManifestPath returns the path of the provenance manifest.
func (l Layout) ManifestPath() string {
	return filepath.Join(l.AssistantDir(), ManifestFileName)
}

// SettingsPath returns the path of the generated settings document.
func (l Layout) SettingsPath() string {
	return filepath.Join(l.AssistantDir(), SettingsFileName)
}

// TomlPath returns the path of the project's toolkit.toml.
func (l Layout) TomlPath() string {
	return filepath.Join(l.AssistantDir(), TomlFileName)
}

// CachePath returns the path of the generated config cache.
func (l Layout) CachePath() string {
	return filepath.Join(l.AssistantDir(), CacheFileName)
}

// ProjectFile returns the materialized path for a manifest entry path such
// as "agents/reviewer.md".
func (l Layout) ProjectFile(entryPath string) string {
	return filepath.Join(l.AssistantDir(), filepath.FromSlash(entryPath))
}

// ToolkitFile returns the vendored upstream path for a manifest entry path.
func (l Layout) ToolkitFile(entryPath string) string {
	return filepath.Join(l.ToolkitDir(), filepath.FromSlash(entryPath))
}

// ValidEntryPath reports whether p is a well-formed manifest entry path:
// slash-separated, under one of the three category prefixes, and free of
// parent-directory traversal segments.
func ValidEntryPath(p string) error {
	prefix, _, ok := strings.Cut(p, "/")
	if !ok {
		return fmt.Errorf("path %q must be namespaced under %s/, %s/, or %s/", p, AgentsDir, RulesDir, SkillsDir)
	}
	switch prefix {
	case AgentsDir, RulesDir, SkillsDir:
	default:
		return fmt.Errorf("path %q must be namespaced under %s/, %s/, or %s/", p, AgentsDir, RulesDir, SkillsDir)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return fmt.Errorf("path %q contains a parent-directory segment", p)
		}
		if seg == "" {
			return fmt.Errorf("path %q contains an empty segment", p)
		}
	}
	return nil
}

// Skill describes one upstream skill directory and its files.
type Skill struct {
	Name  string
	Files []string // sorted, relative to the skill directory
}

// ListAgents returns the sorted names of upstream agent files
// (toolkit/agents/*.md).
func (l Layout) ListAgents() ([]string, error) {
	return listMarkdown(filepath.Join(l.ToolkitDir(), AgentsDir))
}

// ListRules returns the sorted names of upstream rule files
// (toolkit/rules/*.md).
func (l Layout) ListRules() ([]string, error) {
	return listMarkdown(filepath.Join(l.ToolkitDir(), RulesDir))
}

// ListSkills returns the upstream skills, each with its sorted file list.
// Regular files only; symlinks and nested VCS metadata are skipped.
func (l Layout) ListSkills() ([]Skill, error) {
	skillsDir := filepath.Join(l.ToolkitDir(), SkillsDir)
	entries, err := os.ReadDir(skillsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading skills directory %s: %w", skillsDir, err)
	}

	var skills []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		files, err := listSkillFiles(filepath.Join(skillsDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		skills = append(skills, Skill{Name: entry.Name(), Files: files})
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
	return skills, nil
}

func listMarkdown(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), ".md") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func listSkillFiles(skillDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(skillDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(skillDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking skill directory %s: %w", skillDir, err)
	}
	sort.Strings(files)
	return files, nil
}
