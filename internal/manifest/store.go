package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toolkit-labs/toolkit/internal/atomicfile"
	"github.com/toolkit-labs/toolkit/internal/hashutil"
	"github.com/toolkit-labs/toolkit/internal/layout"
)

// Sentinel errors callers branch on. The CLI surfaces the wrapped text
// verbatim, so messages name the corrective operation.
var (
	ErrNotFound = errors.New("manifest not found")
	ErrCorrupt  = errors.New("manifest is corrupt")
)

// versionFileName inside the vendored toolkit holds the upstream version.
const versionFileName = "VERSION"

// Store owns the manifest. No other component mutates it.
type Store struct {
	Layout layout.Layout
}

// NewStore returns a Store for the project at root.
func NewStore(root string) *Store {
	return &Store{Layout: layout.New(root)}
}

// Init enumerates every agent, rule, and skill in the vendored toolkit
// and writes a fresh manifest with every entry managed. Running it twice
// against unchanged upstream content yields identical manifests modulo
// the generated_at timestamp.
func (s *Store) Init() (*Manifest, error) {
	m := &Manifest{
		ToolkitVersion: s.toolkitVersion(),
		GeneratedAt:    nowUTC(),
		Agents:         map[string]Entry{},
		Rules:          map[string]Entry{},
		Skills:         map[string]Entry{},
	}

	agents, err := s.Layout.ListAgents()
	if err != nil {
		return nil, fmt.Errorf("enumerating agents: %w", err)
	}
	for _, name := range agents {
		path := layout.AgentsDir + "/" + name
		m.Agents[name] = Entry{
			Path:        path,
			Category:    CategoryAgent,
			Status:      StatusManaged,
			ToolkitHash: hashutil.FileDigest(s.Layout.ToolkitFile(path)),
		}
	}

	rules, err := s.Layout.ListRules()
	if err != nil {
		return nil, fmt.Errorf("enumerating rules: %w", err)
	}
	for _, name := range rules {
		path := layout.RulesDir + "/" + name
		m.Rules[name] = Entry{
			Path:        path,
			Category:    CategoryRule,
			Status:      StatusManaged,
			ToolkitHash: hashutil.FileDigest(s.Layout.ToolkitFile(path)),
		}
	}

	skills, err := s.Layout.ListSkills()
	if err != nil {
		return nil, fmt.Errorf("enumerating skills: %w", err)
	}
	for _, skill := range skills {
		m.Skills[skill.Name] = Entry{
			Path:     layout.SkillsDir + "/" + skill.Name,
			Category: CategorySkill,
			Status:   StatusManaged,
			Files:    skill.Files,
		}
	}

	if err := s.Save(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Save persists the manifest atomically with deterministic formatting.
func (s *Store) Save(m *Manifest) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := atomicfile.WriteFile(s.Layout.ManifestPath(), buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Load reads and parses the manifest. A missing file yields ErrNotFound.
// An unparsable file is copied to a timestamped backup (preserving the
// evidence) and yields ErrCorrupt.
func (s *Store) Load() (*Manifest, error) {
	path := s.Layout.ManifestPath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w at %s: run init first", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		backup, backupErr := s.backupCorrupt(data)
		if backupErr != nil {
			return nil, fmt.Errorf("%w (%v); backup also failed: %v", ErrCorrupt, err, backupErr)
		}
		return nil, fmt.Errorf("%w (%v); original preserved at %s", ErrCorrupt, err, backup)
	}
	if m.Agents == nil {
		m.Agents = map[string]Entry{}
	}
	if m.Rules == nil {
		m.Rules = map[string]Entry{}
	}
	if m.Skills == nil {
		m.Skills = map[string]Entry{}
	}
	return &m, nil
}

// Validate reports whether the manifest at its fixed path is well formed.
// On corruption the bad bytes have already been backed up by Load.
func (s *Store) Validate() error {
	_, err := s.Load()
	return err
}

// backupCorrupt copies the unparsable manifest bytes to a timestamped
// sibling and returns the backup path.
func (s *Store) backupCorrupt(data []byte) (string, error) {
	stamp := nowUTC().Format("20060102-150405")
	backup := s.Layout.ManifestPath() + ".corrupt-" + stamp
	if err := os.WriteFile(backup, data, 0644); err != nil {
		return "", fmt.Errorf("writing backup %s: %w", backup, err)
	}
	return backup, nil
}

// CustomizeResult reports what Customize did. Regenerated is set when a
// corrupt manifest forced a full regeneration, which resets every prior
// customization flag to managed — callers must surface that prominently.
type CustomizeResult struct {
	Entry       Entry
	Regenerated bool
}

// Customize transitions the entry at entryPath to customized and stamps
// the customization time. The path must be namespaced under a category
// prefix and free of traversal segments, and the entry must exist.
func (s *Store) Customize(entryPath string) (*CustomizeResult, error) {
	if err := layout.ValidEntryPath(entryPath); err != nil {
		return nil, err
	}

	result := &CustomizeResult{}
	m, err := s.Load()
	if errors.Is(err, ErrCorrupt) {
		// Regenerate wholesale. Prior customization flags are lost;
		// the caller is told so it can warn loudly.
		m, err = s.Init()
		if err != nil {
			return nil, fmt.Errorf("regenerating corrupt manifest: %w", err)
		}
		result.Regenerated = true
	} else if err != nil {
		return nil, err
	}

	entry, ok := m.Lookup(entryPath)
	if !ok {
		return nil, fmt.Errorf("no manifest entry for %q: check the path or run init to refresh the inventory", entryPath)
	}

	now := nowUTC()
	entry.Status = StatusCustomized
	entry.CustomizedAt = &now
	m.setEntry(entry)

	if err := s.Save(m); err != nil {
		return nil, err
	}
	result.Entry = entry
	return result, nil
}

// SkillUpdateResult reports what UpdateSkill copied, or why it declined.
type SkillUpdateResult struct {
	Skill   string
	Copied  []string
	Skipped bool
	Reason  string
}

// UpdateSkill refreshes a managed skill from the vendored toolkit: every
// upstream file that is new or textually different from the project's
// copy is copied over. Each copy is independent and idempotent. A
// customized skill is left untouched and reported as skipped.
func (s *Store) UpdateSkill(name string) (*SkillUpdateResult, error) {
	m, err := s.Load()
	if err != nil {
		return nil, err
	}

	entry, ok := m.Skills[name]
	if !ok {
		return nil, fmt.Errorf("skill %q is not in the manifest: run init to refresh the inventory", name)
	}
	if entry.Status == StatusCustomized {
		return &SkillUpdateResult{
			Skill:   name,
			Skipped: true,
			Reason:  fmt.Sprintf("skill %q is customized; not overwriting local changes", name),
		}, nil
	}

	skillPath := layout.SkillsDir + "/" + name
	upstreamDir := s.Layout.ToolkitFile(skillPath)
	projectDir := s.Layout.ProjectFile(skillPath)

	files, err := currentSkillFiles(upstreamDir)
	if err != nil {
		return nil, err
	}

	result := &SkillUpdateResult{Skill: name}
	for _, rel := range files {
		src := filepath.Join(upstreamDir, filepath.FromSlash(rel))
		dst := filepath.Join(projectDir, filepath.FromSlash(rel))

		equal, err := hashutil.FilesEqual(src, dst)
		if err != nil {
			return nil, err
		}
		if equal {
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return nil, fmt.Errorf("updating skill %s: %w", name, err)
		}
		result.Copied = append(result.Copied, rel)
	}

	entry.Files = files
	m.Skills[name] = entry
	if err := s.Save(m); err != nil {
		return nil, err
	}
	return result, nil
}

// Rematerialize restores a managed agent or rule whose project copy is
// missing or no longer matches the vendored source. Customized entries
// are never touched. It reports whether a copy happened.
func (s *Store) Rematerialize(entry Entry) (bool, error) {
	if entry.Status == StatusCustomized {
		return false, nil
	}
	src := s.Layout.ToolkitFile(entry.Path)
	dst := s.Layout.ProjectFile(entry.Path)

	equal, err := hashutil.FilesEqual(src, dst)
	if err != nil {
		return false, err
	}
	if equal {
		return false, nil
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return false, fmt.Errorf("upstream source for %s is missing from the vendored toolkit", entry.Path)
	}
	if err := copyFile(src, dst); err != nil {
		return false, fmt.Errorf("rematerializing %s: %w", entry.Path, err)
	}
	return true, nil
}

// RefreshHash re-records the upstream hash for an agent or rule entry.
// Only manifest store operations may touch toolkit_hash; drift detection
// reads it but never writes.
func (s *Store) RefreshHash(m *Manifest, entry Entry) {
	entry.ToolkitHash = hashutil.FileDigest(s.Layout.ToolkitFile(entry.Path))
	m.setEntry(entry)
}

// SetSubtreeMerge records the upstream revision id after a subtree sync.
func (s *Store) SetSubtreeMerge(m *Manifest, revision string) error {
	m.LastSubtreeMerge = revision
	return s.Save(m)
}

// SetToolkitVersion records the upstream version after a completed update.
func (s *Store) SetToolkitVersion(m *Manifest, version string) error {
	m.ToolkitVersion = version
	m.GeneratedAt = nowUTC()
	return s.Save(m)
}

// ToolkitVersion reads the upstream version marker from the vendored
// toolkit, falling back to "unknown" when absent.
func (s *Store) ToolkitVersion() string {
	return s.toolkitVersion()
}

func (s *Store) toolkitVersion() string {
	data, err := os.ReadFile(filepath.Join(s.Layout.ToolkitDir(), versionFileName))
	if err != nil {
		return "unknown"
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return "unknown"
	}
	return version
}

func currentSkillFiles(skillDir string) ([]string, error) {
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
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("skill source %s is missing from the vendored toolkit", skillDir)
	}
	if err != nil {
		return nil, fmt.Errorf("walking skill source %s: %w", skillDir, err)
	}
	sort.Strings(files)
	return files, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return atomicfile.WriteFile(dst, data, srcInfo.Mode().Perm())
}
