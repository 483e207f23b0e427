package manifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/toolkit-labs/toolkit/internal/layout"
)

// writeToolkit seeds the vendored upstream subtree under root.
func writeToolkit(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, layout.AssistantDirName, layout.ToolkitDirName, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeProject(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, layout.AssistantDirName, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func seedStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	writeToolkit(t, root, "VERSION", "1.4.0\n")
	writeToolkit(t, root, "agents/reviewer.md", "review carefully\n")
	writeToolkit(t, root, "rules/tdd.md", "tests first\n")
	writeToolkit(t, root, "skills/commit-analyzer/SKILL.md", "analyze commits\n")
	writeToolkit(t, root, "skills/commit-analyzer/scripts/run.sh", "#!/bin/sh\n")
	return NewStore(root), root
}

func TestInit(t *testing.T) {
	s, _ := seedStore(t)

	m, err := s.Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if m.ToolkitVersion != "1.4.0" {
		t.Errorf("toolkit_version = %q, want 1.4.0", m.ToolkitVersion)
	}

	agent, ok := m.Agents["reviewer.md"]
	if !ok {
		t.Fatal("agent entry missing")
	}
	if agent.Status != StatusManaged || agent.Category != CategoryAgent {
		t.Errorf("agent = %+v", agent)
	}
	if len(agent.ToolkitHash) != 64 {
		t.Errorf("agent hash = %q", agent.ToolkitHash)
	}

	skill, ok := m.Skills["commit-analyzer"]
	if !ok {
		t.Fatal("skill entry missing")
	}
	if skill.ToolkitHash != "" {
		t.Error("skills carry a file list, not a single hash")
	}
	wantFiles := []string{"SKILL.md", "scripts/run.sh"}
	if !reflect.DeepEqual(skill.Files, wantFiles) {
		t.Errorf("skill files = %v, want %v", skill.Files, wantFiles)
	}
}

func TestInitIdempotent(t *testing.T) {
	s, _ := seedStore(t)

	first, err := s.Init()
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Init()
	if err != nil {
		t.Fatal(err)
	}

	// Byte-identical modulo generated_at.
	first.GeneratedAt = second.GeneratedAt
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("manifests differ:\n%s\n%s", a, b)
	}
}

func TestLoadMissing(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Load()
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateCorruptBacksUp(t *testing.T) {
	s, root := seedStore(t)
	if _, err := s.Init(); err != nil {
		t.Fatal(err)
	}

	bad := []byte("{ this is not json")
	if err := os.WriteFile(s.Layout.ManifestPath(), bad, 0644); err != nil {
		t.Fatal(err)
	}

	err := s.Validate()
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, layout.AssistantDirName))
	if err != nil {
		t.Fatal(err)
	}
	var backup string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), layout.ManifestFileName+".corrupt-") {
			backup = filepath.Join(root, layout.AssistantDirName, e.Name())
		}
	}
	if backup == "" {
		t.Fatal("no timestamped backup written")
	}
	got, err := os.ReadFile(backup)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(bad) {
		t.Error("backup does not preserve the original bytes")
	}
}

func TestCustomize(t *testing.T) {
	s, _ := seedStore(t)
	if _, err := s.Init(); err != nil {
		t.Fatal(err)
	}

	result, err := s.Customize("rules/tdd.md")
	if err != nil {
		t.Fatalf("Customize: %v", err)
	}
	if result.Regenerated {
		t.Error("healthy manifest should not be regenerated")
	}
	if result.Entry.Status != StatusCustomized {
		t.Errorf("status = %s", result.Entry.Status)
	}
	if result.Entry.CustomizedAt == nil {
		t.Fatal("customized_at not stamped")
	}
	if loc := result.Entry.CustomizedAt.Location(); loc != nil && loc.String() != "UTC" {
		t.Errorf("customized_at not UTC: %v", loc)
	}

	// Persisted.
	m, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if m.Rules["tdd.md"].Status != StatusCustomized {
		t.Error("customization not persisted")
	}
}

func TestCustomizeRejectsBadPaths(t *testing.T) {
	s, _ := seedStore(t)
	if _, err := s.Init(); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{
		"prompts/x.md",
		"rules/../agents/reviewer.md",
		"tdd.md",
		"rules/missing.md",
	} {
		if _, err := s.Customize(path); err == nil {
			t.Errorf("Customize(%q) should fail", path)
		}
	}

	// Rejection happens before any mutation.
	m, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	for name, entry := range m.Rules {
		if entry.Status != StatusManaged {
			t.Errorf("rule %s mutated by rejected customize", name)
		}
	}
}

func TestCustomizeWithoutManifest(t *testing.T) {
	s, _ := seedStore(t)
	if _, err := s.Customize("rules/tdd.md"); err == nil {
		t.Error("customize without a manifest should fail")
	}
}

func TestCustomizeRegeneratesCorrupt(t *testing.T) {
	s, _ := seedStore(t)
	if _, err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Customize("agents/reviewer.md"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Layout.ManifestPath(), []byte("broken{"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := s.Customize("rules/tdd.md")
	if err != nil {
		t.Fatalf("Customize after corruption: %v", err)
	}
	if !result.Regenerated {
		t.Error("regeneration must be surfaced to the caller")
	}

	m, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	// Regeneration resets prior customizations; the new one applies.
	if m.Agents["reviewer.md"].Status != StatusManaged {
		t.Error("regeneration should reset prior flags to managed")
	}
	if m.Rules["tdd.md"].Status != StatusCustomized {
		t.Error("requested customization should still apply")
	}
}

func TestUpdateSkillCopiesChangedFiles(t *testing.T) {
	s, root := seedStore(t)
	if _, err := s.Init(); err != nil {
		t.Fatal(err)
	}

	// Project has a stale copy of one file and lacks the other.
	writeProject(t, root, "skills/commit-analyzer/SKILL.md", "stale\n")

	result, err := s.UpdateSkill("commit-analyzer")
	if err != nil {
		t.Fatalf("UpdateSkill: %v", err)
	}
	wantCopied := []string{"SKILL.md", "scripts/run.sh"}
	if !reflect.DeepEqual(result.Copied, wantCopied) {
		t.Errorf("copied = %v, want %v", result.Copied, wantCopied)
	}

	got, err := os.ReadFile(s.Layout.ProjectFile("skills/commit-analyzer/SKILL.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "analyze commits\n" {
		t.Errorf("project copy = %q", got)
	}

	// Second run is a no-op.
	again, err := s.UpdateSkill("commit-analyzer")
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Copied) != 0 {
		t.Errorf("idempotent rerun copied %v", again.Copied)
	}
}

func TestUpdateSkillSkipsCustomized(t *testing.T) {
	s, root := seedStore(t)
	if _, err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Customize("skills/commit-analyzer"); err != nil {
		t.Fatal(err)
	}
	writeProject(t, root, "skills/commit-analyzer/SKILL.md", "local edits\n")

	result, err := s.UpdateSkill("commit-analyzer")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Skipped {
		t.Fatal("customized skill must be skipped")
	}

	got, err := os.ReadFile(s.Layout.ProjectFile("skills/commit-analyzer/SKILL.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "local edits\n" {
		t.Error("customized content was overwritten")
	}
}

func TestRematerialize(t *testing.T) {
	s, root := seedStore(t)
	m, err := s.Init()
	if err != nil {
		t.Fatal(err)
	}

	agent := m.Agents["reviewer.md"]
	copied, err := s.Rematerialize(agent)
	if err != nil {
		t.Fatal(err)
	}
	if !copied {
		t.Error("missing materialization should be restored")
	}

	// Unchanged copy: no-op.
	copied, err = s.Rematerialize(agent)
	if err != nil {
		t.Fatal(err)
	}
	if copied {
		t.Error("intact materialization should not be rewritten")
	}

	// Customized entries are never touched.
	writeProject(t, root, "agents/reviewer.md", "my version\n")
	agent.Status = StatusCustomized
	copied, err = s.Rematerialize(agent)
	if err != nil {
		t.Fatal(err)
	}
	if copied {
		t.Error("customized entry must be left alone")
	}
	got, _ := os.ReadFile(s.Layout.ProjectFile("agents/reviewer.md"))
	if string(got) != "my version\n" {
		t.Error("customized bytes changed")
	}
}

func TestLookup(t *testing.T) {
	s, _ := seedStore(t)
	m, err := s.Init()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path  string
		found bool
	}{
		{"agents/reviewer.md", true},
		{"rules/tdd.md", true},
		{"skills/commit-analyzer", true},
		{"skills/commit-analyzer/SKILL.md", true},
		{"agents/nope.md", false},
		{"bogus", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, found := m.Lookup(tt.path)
			if found != tt.found {
				t.Errorf("Lookup(%q) found = %v, want %v", tt.path, found, tt.found)
			}
		})
	}
}
