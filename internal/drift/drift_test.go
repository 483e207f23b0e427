package drift

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/toolkit-labs/toolkit/internal/layout"
	"github.com/toolkit-labs/toolkit/internal/manifest"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func setup(t *testing.T) (*manifest.Store, string) {
	t.Helper()
	root := t.TempDir()
	write(t, root, ".assistant/toolkit/agents/reviewer.md", "v1\n")
	write(t, root, ".assistant/toolkit/rules/tdd.md", "v1\n")
	write(t, root, ".assistant/toolkit/skills/changelog/SKILL.md", "v1\n")
	return manifest.NewStore(root), root
}

func TestNoDriftWhenUpstreamUnchanged(t *testing.T) {
	s, root := setup(t)
	if _, err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Customize("agents/reviewer.md"); err != nil {
		t.Fatal(err)
	}

	m, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	drifted, err := Check(m, layout.New(root))
	if err != nil {
		t.Fatal(err)
	}
	if len(drifted) != 0 {
		t.Errorf("unchanged upstream reported drift: %v", drifted)
	}
}

func TestDriftOnUpstreamChange(t *testing.T) {
	s, root := setup(t)
	if _, err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Customize("agents/reviewer.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Customize("rules/tdd.md"); err != nil {
		t.Fatal(err)
	}

	// Upstream moves under one customization only.
	write(t, root, ".assistant/toolkit/agents/reviewer.md", "v2\n")

	m, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	drifted, err := Check(m, layout.New(root))
	if err != nil {
		t.Fatal(err)
	}
	if len(drifted) != 1 {
		t.Fatalf("expected exactly one drifted entry, got %v", drifted)
	}
	d := drifted[0]
	if d.Path != "agents/reviewer.md" {
		t.Errorf("drifted path = %s", d.Path)
	}
	if d.StoredHash == d.UpstreamHash {
		t.Error("drift entry should carry differing hashes")
	}
}

func TestManagedEntriesNeverReported(t *testing.T) {
	s, root := setup(t)
	if _, err := s.Init(); err != nil {
		t.Fatal(err)
	}

	// Upstream changes but nothing is customized.
	write(t, root, ".assistant/toolkit/agents/reviewer.md", "v2\n")

	m, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	drifted, err := Check(m, layout.New(root))
	if err != nil {
		t.Fatal(err)
	}
	if len(drifted) != 0 {
		t.Errorf("managed entries should not be drift candidates: %v", drifted)
	}
}

func TestSkillDriftByLiveDiff(t *testing.T) {
	s, root := setup(t)
	if _, err := s.Init(); err != nil {
		t.Fatal(err)
	}
	// Materialize the skill, then customize it.
	if _, err := s.UpdateSkill("changelog"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Customize("skills/changelog"); err != nil {
		t.Fatal(err)
	}

	m, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	drifted, err := Check(m, layout.New(root))
	if err != nil {
		t.Fatal(err)
	}
	if len(drifted) != 0 {
		t.Fatalf("skill in sync reported drift: %v", drifted)
	}

	write(t, root, ".assistant/toolkit/skills/changelog/SKILL.md", "v2\n")
	drifted, err = Check(m, layout.New(root))
	if err != nil {
		t.Fatal(err)
	}
	if len(drifted) != 1 {
		t.Fatalf("expected skill drift, got %v", drifted)
	}
	if got := drifted[0].ChangedFiles; len(got) != 1 || got[0] != "SKILL.md" {
		t.Errorf("changed files = %v", got)
	}
}

func TestCheckIsReadOnly(t *testing.T) {
	s, root := setup(t)
	if _, err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Customize("agents/reviewer.md"); err != nil {
		t.Fatal(err)
	}
	write(t, root, ".assistant/toolkit/agents/reviewer.md", "v2\n")

	before, err := os.ReadFile(s.Layout.ManifestPath())
	if err != nil {
		t.Fatal(err)
	}
	m, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Check(m, layout.New(root)); err != nil {
		t.Fatal(err)
	}
	after, err := os.ReadFile(s.Layout.ManifestPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("drift detection mutated the manifest")
	}
}
