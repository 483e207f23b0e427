package update

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/toolkit-labs/toolkit/internal/manifest"
)

// fakeFetcher applies a staged content map to the vendored toolkit and
// returns a canned revision id.
type fakeFetcher struct {
	root     string
	revision string
	content  map[string]string // entry path -> content
	dirty    bool
	fetchErr error
	fetched  bool
}

func (f *fakeFetcher) Fetch(ref string) (string, error) {
	if f.fetchErr != nil {
		return "", f.fetchErr
	}
	f.fetched = true
	toolkitDir := filepath.Join(f.root, ".assistant", "toolkit")
	if err := os.RemoveAll(toolkitDir); err != nil {
		return "", err
	}
	for rel, content := range f.content {
		path := filepath.Join(toolkitDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return "", err
		}
	}
	return f.revision, nil
}

func (f *fakeFetcher) Dirty() (bool, error) {
	return f.dirty, nil
}

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

func seed(t *testing.T) (*manifest.Store, string) {
	t.Helper()
	root := t.TempDir()
	write(t, root, ".assistant/toolkit/VERSION", "1.0.0\n")
	write(t, root, ".assistant/toolkit/agents/reviewer.md", "v1 agent\n")
	write(t, root, ".assistant/toolkit/rules/tdd.md", "v1 rule\n")
	write(t, root, ".assistant/toolkit/skills/changelog/SKILL.md", "v1 skill\n")

	s := manifest.NewStore(root)
	if _, err := s.Init(); err != nil {
		t.Fatal(err)
	}
	// Materialize the managed content as an install would.
	write(t, root, ".assistant/agents/reviewer.md", "v1 agent\n")
	write(t, root, ".assistant/rules/tdd.md", "v1 rule\n")
	write(t, root, ".assistant/skills/changelog/SKILL.md", "v1 skill\n")
	return s, root
}

func upstreamV2(root string) *fakeFetcher {
	return &fakeFetcher{
		root:     root,
		revision: "rev-abc123",
		content: map[string]string{
			"VERSION":                   "2.0.0\n",
			"agents/reviewer.md":        "v2 agent\n",
			"rules/tdd.md":              "v2 rule\n",
			"skills/changelog/SKILL.md": "v2 skill\n",
			"skills/changelog/NOTES.md": "new file\n",
		},
	}
}

func TestRunFullSequence(t *testing.T) {
	s, root := seed(t)
	f := upstreamV2(root)

	o := &Orchestrator{Store: s, Fetcher: f}
	result, err := o.Run(Options{Ref: "latest"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Revision != "rev-abc123" {
		t.Errorf("revision = %s", result.Revision)
	}
	if result.ToolkitVersion != "2.0.0" {
		t.Errorf("toolkit version = %s", result.ToolkitVersion)
	}

	m, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if m.LastSubtreeMerge != "rev-abc123" {
		t.Errorf("last_subtree_merge = %s", m.LastSubtreeMerge)
	}
	if m.ToolkitVersion != "2.0.0" {
		t.Errorf("manifest toolkit_version = %s", m.ToolkitVersion)
	}

	// Managed content was refreshed.
	got, _ := os.ReadFile(filepath.Join(root, ".assistant", "agents", "reviewer.md"))
	if string(got) != "v2 agent\n" {
		t.Errorf("agent not refreshed: %q", got)
	}
	got, _ = os.ReadFile(filepath.Join(root, ".assistant", "skills", "changelog", "NOTES.md"))
	if string(got) != "new file\n" {
		t.Errorf("new skill file not copied: %q", got)
	}
	if len(result.Drifted) != 0 {
		t.Errorf("no customizations, so no drift: %v", result.Drifted)
	}
}

func TestRunProtectsCustomizations(t *testing.T) {
	s, root := seed(t)
	if _, err := s.Customize("rules/tdd.md"); err != nil {
		t.Fatal(err)
	}
	write(t, root, ".assistant/rules/tdd.md", "my local rule\n")

	o := &Orchestrator{Store: s, Fetcher: upstreamV2(root)}
	result, err := o.Run(Options{Ref: "latest"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := os.ReadFile(filepath.Join(root, ".assistant", "rules", "tdd.md"))
	if string(got) != "my local rule\n" {
		t.Errorf("customized file overwritten: %q", got)
	}

	// The moved upstream is reported as drift, never merged.
	if len(result.Drifted) != 1 || result.Drifted[0].Path != "rules/tdd.md" {
		t.Errorf("drift = %v", result.Drifted)
	}
}

func TestRunRejectsDirtyTree(t *testing.T) {
	s, root := seed(t)
	f := upstreamV2(root)
	f.dirty = true

	o := &Orchestrator{Store: s, Fetcher: f}
	_, err := o.Run(Options{Ref: "latest"})
	if !errors.Is(err, ErrDirtyTree) {
		t.Fatalf("expected ErrDirtyTree, got %v", err)
	}
	if f.fetched {
		t.Error("precondition failure must happen before any fetch")
	}

	// Force overrides the precondition.
	if _, err := o.Run(Options{Ref: "latest", Force: true}); err != nil {
		t.Fatalf("forced run: %v", err)
	}
}

func TestRunAbortsOnFetchFailure(t *testing.T) {
	s, root := seed(t)
	f := upstreamV2(root)
	f.fetchErr = errors.New("network unreachable")

	before, err := os.ReadFile(s.Layout.ManifestPath())
	if err != nil {
		t.Fatal(err)
	}

	o := &Orchestrator{Store: s, Fetcher: f}
	if _, err := o.Run(Options{Ref: "latest"}); err == nil {
		t.Fatal("fetch failure should abort the run")
	}

	after, err := os.ReadFile(s.Layout.ManifestPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("manifest modified despite aborted fetch")
	}
}

func TestRunCustomizedSkillSkippedWithWarning(t *testing.T) {
	s, root := seed(t)
	if _, err := s.Customize("skills/changelog"); err != nil {
		t.Fatal(err)
	}
	write(t, root, ".assistant/skills/changelog/SKILL.md", "my skill\n")

	o := &Orchestrator{Store: s, Fetcher: upstreamV2(root)}
	result, err := o.Run(Options{Ref: "latest"})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := os.ReadFile(filepath.Join(root, ".assistant", "skills", "changelog", "SKILL.md"))
	if string(got) != "my skill\n" {
		t.Error("customized skill content overwritten")
	}
	if len(result.Warnings) == 0 {
		t.Error("skipped customized skill should produce a warning")
	}
}

// End-to-end scenario from init through drift to a protected update.
func TestLifecycle(t *testing.T) {
	root := t.TempDir()
	write(t, root, ".assistant/toolkit/VERSION", "1.0.0\n")
	write(t, root, ".assistant/toolkit/rules/foo.md", "h0 content\n")

	s := manifest.NewStore(root)
	m, err := s.Init()
	if err != nil {
		t.Fatal(err)
	}
	h0 := m.Rules["foo.md"].ToolkitHash
	if m.Rules["foo.md"].Status != manifest.StatusManaged {
		t.Fatal("init should record managed status")
	}
	write(t, root, ".assistant/rules/foo.md", "h0 content\n")

	if _, err := s.Customize("rules/foo.md"); err != nil {
		t.Fatal(err)
	}
	write(t, root, ".assistant/rules/foo.md", "customized content\n")

	f := &fakeFetcher{
		root:     root,
		revision: "rev-new",
		content: map[string]string{
			"VERSION":      "1.1.0\n",
			"rules/foo.md": "h1 content\n",
		},
	}
	o := &Orchestrator{Store: s, Fetcher: f}
	result, err := o.Run(Options{Ref: "v1.1.0"})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Drifted) != 1 || result.Drifted[0].Path != "rules/foo.md" {
		t.Fatalf("expected rules/foo.md drift, got %v", result.Drifted)
	}
	if result.Drifted[0].StoredHash != h0 {
		t.Error("drift should compare against the stored hash")
	}

	got, _ := os.ReadFile(filepath.Join(root, ".assistant", "rules", "foo.md"))
	if string(got) != "customized content\n" {
		t.Error("customization protection violated by update")
	}

	m, err = s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if m.LastSubtreeMerge != "rev-new" {
		t.Errorf("last_subtree_merge = %s, want rev-new", m.LastSubtreeMerge)
	}
}
