package upstream

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/toolkit-labs/toolkit/internal/layout"
)

// RefLatest selects the highest tagged release.
const RefLatest = "latest"

// RefMainline selects the tip of the default branch.
const RefMainline = "main"

// Fetcher is the pull-based sync primitive the update orchestrator
// depends on. Fetch applies the content at ref to the vendored copy and
// returns the upstream revision id it landed on.
type Fetcher interface {
	Fetch(ref string) (revision string, err error)
	Dirty() (bool, error)
}

// tmpSuffix is appended to the toolkit dir during the atomic swap.
const tmpSuffix = ".tmp"

// GitFetcher syncs the vendored toolkit from a git repository. The fetch
// is atomic: content lands in a temporary sibling directory and is
// renamed over the vendored copy only on success.
type GitFetcher struct {
	Layout  layout.Layout
	RepoURL string
}

// Fetch clones the upstream at ref, strips VCS metadata, and swaps the
// result over the vendored toolkit directory. There is no internally
// imposed timeout; cancellation is external.
func (g *GitFetcher) Fetch(ref string) (string, error) {
	if err := ensureGit(); err != nil {
		return "", err
	}

	targetDir := g.Layout.ToolkitDir()
	tmpDir := targetDir + tmpSuffix

	// Clean up any leftover tmp dir from a previous failed attempt.
	_ = os.RemoveAll(tmpDir)

	if err := os.MkdirAll(filepath.Dir(tmpDir), 0755); err != nil {
		return "", fmt.Errorf("creating parent directory: %w", err)
	}

	if err := cloneAtRef(g.RepoURL, ref, tmpDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("fetching toolkit at %q: %w", ref, err)
	}

	revision, err := gitOutput(tmpDir, "rev-parse", "HEAD")
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("reading fetched revision: %w", err)
	}

	if err := os.RemoveAll(filepath.Join(tmpDir, ".git")); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("stripping VCS metadata: %w", err)
	}

	if err := os.RemoveAll(targetDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("removing existing toolkit copy: %w", err)
	}
	if err := os.Rename(tmpDir, targetDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("finalizing toolkit fetch: %w", err)
	}
	return revision, nil
}

// Dirty reports whether the vendored toolkit has uncommitted local
// modifications in the enclosing project repository. A project that is
// not under version control cannot be dirty.
func (g *GitFetcher) Dirty() (bool, error) {
	if err := ensureGit(); err != nil {
		return false, err
	}
	if _, err := gitOutput(g.Layout.Root, "rev-parse", "--git-dir"); err != nil {
		return false, nil
	}
	out, err := gitOutput(g.Layout.Root, "status", "--porcelain", "--", g.Layout.ToolkitDir())
	if err != nil {
		return false, fmt.Errorf("checking toolkit working tree: %w", err)
	}
	return out != "", nil
}

// Resolve maps a caller-chosen reference to a concrete git ref:
// "latest" becomes the highest semver tag on the remote, "main" and
// other branch names pass through, and exact versions are normalized to
// their "vX.Y.Z" tag.
func (g *GitFetcher) Resolve(ref string) (string, error) {
	switch ref {
	case RefLatest:
		return g.latestTag()
	case RefMainline, "":
		return RefMainline, nil
	}
	if v, err := semver.NewVersion(strings.TrimPrefix(ref, "v")); err == nil {
		return "v" + v.String(), nil
	}
	// Branch or other symbolic ref.
	return ref, nil
}

func (g *GitFetcher) latestTag() (string, error) {
	if err := ensureGit(); err != nil {
		return "", err
	}
	out, err := gitOutput("", "ls-remote", "--tags", "--refs", g.RepoURL)
	if err != nil {
		return "", fmt.Errorf("listing upstream tags: %w", err)
	}

	var newest *semver.Version
	var newestTag string
	for _, line := range strings.Split(out, "\n") {
		_, ref, ok := strings.Cut(line, "\trefs/tags/")
		if !ok {
			continue
		}
		v, err := semver.NewVersion(strings.TrimPrefix(ref, "v"))
		if err != nil {
			continue
		}
		if newest == nil || v.GreaterThan(newest) {
			newest = v
			newestTag = ref
		}
	}
	if newestTag == "" {
		return "", fmt.Errorf("no release tags found on %s", g.RepoURL)
	}
	return newestTag, nil
}

func cloneAtRef(repoURL, ref, dir string) error {
	// Shallow clone works for tags and branches; fall back to a full
	// clone and checkout for raw revision ids.
	if err := runGit("", "clone", "--quiet", "--depth", "1", "--branch", ref, repoURL, dir); err == nil {
		return nil
	}
	_ = os.RemoveAll(dir)
	if err := runGit("", "clone", "--quiet", repoURL, dir); err != nil {
		return err
	}
	return runGit(dir, "checkout", "--quiet", ref)
}

func ensureGit() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git is required to sync the toolkit: %w", err)
	}
	return nil
}

func runGit(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return nil
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}
