// Package update sequences a full upstream sync: precondition check,
// fetch, manifest bookkeeping, re-materialization of managed entries,
// skill refresh, and settings regeneration. A failing step aborts the
// remainder; completed steps are not rolled back, so an interrupted run
// leaves each file internally consistent but the sequence only partially
// applied.
package update

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/toolkit-labs/toolkit/internal/drift"
	"github.com/toolkit-labs/toolkit/internal/manifest"
	"github.com/toolkit-labs/toolkit/internal/settings"
	"github.com/toolkit-labs/toolkit/internal/upstream"
)

// ErrDirtyTree rejects an update while the vendored toolkit has
// uncommitted local modifications.
var ErrDirtyTree = errors.New("vendored toolkit has uncommitted changes: commit or stash them, or rerun with --force")

// Options configures one orchestration run.
type Options struct {
	// Ref is the caller-chosen upstream reference: an exact version,
	// "latest" for the highest tagged release, or a branch name.
	Ref string

	// Force skips the dirty-tree precondition.
	Force bool

	// Settings, when set, names the layers for regenerating the derived
	// settings document after the sync.
	Settings *settings.GenerateOptions
}

// Result summarizes what the orchestrator did.
type Result struct {
	Revision       string
	ToolkitVersion string
	Rematerialized []string
	SkillResults   []*manifest.SkillUpdateResult
	Drifted        []drift.Entry
	Warnings       []string
}

// Orchestrator wires the store, the fetch capability, and the settings
// engine into the update sequence.
type Orchestrator struct {
	Store   *manifest.Store
	Fetcher upstream.Fetcher

	// Progress receives step-by-step status lines; defaults to discard.
	Progress io.Writer
}

// Run executes the update sequence. Any step's failure stops the
// remaining steps with the completed steps' effects left in place.
func (o *Orchestrator) Run(opts Options) (*Result, error) {
	progress := o.Progress
	if progress == nil {
		progress = io.Discard
	}

	// Step 1: precondition.
	if !opts.Force {
		dirty, err := o.Fetcher.Dirty()
		if err != nil {
			return nil, fmt.Errorf("checking working tree: %w", err)
		}
		if dirty {
			return nil, ErrDirtyTree
		}
	}

	m, err := o.Store.Load()
	if err != nil {
		return nil, err
	}

	// Steps 2–3: fetch and apply the upstream change-set.
	fmt.Fprintf(progress, "Fetching upstream at %q...\n", opts.Ref)
	revision, err := o.Fetcher.Fetch(opts.Ref)
	if err != nil {
		return nil, fmt.Errorf("upstream fetch failed: %w", err)
	}
	result := &Result{Revision: revision}

	// Step 4: record the revision id.
	if err := o.Store.SetSubtreeMerge(m, revision); err != nil {
		return nil, err
	}

	// Step 5: re-materialize managed agents and rules; customized
	// entries are skipped by the store.
	for _, entry := range sortedEntries(m.Agents, m.Rules) {
		copied, err := o.Store.Rematerialize(entry)
		if err != nil {
			return nil, err
		}
		if copied {
			o.Store.RefreshHash(m, entry)
			result.Rematerialized = append(result.Rematerialized, entry.Path)
			fmt.Fprintf(progress, "Refreshed %s\n", entry.Path)
		}
	}
	if len(result.Rematerialized) > 0 {
		if err := o.Store.Save(m); err != nil {
			return nil, err
		}
	}

	// Step 6: refresh every skill; UpdateSkill respects customization.
	for _, name := range sortedKeys(m.Skills) {
		skillResult, err := o.Store.UpdateSkill(name)
		if err != nil {
			return nil, err
		}
		result.SkillResults = append(result.SkillResults, skillResult)
		if skillResult.Skipped {
			result.Warnings = append(result.Warnings, skillResult.Reason)
		}
	}

	// The store rewrote the manifest during skill updates; reload before
	// the final version bump so nothing is clobbered.
	m, err = o.Store.Load()
	if err != nil {
		return nil, err
	}

	// Step 7: regenerate the derived settings document.
	if opts.Settings != nil {
		genResult, err := settings.Generate(*opts.Settings)
		if err != nil {
			return nil, fmt.Errorf("regenerating settings: %w", err)
		}
		result.Warnings = append(result.Warnings, genResult.Warnings...)
	}

	// Step 8: record the new toolkit version.
	version := o.Store.ToolkitVersion()
	if err := o.Store.SetToolkitVersion(m, version); err != nil {
		return nil, err
	}
	result.ToolkitVersion = version

	// Report (never resolve) customizations upstream has moved under.
	drifted, err := drift.Check(m, o.Store.Layout)
	if err != nil {
		return nil, err
	}
	result.Drifted = drifted

	return result, nil
}

func sortedEntries(maps ...map[string]manifest.Entry) []manifest.Entry {
	var entries []manifest.Entry
	for _, mp := range maps {
		for _, name := range sortedKeys(mp) {
			entries = append(entries, mp[name])
		}
	}
	return entries
}

func sortedKeys(mp map[string]manifest.Entry) []string {
	keys := make([]string, 0, len(mp))
	for k := range mp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
