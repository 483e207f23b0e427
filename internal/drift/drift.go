// Package drift compares stored provenance against the current vendored
// toolkit to find customized entries whose upstream counterpart has moved.
// Detection is read-only: it never mutates the manifest and never
// attempts to resolve what it finds.
package drift

import (
	"sort"

	"github.com/toolkit-labs/toolkit/internal/hashutil"
	"github.com/toolkit-labs/toolkit/internal/layout"
	"github.com/toolkit-labs/toolkit/internal/manifest"
)

// Entry is one customized manifest entry invalidated by upstream change.
type Entry struct {
	Path         string
	Category     manifest.Category
	StoredHash   string // agents/rules only
	UpstreamHash string // agents/rules only
	ChangedFiles []string // skills only
}

// Check returns the customized entries that have drifted, sorted by path.
//
// Agents and rules compare the stored toolkit_hash against the live
// upstream digest. Skills have no stored hash and are compared by live
// textual diff against upstream instead; whether that asymmetry is
// deliberate is an open question upstream, so it is reproduced here
// rather than papered over.
func Check(m *manifest.Manifest, l layout.Layout) ([]Entry, error) {
	var drifted []Entry

	for _, entry := range m.Agents {
		if d, ok := checkHashed(entry, l); ok {
			drifted = append(drifted, d)
		}
	}
	for _, entry := range m.Rules {
		if d, ok := checkHashed(entry, l); ok {
			drifted = append(drifted, d)
		}
	}
	for _, entry := range m.Skills {
		d, ok, err := checkSkill(entry, l)
		if err != nil {
			return nil, err
		}
		if ok {
			drifted = append(drifted, d)
		}
	}

	sort.Slice(drifted, func(i, j int) bool { return drifted[i].Path < drifted[j].Path })
	return drifted, nil
}

func checkHashed(entry manifest.Entry, l layout.Layout) (Entry, bool) {
	if entry.Status != manifest.StatusCustomized {
		return Entry{}, false
	}
	upstream := hashutil.FileDigest(l.ToolkitFile(entry.Path))
	if upstream == entry.ToolkitHash {
		return Entry{}, false
	}
	return Entry{
		Path:         entry.Path,
		Category:     entry.Category,
		StoredHash:   entry.ToolkitHash,
		UpstreamHash: upstream,
	}, true
}

func checkSkill(entry manifest.Entry, l layout.Layout) (Entry, bool, error) {
	if entry.Status != manifest.StatusCustomized {
		return Entry{}, false, nil
	}

	var changed []string
	for _, rel := range entry.Files {
		sub := entry.Path + "/" + rel
		equal, err := hashutil.FilesEqual(l.ToolkitFile(sub), l.ProjectFile(sub))
		if err != nil {
			return Entry{}, false, err
		}
		if !equal {
			changed = append(changed, rel)
		}
	}
	if len(changed) == 0 {
		return Entry{}, false, nil
	}
	return Entry{
		Path:         entry.Path,
		Category:     entry.Category,
		ChangedFiles: changed,
	}, true, nil
}
