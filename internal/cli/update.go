package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/toolkit-labs/toolkit/internal/config"
	"github.com/toolkit-labs/toolkit/internal/layout"
	"github.com/toolkit-labs/toolkit/internal/manifest"
	"github.com/toolkit-labs/toolkit/internal/settings"
	"github.com/toolkit-labs/toolkit/internal/update"
	"github.com/toolkit-labs/toolkit/internal/upstream"
)

var (
	updateRef        string
	updateForce      bool
	updateNoSettings bool
)

func init() {
	updateCmd.Flags().StringVar(&updateRef, "ref", upstream.RefLatest, "Upstream reference: a version, a branch name, or \"latest\"")
	updateCmd.Flags().BoolVar(&updateForce, "force", false, "Update even if the vendored toolkit has uncommitted changes")
	updateCmd.Flags().BoolVar(&updateNoSettings, "no-settings", false, "Skip settings regeneration after the sync")
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Sync the vendored toolkit from upstream",
	Long: `Fetches the requested upstream reference, replaces the vendored
subtree, re-materializes managed agents and rules, refreshes skills,
regenerates settings, and reports any drift in customized entries.

  toolkit update                  # sync to the latest tagged release
  toolkit update --ref main       # track the mainline branch
  toolkit update --ref 1.4.0      # pin an exact version`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		l := layout.New(root)

		config.Load()
		fetcher := &upstream.GitFetcher{Layout: l, RepoURL: config.UpstreamRepoURL()}

		ref, err := fetcher.Resolve(updateRef)
		if err != nil {
			return err
		}

		orch := &update.Orchestrator{
			Store:    manifest.NewStore(root),
			Fetcher:  fetcher,
			Progress: os.Stderr,
		}

		opts := update.Options{Ref: ref, Force: updateForce}
		if !updateNoSettings {
			opts.Settings = settingsOptions(l)
		}

		res, err := orch.Run(opts)
		if err != nil {
			return err
		}

		fmt.Printf("Synced to %s (toolkit %s)\n", res.Revision, res.ToolkitVersion)
		fmt.Printf("Re-materialized %d entries\n", len(res.Rematerialized))
		for _, sr := range res.SkillResults {
			if len(sr.Copied) > 0 {
				fmt.Printf("Skill %s: %d file(s) updated\n", sr.Skill, len(sr.Copied))
			}
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
		}
		if len(res.Drifted) > 0 {
			fmt.Printf("\n%d customized entr%s drifted from upstream:\n", len(res.Drifted), plural(len(res.Drifted), "y", "ies"))
			for _, d := range res.Drifted {
				fmt.Printf("  %s\n", d.Path)
			}
			fmt.Printf("Run '%s drift' for details.\n", rootCmd.Use)
		}
		return nil
	},
}

// settingsOptions builds the regeneration layer list from the vendored
// subtree's conventional locations. Returns nil when no base layer is
// vendored, which skips the settings step.
func settingsOptions(l layout.Layout) *settings.GenerateOptions {
	settingsDir := filepath.Join(l.ToolkitDir(), "settings")
	base := filepath.Join(settingsDir, "base.json")
	if _, err := os.Stat(base); err != nil {
		return nil
	}

	opts := &settings.GenerateOptions{
		BasePath:   base,
		OutputPath: l.SettingsPath(),
	}

	stackDir := filepath.Join(settingsDir, "stacks")
	if overlays, err := filepath.Glob(filepath.Join(stackDir, "*.json")); err == nil {
		opts.StackPaths = overlays
	}
	if project := filepath.Join(l.AssistantDir(), "settings.project.json"); fileExists(project) {
		opts.ProjectPath = project
	}
	if mcpBase := filepath.Join(settingsDir, "mcp.json"); fileExists(mcpBase) {
		opts.MCPBasePath = mcpBase
		opts.MCPOutputPath = filepath.Join(l.AssistantDir(), "mcp.json")
	}
	return opts
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
