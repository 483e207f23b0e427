package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/toolkit-labs/toolkit/internal/branding"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string

	projectDir string
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` vendors shared AI-assistant assets (agents, rules, skills,
settings layers) into a project and tracks their provenance, so upstream
updates apply cleanly without clobbering local customizations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "project-dir", ".", "Project directory to operate on")
}

// projectRoot resolves the --project-dir flag to an absolute path.
func projectRoot() (string, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return "", fmt.Errorf("resolving project directory %s: %w", projectDir, err)
	}
	return abs, nil
}

// Execute runs the root command with build info injected via ldflags.
// Errors are printed here verbatim; cobra's own reporting is silenced.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}
