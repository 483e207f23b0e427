package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/toolkit-labs/toolkit/internal/atomicfile"
	"github.com/toolkit-labs/toolkit/internal/layout"
	"github.com/toolkit-labs/toolkit/internal/manifest"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the toolkit manifest from the vendored subtree",
	Long: `Enumerates the agents, rules, and skills under .assistant/toolkit/ and
writes a fresh toolkit-manifest.json recording each entry as managed,
with content hashes for agents and rules and file inventories for skills.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		store := manifest.NewStore(root)

		m, err := store.Init()
		if err != nil {
			return err
		}

		fmt.Printf("Initialized manifest: %d agents, %d rules, %d skills (toolkit %s)\n",
			len(m.Agents), len(m.Rules), len(m.Skills), m.ToolkitVersion)

		if seeded, err := seedToml(layout.New(root)); err != nil {
			return err
		} else if seeded {
			fmt.Println("Seeded toolkit.toml from the vendored example; edit it for this project.")
		}
		return nil
	},
}

// seedToml copies the vendored example config into place when the
// project has no toolkit.toml yet.
func seedToml(l layout.Layout) (bool, error) {
	if _, err := os.Stat(l.TomlPath()); err == nil {
		return false, nil
	}
	example := filepath.Join(l.ToolkitDir(), "templates", layout.TomlFileName+".example")
	content, err := os.ReadFile(example)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", example, err)
	}
	if err := atomicfile.WriteFile(l.TomlPath(), content, 0644); err != nil {
		return false, fmt.Errorf("seeding %s: %w", l.TomlPath(), err)
	}
	return true, nil
}
