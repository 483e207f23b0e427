package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toolkit-labs/toolkit/internal/manifest"
)

func init() {
	manifestCmd.AddCommand(manifestValidateCmd)
	rootCmd.AddCommand(manifestCmd)
}

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect the toolkit manifest",
}

var manifestValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the manifest parses and is well formed",
	Long: `Parses toolkit-manifest.json and reports success or failure. An
unparsable manifest is backed up next to the original before the error
is reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		store := manifest.NewStore(root)

		if err := store.Validate(); err != nil {
			return err
		}
		m, err := store.Load()
		if err != nil {
			return err
		}
		fmt.Printf("Manifest is valid: %d agents, %d rules, %d skills (toolkit %s)\n",
			len(m.Agents), len(m.Rules), len(m.Skills), m.ToolkitVersion)
		return nil
	},
}
