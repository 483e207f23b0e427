package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/toolkit-labs/toolkit/internal/layout"
	"github.com/toolkit-labs/toolkit/internal/manifest"
)

var skillUpdateAll bool

func init() {
	skillUpdateCmd.Flags().BoolVar(&skillUpdateAll, "all", false, "Update every non-customized skill")
	skillCmd.AddCommand(skillUpdateCmd)
	rootCmd.AddCommand(skillCmd)
}

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Manage vendored skills",
}

var skillUpdateCmd = &cobra.Command{
	Use:   "update [NAME]",
	Short: "Refresh a skill from the vendored toolkit",
	Long: `Copies changed files for the named skill from .assistant/toolkit/skills/
into the project's skills directory. Customized skills are skipped with a
warning. With --all, every skill in the manifest is refreshed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if skillUpdateAll == (len(args) == 1) {
			return fmt.Errorf("provide either a skill name or --all")
		}

		root, err := projectRoot()
		if err != nil {
			return err
		}
		store := manifest.NewStore(root)

		names := args
		if skillUpdateAll {
			skills, err := layout.New(root).ListSkills()
			if err != nil {
				return err
			}
			names = names[:0]
			for _, s := range skills {
				names = append(names, s.Name)
			}
		}

		for _, name := range names {
			res, err := store.UpdateSkill(name)
			if err != nil {
				return err
			}
			switch {
			case res.Skipped:
				fmt.Fprintf(os.Stderr, "Skipped %s: %s\n", res.Skill, res.Reason)
			case len(res.Copied) == 0:
				fmt.Printf("Skill %s is already up to date\n", res.Skill)
			default:
				fmt.Printf("Updated %s: %d file(s) copied\n", res.Skill, len(res.Copied))
				for _, f := range res.Copied {
					fmt.Printf("  %s\n", f)
				}
			}
		}
		return nil
	},
}
