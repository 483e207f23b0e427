package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/toolkit-labs/toolkit/internal/manifest"
)

func init() {
	rootCmd.AddCommand(customizeCmd)
}

var customizeCmd = &cobra.Command{
	Use:   "customize ENTRY",
	Short: "Mark a managed entry as locally customized",
	Long: `Marks an entry (e.g. agents/reviewer.md or skills/implement) as
customized so that updates stop overwriting it and drift detection
starts tracking it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		store := manifest.NewStore(root)

		res, err := store.Customize(args[0])
		if err != nil {
			return err
		}
		if res.Regenerated {
			fmt.Fprintln(os.Stderr, "WARNING: the manifest was unreadable and has been regenerated from the vendored toolkit.")
			fmt.Fprintln(os.Stderr, "WARNING: previous customized markers were lost; re-run customize for any other local edits.")
		}
		fmt.Printf("Marked %s as customized at %s\n", res.Entry.Path, res.Entry.CustomizedAt.Format("2006-01-02 15:04:05 MST"))
		return nil
	},
}
