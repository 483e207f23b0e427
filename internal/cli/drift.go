package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toolkit-labs/toolkit/internal/drift"
	"github.com/toolkit-labs/toolkit/internal/hashutil"
	"github.com/toolkit-labs/toolkit/internal/layout"
	"github.com/toolkit-labs/toolkit/internal/manifest"
)

var driftQuiet bool

func init() {
	driftCmd.Flags().BoolVarP(&driftQuiet, "quiet", "q", false, "Print drifted entry paths only")
	rootCmd.AddCommand(driftCmd)
}

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Report customized entries that differ from the vendored toolkit",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		store := manifest.NewStore(root)

		m, err := store.Load()
		if err != nil {
			return err
		}
		entries, err := drift.Check(m, layout.New(root))
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			if !driftQuiet {
				fmt.Println("No drift detected.")
			}
			return nil
		}

		for _, e := range entries {
			if driftQuiet {
				fmt.Println(e.Path)
				continue
			}
			fmt.Println(driftLine(e))
			for _, f := range e.ChangedFiles {
				fmt.Printf("  %s\n", f)
			}
		}
		return nil
	},
}

// driftLine renders one drifted entry, distinguishing an upstream file
// that changed from one that no longer exists.
func driftLine(e drift.Entry) string {
	if len(e.ChangedFiles) > 0 {
		return fmt.Sprintf("%s: %d file(s) differ from the vendored copy", e.Path, len(e.ChangedFiles))
	}
	if hashutil.IsSentinel(e.UpstreamHash) {
		return fmt.Sprintf("%s: removed from the vendored toolkit", e.Path)
	}
	return fmt.Sprintf("%s: content differs from the vendored copy", e.Path)
}
