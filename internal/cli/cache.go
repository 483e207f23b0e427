package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toolkit-labs/toolkit/internal/configcache"
	"github.com/toolkit-labs/toolkit/internal/layout"
)

var cacheValidateOnly bool

func init() {
	cacheGenerateCmd.Flags().BoolVar(&cacheValidateOnly, "validate-only", false, "Validate toolkit.toml without writing the cache")
	cacheCmd.AddCommand(cacheGenerateCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the generated config cache",
}

var cacheGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate toolkit-cache.env from toolkit.toml",
	Long: `Validates .assistant/toolkit.toml against the config schema and
flattens it into TOOLKIT_* shell variables in .assistant/toolkit-cache.env.
The cache is written atomically with mode 0600.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		l := layout.New(root)

		if cacheValidateOnly {
			if err := configcache.Validate(l.TomlPath()); err != nil {
				return err
			}
			fmt.Printf("%s is valid\n", l.TomlPath())
			return nil
		}

		if err := configcache.Write(l.TomlPath(), l.CachePath()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", l.CachePath())
		return nil
	},
}
