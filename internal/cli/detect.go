package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toolkit-labs/toolkit/internal/detect"
)

var detectValidate bool

func init() {
	detectCmd.Flags().BoolVar(&detectValidate, "validate", false, "Run detected commands and record pass/fail")
	rootCmd.AddCommand(detectCmd)
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect project stacks, tooling, and toolkit installation state",
	Long: `Scans the project directory for technology stacks, lint/format/test
commands, and the toolkit installation state, printing a JSON report.
With --validate, each detected command is actually run and its result
recorded in the report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}

		report, err := detect.Run(cmd.Context(), root, detect.Options{Validate: detectValidate})
		if err != nil {
			return err
		}
		out, err := report.JSON()
		if err != nil {
			return fmt.Errorf("marshaling detection report: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}
