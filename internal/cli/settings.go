package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/toolkit-labs/toolkit/internal/layout"
	"github.com/toolkit-labs/toolkit/internal/settings"
)

var (
	settingsBase      string
	settingsStacks    []string
	settingsProject   string
	settingsOutput    string
	settingsMCPBase   string
	settingsMCPOutput string
	settingsValidate  bool
)

func init() {
	settingsGenerateCmd.Flags().StringVar(&settingsBase, "base", "", "Path to the base settings layer (required)")
	settingsGenerateCmd.Flags().StringSliceVar(&settingsStacks, "stacks", nil, "Stack overlay files, applied in order")
	settingsGenerateCmd.Flags().StringVar(&settingsProject, "project", "", "Project-level overlay file")
	settingsGenerateCmd.Flags().StringVar(&settingsOutput, "output", "", "Output path (default .assistant/settings.json)")
	settingsGenerateCmd.Flags().StringVar(&settingsMCPBase, "mcp-base", "", "Base MCP server configuration file")
	settingsGenerateCmd.Flags().StringVar(&settingsMCPOutput, "mcp-output", "", "MCP output path")
	settingsGenerateCmd.Flags().BoolVar(&settingsValidate, "validate", false, "Validate the merge without writing output")
	_ = settingsGenerateCmd.MarkFlagRequired("base")

	settingsRootCmd.AddCommand(settingsGenerateCmd)
	rootCmd.AddCommand(settingsRootCmd)
}

var settingsRootCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage the generated settings document",
}

var settingsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Merge settings layers into the project settings document",
	Long: `Merges the base layer, stack overlays, and the project overlay into a
single deterministic settings document. Schema and structure problems
are reported as warnings; dangerous auto-approve rules and
allow/deny conflicts abort the merge with no output written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}

		output := settingsOutput
		if output == "" {
			output = layout.New(root).SettingsPath()
		}

		res, err := settings.Generate(settings.GenerateOptions{
			BasePath:      settingsBase,
			StackPaths:    settingsStacks,
			ProjectPath:   settingsProject,
			OutputPath:    output,
			MCPBasePath:   settingsMCPBase,
			MCPOutputPath: settingsMCPOutput,
			ValidateOnly:  settingsValidate,
		})
		if err != nil {
			return err
		}

		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
		}
		if settingsValidate {
			fmt.Println("Settings layers merge and validate cleanly.")
			return nil
		}
		fmt.Printf("Wrote %s\n", output)
		if settingsMCPOutput != "" {
			fmt.Printf("Wrote %s\n", settingsMCPOutput)
		}
		return nil
	},
}
