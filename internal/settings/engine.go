package settings

import (
	"fmt"
	"strings"

	"github.com/toolkit-labs/toolkit/internal/atomicfile"
)

// GenerateOptions names the input layers and output targets for one
// generation run. BasePath is required; everything else is optional.
type GenerateOptions struct {
	BasePath    string
	StackPaths  []string
	ProjectPath string
	OutputPath  string

	MCPBasePath   string
	MCPOutputPath string

	// ValidateOnly checks that the layers merge and validate cleanly
	// without writing any output.
	ValidateOnly bool
}

// GenerateResult carries the serialized outputs and any non-fatal
// warnings collected along the way.
type GenerateResult struct {
	Settings []byte
	MCP      []byte
	Warnings []string
}

// Generate loads the configured layers, merges them, validates the
// result, and (unless ValidateOnly is set) writes the outputs atomically.
// Malformed input at any layer fails the whole run with no partial
// output; blocking validation errors do the same.
func Generate(opts GenerateOptions) (*GenerateResult, error) {
	base, err := ReadDocument(opts.BasePath)
	if err != nil {
		return nil, err
	}

	var overlays []Document
	for _, path := range opts.StackPaths {
		overlay, err := ReadDocument(path)
		if err != nil {
			return nil, err
		}
		overlays = append(overlays, overlay)
	}

	var project Document
	if opts.ProjectPath != "" {
		project, err = ReadDocument(opts.ProjectPath)
		if err != nil {
			return nil, err
		}
	}

	merged := MergeLayers(base, overlays, project)

	result := &GenerateResult{
		Warnings: StructureWarnings(merged),
	}

	if errs := Validate(merged); len(errs) > 0 {
		return nil, fmt.Errorf("settings validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	result.Settings, err = Encode(merged)
	if err != nil {
		return nil, err
	}

	if opts.MCPBasePath != "" {
		mcpBase, err := ReadDocument(opts.MCPBasePath)
		if err != nil {
			return nil, err
		}
		mcpMerged := MergeMCPServers(mcpBase, MCPOverride(project))
		result.MCP, err = Encode(mcpMerged)
		if err != nil {
			return nil, err
		}
	}

	if opts.ValidateOnly {
		return result, nil
	}

	if opts.OutputPath != "" {
		if err := atomicfile.WriteFile(opts.OutputPath, result.Settings, 0644); err != nil {
			return nil, fmt.Errorf("writing settings output: %w", err)
		}
	}
	if opts.MCPOutputPath != "" && result.MCP != nil {
		if err := atomicfile.WriteFile(opts.MCPOutputPath, result.MCP, 0644); err != nil {
			return nil, fmt.Errorf("writing MCP output: %w", err)
		}
	}
	return result, nil
}
