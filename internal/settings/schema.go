package settings

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/settings.schema.json
var schemaBytes []byte

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
	printer        = message.NewPrinter(language.English)
)

// getSchema compiles the embedded host settings schema once.
func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("settings.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("settings.schema.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compiling schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// schemaIssueWarnings validates the merged document against the embedded
// host schema and renders each violation as a warning string. Schema
// problems never block generation; a schema that fails to compile is a
// build defect surfaced as a single warning.
func schemaIssueWarnings(merged Document) []string {
	schema, err := getSchema()
	if err != nil {
		return []string{fmt.Sprintf("settings schema unavailable: %v", err)}
	}

	// Round-trip through JSON so the validator sees json.Number values.
	data, err := json.Marshal(merged)
	if err != nil {
		return []string{fmt.Sprintf("preparing document for validation: %v", err)}
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []string{fmt.Sprintf("preparing document for validation: %v", err)}
	}

	err = schema.Validate(inst)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}

	var warnings []string
	collectSchemaIssues(ve, &warnings)
	if len(warnings) == 0 {
		warnings = append(warnings, ve.Error())
	}
	return dedupeStrings(warnings)
}

// collectSchemaIssues walks the error tree and keeps leaf errors with
// specific keyword information, skipping uninformative container nodes.
func collectSchemaIssues(ve *jsonschema.ValidationError, warnings *[]string) {
	if len(ve.Causes) == 0 {
		keyword := ""
		if ve.ErrorKind != nil {
			kwPath := ve.ErrorKind.KeywordPath()
			if len(kwPath) > 0 {
				keyword = kwPath[len(kwPath)-1]
			}
		}
		if keyword == "oneOf" || keyword == "allOf" || keyword == "$ref" || keyword == "" {
			return
		}

		path := "/" + strings.Join(ve.InstanceLocation, "/")
		if len(ve.InstanceLocation) == 0 {
			path = "(document)"
		}
		msg := ve.ErrorKind.LocalizedString(printer)
		*warnings = append(*warnings, fmt.Sprintf("%s: %s", path, msg))
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaIssues(cause, warnings)
	}
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
