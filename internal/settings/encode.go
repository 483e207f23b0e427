package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Encode serializes a document deterministically: lexicographically sorted
// keys, two-space indent, no HTML escaping, trailing newline. Identical
// inputs always produce byte-identical output.
func Encode(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding settings document: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadDocument loads a settings layer from disk. Inputs may carry //
// comments and trailing commas (hand-edited overlays often do); they are
// normalized to strict JSON before decoding. The top level must be an
// object.
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings layer %s: %w", path, err)
	}

	var raw any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("parsing settings layer %s: %w", path, err)
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("settings layer %s: top level must be a JSON object", path)
	}
	return doc, nil
}
