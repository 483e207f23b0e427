package configcache

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/toolkit-labs/toolkit/internal/atomicfile"
	"github.com/toolkit-labs/toolkit/internal/branding"
)

// Generated env var names must be safe for bash assignment.
var envKeyPattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// Control characters other than \n and \t are rejected. CR is included
// because it enables log and line injection once the value is sourced.
var controlCharPattern = regexp.MustCompile("[\x00-\x08\x0b-\x1f\x7f]")

// Validate parses tomlPath and checks it against the config schema
// without generating anything.
func Validate(tomlPath string) error {
	data, err := loadTOML(tomlPath)
	if err != nil {
		return err
	}
	if errs := validateSchema(data); len(errs) > 0 {
		return fmt.Errorf("schema validation failed for %s:\n  - %s", tomlPath, strings.Join(errs, "\n  - "))
	}
	return nil
}

// Generate reads tomlPath and returns the cache file content.
func Generate(tomlPath string) (string, error) {
	data, err := loadTOML(tomlPath)
	if err != nil {
		return "", err
	}
	if errs := validateSchema(data); len(errs) > 0 {
		return "", fmt.Errorf("schema validation failed for %s:\n  - %s", tomlPath, strings.Join(errs, "\n  - "))
	}

	entries, err := flatten(data, branding.EnvPrefix())
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("# Auto-generated from " + tomlPath + " -- DO NOT EDIT\n\n")
	for _, e := range entries {
		b.WriteString(e.key)
		b.WriteString("=")
		b.WriteString(e.value)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Write generates the cache and writes it atomically with 0600
// permissions; the cache can carry tool tokens via env sections, so it
// is never world-readable, even transiently.
func Write(tomlPath, outPath string) error {
	content, err := Generate(tomlPath)
	if err != nil {
		return err
	}
	if err := atomicfile.WriteFile(outPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config cache: %w", err)
	}
	return nil
}

type entry struct {
	key   string
	value string // already quoted and escaped
}

// flatten converts the nested config into KEY='value' pairs. Nested
// table keys join with underscores; hyphens normalize to underscores;
// arrays serialize as compact JSON.
func flatten(data map[string]any, prefix string) ([]entry, error) {
	var entries []entry
	for _, key := range sortedKeys(data) {
		value := data[key]
		normKey := strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		fullKey := prefix + "_" + normKey

		if !envKeyPattern.MatchString(fullKey) {
			return nil, fmt.Errorf("unsafe variable name %q generated from key %q", fullKey, key)
		}

		switch v := value.(type) {
		case map[string]any:
			sub, err := flatten(v, fullKey)
			if err != nil {
				return nil, err
			}
			entries = append(entries, sub...)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					if err := checkControlChars(s, fullKey); err != nil {
						return nil, err
					}
				}
			}
			jsonBytes, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("serializing %q: %w", fullKey, err)
			}
			entries = append(entries, entry{fullKey, quote(string(jsonBytes))})
		case bool:
			entries = append(entries, entry{fullKey, quote(fmt.Sprintf("%t", v))})
		case int64:
			entries = append(entries, entry{fullKey, quote(fmt.Sprintf("%d", v))})
		case string:
			if err := checkControlChars(v, fullKey); err != nil {
				return nil, err
			}
			entries = append(entries, entry{fullKey, quote(v)})
		default:
			entries = append(entries, entry{fullKey, quote(fmt.Sprintf("%v", v))})
		}
	}
	return entries, nil
}

func checkControlChars(value, key string) error {
	if m := controlCharPattern.FindString(value); m != "" {
		return fmt.Errorf("value for %q contains control character 0x%02x; only \\n and \\t are allowed", key, m[0])
	}
	return nil
}

// quote wraps value in single quotes, escaping embedded single quotes
// with the conventional '\'' sequence.
func quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

func loadTOML(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var data map[string]any
	if err := toml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return data, nil
}
