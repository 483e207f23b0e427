package settings

import "encoding/json"

// hookMergeKey identifies hook entries within arrays of objects. Entries
// with the same matcher value are deep-merged; entries without one merge
// under the nil key within their event group.
const hookMergeKey = "matcher"

// metaKey is the informational envelope on stack overlays, stripped
// before merging.
const metaKey = "_meta"

// Document is a decoded settings document. Values are the JSON shapes
// produced by encoding/json: map[string]any, []any, string, float64,
// bool, and nil.
type Document = map[string]any

// StripMeta returns doc without its _meta envelope.
func StripMeta(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if k == metaKey {
			continue
		}
		out[k] = v
	}
	return out
}

// MergeLayers merges base, then each overlay in order (with _meta
// stripped), then the optional project override with highest precedence.
func MergeLayers(base Document, overlays []Document, project Document) Document {
	result := deepCopy(base).(Document)
	for _, overlay := range overlays {
		result = DeepMerge(result, StripMeta(overlay))
	}
	if project != nil {
		result = DeepMerge(result, project)
	}
	return result
}

// DeepMerge merges overlay into base and returns the result, leaving both
// inputs untouched. The rules, per shared key:
//
//   - overlay value null: the key is deleted from the result
//   - both values objects: recursive merge
//   - both values arrays of objects: merged by the matcher field
//   - both values arrays otherwise: concatenated then deduplicated by
//     canonical value equality, preserving first-seen order
//   - anything else: the overlay value replaces the base value
func DeepMerge(base, overlay Document) Document {
	result := deepCopy(base).(Document)

	for key, value := range overlay {
		if value == nil {
			delete(result, key)
			continue
		}

		existing, present := result[key]
		if !present {
			result[key] = deepCopy(value)
			continue
		}

		switch ev := existing.(type) {
		case Document:
			if ov, ok := value.(Document); ok {
				result[key] = DeepMerge(ev, ov)
				continue
			}
		case []any:
			if ov, ok := value.([]any); ok {
				result[key] = mergeArrays(ev, ov)
				continue
			}
		}

		result[key] = deepCopy(value)
	}
	return result
}

func mergeArrays(base, overlay []any) []any {
	if isObjectArray(base) || isObjectArray(overlay) {
		baseObjs := objectArray(base)
		overlayObjs := objectArray(overlay)
		return mergeObjectArrays(baseObjs, overlayObjs)
	}
	return unionArrays(base, overlay)
}

// unionArrays concatenates then deduplicates by canonical value equality.
// Canonical identity is the value's JSON encoding, so "1" and 1 stay
// distinct and mixed-type arrays dedupe correctly.
func unionArrays(base, overlay []any) []any {
	seen := make(map[string]bool)
	merged := make([]any, 0, len(base)+len(overlay))
	for _, item := range append(append([]any{}, base...), overlay...) {
		key := canonicalKey(item)
		if !seen[key] {
			seen[key] = true
			merged = append(merged, deepCopy(item))
		}
	}
	return merged
}

// mergeObjectArrays merges hook-style arrays of objects keyed by the
// matcher field. Base order is preserved; overlay entries matching a base
// entry are deep-merged in place, the rest are appended in overlay order.
// Matchers are compared by canonical JSON encoding, so an object or array
// matcher is merged like any other value.
func mergeObjectArrays(base, overlay []Document) []any {
	baseByKey := make(map[string]Document)
	var baseOrder []string
	for _, item := range base {
		k := canonicalKey(item[hookMergeKey])
		baseByKey[k] = item
		baseOrder = append(baseOrder, k)
	}

	overlayByKey := make(map[string]Document)
	var overlayOrder []string
	for _, item := range overlay {
		k := canonicalKey(item[hookMergeKey])
		overlayByKey[k] = item
		overlayOrder = append(overlayOrder, k)
	}

	seen := make(map[string]bool)
	var result []any
	for _, k := range baseOrder {
		if seen[k] {
			continue
		}
		seen[k] = true
		baseItem := baseByKey[k]
		if overlayItem, ok := overlayByKey[k]; ok {
			result = append(result, mergeHookEntry(baseItem, overlayItem))
		} else {
			result = append(result, deepCopy(baseItem))
		}
	}
	for _, k := range overlayOrder {
		if !seen[k] {
			seen[k] = true
			result = append(result, deepCopy(overlayByKey[k]))
		}
	}
	return result
}

// mergeHookEntry deep-merges one hook entry, concatenating inner "hooks"
// command arrays instead of deduplicating them.
func mergeHookEntry(base, overlay Document) Document {
	result := deepCopy(base).(Document)
	for key, value := range overlay {
		if key == "hooks" {
			if ov, ok := value.([]any); ok {
				if ev, ok := result[key].([]any); ok {
					result[key] = append(append([]any{}, ev...), deepCopy(ov).([]any)...)
					continue
				}
			}
		}
		if ov, ok := value.(Document); ok {
			if ev, ok := result[key].(Document); ok {
				result[key] = DeepMerge(ev, ov)
				continue
			}
		}
		result[key] = deepCopy(value)
	}
	return result
}

func isObjectArray(arr []any) bool {
	if len(arr) == 0 {
		return false
	}
	for _, item := range arr {
		if _, ok := item.(Document); !ok {
			return false
		}
	}
	return true
}

func objectArray(arr []any) []Document {
	if !isObjectArray(arr) {
		return nil
	}
	objs := make([]Document, len(arr))
	for i, item := range arr {
		objs[i] = item.(Document)
	}
	return objs
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case Document:
		out := make(Document, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}

func canonicalKey(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Non-serializable values cannot appear in a decoded JSON
		// document; fall back to the formatted value.
		return "!" + err.Error()
	}
	return string(b)
}
