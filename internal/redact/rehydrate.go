package redact

import (
	"sort"
	"strings"
)

// Rehydrate recursively restores original values in a JSON-shaped value
// (string, []any, map[string]any; other scalars pass through unchanged).
// The structure and, for maps, the keys are preserved.
func Rehydrate(data any, mapping map[string]string) any {
	switch v := data.(type) {
	case string:
		return RehydrateString(v, mapping)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Rehydrate(item, mapping)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Rehydrate(item, mapping)
		}
		return out
	default:
		return data
	}
}

// RehydrateString replaces every occurrence of every known placeholder in s
// with its original value. Longer tokens go first, so a placeholder that is
// a substring of another (e.g. [PERSON_1] inside [PERSON_10]) is never
// partially matched. Replacement is literal; unknown tokens are left as-is.
func RehydrateString(s string, mapping map[string]string) string {
	if len(mapping) == 0 {
		return s
	}

	placeholders := make([]string, 0, len(mapping))
	for placeholder := range mapping {
		placeholders = append(placeholders, placeholder)
	}
	sort.Slice(placeholders, func(i, j int) bool {
		if len(placeholders[i]) != len(placeholders[j]) {
			return len(placeholders[i]) > len(placeholders[j])
		}
		return placeholders[i] < placeholders[j]
	})

	for _, placeholder := range placeholders {
		s = strings.ReplaceAll(s, placeholder, mapping[placeholder])
	}
	return s
}
