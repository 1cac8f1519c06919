package redact

import (
	"fmt"
	"strconv"
	"strings"
)

// Vault is the session-scoped bidirectional store between original PII
// values and their placeholders. One Vault per transcript: sharing an
// instance across transcripts would leak one call's mappings into
// another's placeholder numbering.
type Vault struct {
	forward  map[string]string // trimmed original -> placeholder
	reverse  map[string]string // placeholder -> trimmed original
	counters map[Category]int
}

// NewVault creates an empty vault with all counters at zero.
func NewVault() *Vault {
	return &Vault{
		forward:  make(map[string]string),
		reverse:  make(map[string]string),
		counters: make(map[Category]int),
	}
}

// GetPlaceholder returns the placeholder for original, minting a new
// [CATEGORY_N] token on first sight. Lookups key on the whitespace-trimmed
// value, so "John " and "John" share one placeholder within a session.
func (v *Vault) GetPlaceholder(original string, category Category) string {
	key := strings.TrimSpace(original)
	if placeholder, ok := v.forward[key]; ok {
		return placeholder
	}

	v.counters[category]++
	placeholder := fmt.Sprintf("[%s_%d]", category, v.counters[category])
	v.forward[key] = placeholder
	v.reverse[placeholder] = key
	return placeholder
}

// Lookup returns the original value for a placeholder, if known.
func (v *Vault) Lookup(placeholder string) (string, bool) {
	original, ok := v.reverse[placeholder]
	return original, ok
}

// Export returns a copy of the placeholder -> original mapping. The export
// is for local persistence and rehydration only; it must never cross the
// boundary to the external generation service.
func (v *Vault) Export() map[string]string {
	out := make(map[string]string, len(v.reverse))
	for placeholder, original := range v.reverse {
		out[placeholder] = original
	}
	return out
}

// ImportVault reconstructs a Vault from a previously exported mapping.
// Each category counter is set to the maximum numeric suffix seen, so a
// rebuilt vault never reissues a colliding placeholder. Tokens without a
// parseable _N suffix are kept in the maps but do not advance counters.
func ImportVault(mapping map[string]string) *Vault {
	v := NewVault()
	for placeholder, original := range mapping {
		v.reverse[placeholder] = original
		v.forward[original] = placeholder

		inner := strings.TrimSuffix(strings.TrimPrefix(placeholder, "["), "]")
		idx := strings.LastIndex(inner, "_")
		if idx <= 0 {
			continue
		}
		n, err := strconv.Atoi(inner[idx+1:])
		if err != nil {
			continue
		}
		category := Category(inner[:idx])
		if n > v.counters[category] {
			v.counters[category] = n
		}
	}
	return v
}

// Len returns the number of distinct originals stored.
func (v *Vault) Len() int {
	return len(v.forward)
}
