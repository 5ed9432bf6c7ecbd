package matrix

import (
	"encoding/json"
	"sort"
	"strings"
)

// FeatureSet is one point in the combination space: a canonically sorted,
// deduplicated list of feature names. Equality is set-equality; the sorted
// order exists for stable display and hashing.
type FeatureSet []string

// NewFeatureSet builds a canonical FeatureSet from names: sorted
// alphabetically with duplicates and empty strings removed.
func NewFeatureSet(names ...string) FeatureSet {
	set := make(FeatureSet, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		set = append(set, name)
	}
	sort.Strings(set)
	return set
}

// Key returns a stable identity string for set-equality deduplication.
func (s FeatureSet) Key() string {
	return strings.Join(s, "\x1f")
}

// String returns the comma-joined feature list, suitable as a
// feature-selection argument for the external tool.
func (s FeatureSet) String() string {
	return strings.Join(s, ",")
}

// Display returns the feature list formatted for the human report, e.g.
// "[a, b]".
func (s FeatureSet) Display() string {
	return "[" + strings.Join(s, ", ") + "]"
}

// Contains reports whether the set includes name.
func (s FeatureSet) Contains(name string) bool {
	i := sort.SearchStrings(s, name)
	return i < len(s) && s[i] == name
}

// ContainsAll reports whether the set includes every given name.
func (s FeatureSet) ContainsAll(names []string) bool {
	for _, name := range names {
		if !s.Contains(name) {
			return false
		}
	}
	return true
}

// Equal reports set-equality with other.
func (s FeatureSet) Equal(other FeatureSet) bool {
	return s.Key() == other.Key()
}

// Entry is one row of the combination matrix: a package identity plus one
// concrete feature set. The ordered sequence of entries is the run plan.
type Entry struct {
	Package  string
	Features FeatureSet
}

// Key returns a stable identity for the entry across a run.
func (e Entry) Key() string {
	return e.Package + "\x00" + e.Features.Key()
}

// MarshalJSON encodes the entry in the machine-consumable matrix shape
// used for CI fan-out: {"name": ..., "features": "a,b"}.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string `json:"name"`
		Features string `json:"features"`
	}{Name: e.Package, Features: e.Features.String()})
}

// Entries pairs a package name with each of its feature sets, preserving
// the canonical matrix order.
func Entries(pkg string, sets []FeatureSet) []Entry {
	entries := make([]Entry, 0, len(sets))
	for _, set := range sets {
		entries = append(entries, Entry{Package: pkg, Features: set})
	}
	return entries
}
