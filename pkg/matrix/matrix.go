// Package matrix computes the ordered list of feature sets to test for one
// package: the powerset of its selectable features, pruned and extended by
// configuration.
//
// The computation is pure and deterministic: identical inputs yield
// byte-identical ordered output, so the matrix can feed CI job definitions
// and diff cleanly across machines and runs.
//
// Powerset generation is exponential in the candidate feature count. The
// isolated_feature_sets mechanism trades the full cross-product for a
// union of smaller per-group powersets; cross-group feature interactions
// are untested by design when isolation is used.
package matrix

import (
	"sort"

	"github.com/matzehuels/featuregrid/pkg/errors"
	"github.com/matzehuels/featuregrid/pkg/manifest"
)

// maxGroupFeatures caps the candidate features per combination group.
// Beyond it the powerset (2^n) is no longer worth enumerating and the
// configuration needs isolation groups or exclusions instead.
const maxGroupFeatures = 16

// MaxGroupCombinations is the largest powerset one group may produce.
const MaxGroupCombinations = 1 << maxGroupFeatures

// Build computes the ordered feature sets for a package with the given
// selectable feature names.
//
// The steps, in order: excluded features are removed from the candidate
// set (pinned include_features win and appear in every generated set);
// candidates are combined per isolation group, or all at once when no
// groups are configured; combinations containing every feature of an
// exclude_feature_sets grouping are dropped; include_feature_sets entries
// are appended verbatim, bypassing exclusion filtering; the baseline set
// (pins only, empty without pins) is guaranteed present exactly once; and
// the result is canonicalized by set size then lexicographic order, so
// smaller combinations run first.
//
// Feature names in configuration lists that the package does not declare
// are dropped silently: configuration is commonly shared across a
// workspace of heterogeneous packages.
func Build(featureNames []string, cfg manifest.Config) ([]FeatureSet, error) {
	known := make(map[string]bool, len(featureNames))
	for _, name := range featureNames {
		known[name] = true
	}

	pins := NewFeatureSet(keep(cfg.IncludeFeatures, known)...)

	excluded := make(map[string]bool, len(cfg.ExcludeFeatures))
	for _, name := range cfg.ExcludeFeatures {
		excluded[name] = true
	}

	candidates := make([]string, 0, len(featureNames))
	for _, name := range NewFeatureSet(featureNames...) {
		if excluded[name] || pins.Contains(name) {
			continue
		}
		candidates = append(candidates, name)
	}

	var sets []FeatureSet
	seen := make(map[string]bool)
	add := func(set FeatureSet) {
		if !seen[set.Key()] {
			seen[set.Key()] = true
			sets = append(sets, set)
		}
	}

	for _, group := range partition(candidates, cfg.IsolatedFeatureSets) {
		if len(group) > maxGroupFeatures {
			return nil, errors.New(errors.ErrCodeTooManyCombinations,
				"too many configurations: %d features yield 2^%d combinations in one group (limit %d); use isolated_feature_sets or exclude_features to reduce",
				len(group), len(group), MaxGroupCombinations)
		}
		for mask := 0; mask < 1<<len(group); mask++ {
			combo := append([]string(nil), pins...)
			for i, name := range group {
				if mask&(1<<i) != 0 {
					combo = append(combo, name)
				}
			}
			add(NewFeatureSet(combo...))
		}
	}

	pruned := sets[:0]
	for _, set := range sets {
		if forbidden(set, cfg.ExcludeFeatureSets) {
			delete(seen, set.Key())
			continue
		}
		pruned = append(pruned, set)
	}
	sets = pruned

	// The baseline entry survives even when superset pruning would have
	// removed it.
	if !seen[pins.Key()] {
		seen[pins.Key()] = true
		sets = append(sets, pins)
	}

	// include_feature_sets bypass both the candidate exclusion and the
	// superset pruning above. A pinned feature that exclude_features also
	// names therefore still appears; the include side wins.
	for _, inc := range cfg.IncludeFeatureSets {
		add(NewFeatureSet(keep(inc, known)...))
	}

	sort.SliceStable(sets, func(i, j int) bool {
		a, b := sets[i], sets[j]
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})

	return sets, nil
}

// partition splits candidates into the configured isolation groups plus an
// implicit remaining group. Names a group lists that are not candidates
// (unknown, excluded, pinned, or claimed by an earlier group) are dropped.
func partition(candidates []string, isolated [][]string) [][]string {
	if len(isolated) == 0 {
		return [][]string{candidates}
	}

	remaining := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		remaining[name] = true
	}

	groups := make([][]string, 0, len(isolated)+1)
	for _, declared := range isolated {
		var group []string
		for _, name := range declared {
			if remaining[name] {
				delete(remaining, name)
				group = append(group, name)
			}
		}
		sort.Strings(group)
		groups = append(groups, group)
	}

	leftover := make([]string, 0, len(remaining))
	for name := range remaining {
		leftover = append(leftover, name)
	}
	sort.Strings(leftover)
	return append(groups, leftover)
}

// forbidden reports whether set contains every feature of any non-empty
// excluded grouping. Groupings naming unknown features never match; an
// empty grouping is ignored rather than forbidding everything.
func forbidden(set FeatureSet, groups [][]string) bool {
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		if set.ContainsAll(group) {
			return true
		}
	}
	return false
}

// keep filters names down to those present in known, preserving order.
func keep(names []string, known map[string]bool) []string {
	var kept []string
	for _, name := range names {
		if known[name] {
			kept = append(kept, name)
		}
	}
	return kept
}
