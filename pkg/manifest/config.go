package manifest

// Config is the resolved, alias-free matrix configuration for one package.
// It is parsed once from manifest metadata at startup and read-only after.
type Config struct {
	// ExcludeFeatureSets lists feature groupings that must not co-occur.
	// Any generated combination containing every feature of a grouping is
	// dropped. Comparison is set-containment, not exact match.
	ExcludeFeatureSets [][]string

	// ExcludeFeatures are removed from the candidate set before any
	// combination is generated.
	ExcludeFeatures []string

	// IncludeFeatures are pinned into every generated combination, even
	// when ExcludeFeatures also names them.
	IncludeFeatures []string

	// IncludeFeatureSets are appended to the matrix verbatim (after
	// dropping unknown feature names) and bypass exclusion filtering.
	IncludeFeatureSets [][]string

	// IsolatedFeatureSets partitions the candidate features into groups
	// combined independently, avoiding the full cross-product. Features
	// not named in any group form an implicit remaining group.
	IsolatedFeatureSets [][]string

	// ExcludePackages drops packages from the run entirely. Recognized at
	// the workspace level only.
	ExcludePackages []string

	// SkipOptionalDependencies removes implicit features that exist only
	// to toggle an optional dependency from the candidate set.
	SkipOptionalDependencies bool
}

// rawConfig mirrors the TOML metadata block, including legacy key aliases.
// Slice fields stay nil when the key is absent so merging can distinguish
// "not configured" from "configured empty". The bool uses a pointer for the
// same reason.
type rawConfig struct {
	ExcludeFeatureSets  [][]string `toml:"exclude_feature_sets"`
	SkipFeatureSets     [][]string `toml:"skip_feature_sets"` // alias of exclude_feature_sets
	ExcludeFeatures     []string   `toml:"exclude_features"`
	Denylist            []string   `toml:"denylist"` // alias of exclude_features
	IncludeFeatures     []string   `toml:"include_features"`
	IncludeFeatureSets  [][]string `toml:"include_feature_sets"`
	ExactCombinations   [][]string `toml:"exact_combinations"` // alias of include_feature_sets
	IsolatedFeatureSets [][]string `toml:"isolated_feature_sets"`
	ExcludePackages     []string   `toml:"exclude_packages"`
	SkipOptionalDeps    *bool      `toml:"skip_optional_dependencies"`
}

// merge overlays pkg on top of ws, key by key. A key counts as set when it
// was present in the TOML block, so an explicit empty list in a package
// block overrides a populated workspace list.
func merge(ws, pkg rawConfig) rawConfig {
	out := ws
	if pkg.ExcludeFeatureSets != nil {
		out.ExcludeFeatureSets = pkg.ExcludeFeatureSets
	}
	if pkg.SkipFeatureSets != nil {
		out.SkipFeatureSets = pkg.SkipFeatureSets
	}
	if pkg.ExcludeFeatures != nil {
		out.ExcludeFeatures = pkg.ExcludeFeatures
	}
	if pkg.Denylist != nil {
		out.Denylist = pkg.Denylist
	}
	if pkg.IncludeFeatures != nil {
		out.IncludeFeatures = pkg.IncludeFeatures
	}
	if pkg.IncludeFeatureSets != nil {
		out.IncludeFeatureSets = pkg.IncludeFeatureSets
	}
	if pkg.ExactCombinations != nil {
		out.ExactCombinations = pkg.ExactCombinations
	}
	if pkg.IsolatedFeatureSets != nil {
		out.IsolatedFeatureSets = pkg.IsolatedFeatureSets
	}
	if pkg.SkipOptionalDeps != nil {
		out.SkipOptionalDeps = pkg.SkipOptionalDeps
	}
	// exclude_packages is workspace-level only; package blocks cannot
	// override it.
	out.ExcludePackages = ws.ExcludePackages
	return out
}

// resolve collapses aliases into the canonical Config. The canonical key
// wins when both it and its alias are present.
func (r rawConfig) resolve() Config {
	cfg := Config{
		ExcludeFeatureSets:  r.ExcludeFeatureSets,
		ExcludeFeatures:     r.ExcludeFeatures,
		IncludeFeatures:     r.IncludeFeatures,
		IncludeFeatureSets:  r.IncludeFeatureSets,
		IsolatedFeatureSets: r.IsolatedFeatureSets,
		ExcludePackages:     r.ExcludePackages,
	}
	if cfg.ExcludeFeatureSets == nil {
		cfg.ExcludeFeatureSets = r.SkipFeatureSets
	}
	if cfg.ExcludeFeatures == nil {
		cfg.ExcludeFeatures = r.Denylist
	}
	if cfg.IncludeFeatureSets == nil {
		cfg.IncludeFeatureSets = r.ExactCombinations
	}
	if r.SkipOptionalDeps != nil {
		cfg.SkipOptionalDependencies = *r.SkipOptionalDeps
	}
	return cfg
}
