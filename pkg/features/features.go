// Package features splits a package's declared feature graph into explicit
// and implicit features.
//
// A feature is implicit when it exists solely to toggle an optional
// dependency: it declares no sub-feature edges and its name exactly matches
// an optional dependency's name. Every other declared feature is explicit,
// including features that enable optional dependencies as a side effect of
// at least one declared edge.
package features

import "sort"

// Feature is a named, selectable capability toggle of a package.
type Feature struct {
	Name     string
	Implicit bool
}

// Split partitions the declared features into explicit and implicit sets.
// Both results are sorted by name.
func Split(decls map[string][]string, optionalDeps []string) (explicit, implicit []Feature) {
	optional := make(map[string]bool, len(optionalDeps))
	for _, dep := range optionalDeps {
		optional[dep] = true
	}

	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if len(decls[name]) == 0 && optional[name] {
			implicit = append(implicit, Feature{Name: name, Implicit: true})
			continue
		}
		explicit = append(explicit, Feature{Name: name})
	}
	return explicit, implicit
}

// Selectable returns the sorted feature names offered to the combination
// algorithm. Implicit features are withheld when skipOptional is set.
func Selectable(decls map[string][]string, optionalDeps []string, skipOptional bool) []string {
	explicit, implicit := Split(decls, optionalDeps)

	names := make([]string, 0, len(explicit)+len(implicit))
	for _, f := range explicit {
		names = append(names, f.Name)
	}
	if !skipOptional {
		for _, f := range implicit {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	return names
}
