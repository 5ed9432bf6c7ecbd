// Package manifest loads package metadata for feature matrix computation.
//
// It reads Cargo-style TOML manifests: the `[features]` table, optional
// dependencies from `[dependencies]`, and the tool configuration from
// `[package.metadata.featuregrid]` and `[workspace.metadata.featuregrid]`
// blocks. Workspace members are discovered via the `[workspace]` members
// globs, and each member's configuration is the workspace block merged
// under the package block, package keys winning.
//
// Malformed configuration (a wrong value type for a recognized key) is an
// error: proceeding would silently mis-scope the test surface. Unknown
// feature names inside configuration lists are not validated here at all;
// the matrix builder drops them silently, since configuration is commonly
// shared across heterogeneous packages.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/featuregrid/pkg/errors"
)

// MetadataKey is the table name under [package.metadata] and
// [workspace.metadata] that holds the tool configuration.
const MetadataKey = "featuregrid"

// Package is one workspace member with its declared feature graph.
type Package struct {
	Name         string
	Version      string
	ManifestPath string
	Dir          string

	// Features maps each declared feature to its sub-feature/dependency
	// edges. Implicit features synthesized for optional dependencies map
	// to a nil slice.
	Features map[string][]string

	// OptionalDeps holds the feature-facing names of optional
	// dependencies, sorted. For renamed dependencies this is the rename,
	// matching the feature cargo would create.
	OptionalDeps []string

	// HasLibTarget reports whether the package builds a library: a [lib]
	// table is declared or src/lib.rs exists next to the manifest.
	HasLibTarget bool

	// Config is the merged workspace + package configuration.
	Config Config
}

// Workspace is the full set of packages a run operates on.
type Workspace struct {
	RootDir  string
	Packages []*Package // sorted by name, excluded packages dropped
	Config   Config     // workspace-level configuration
}

// manifestFile mirrors the parts of a Cargo.toml we consume.
type manifestFile struct {
	Package      *packageSection           `toml:"package"`
	Workspace    *workspaceSection         `toml:"workspace"`
	Features     map[string][]string       `toml:"features"`
	Dependencies map[string]toml.Primitive `toml:"dependencies"`
}

type packageSection struct {
	Name     string          `toml:"name"`
	Version  string          `toml:"version"`
	Metadata metadataSection `toml:"metadata"`
}

type workspaceSection struct {
	Members  []string        `toml:"members"`
	Metadata metadataSection `toml:"metadata"`
}

// metadataSection defers the tool configuration to a second decode pass,
// so a wrong value type inside it classifies as a configuration error
// rather than a malformed manifest.
type metadataSection struct {
	Featuregrid toml.Primitive `toml:"featuregrid"`
}

// depTable is the table form of a dependency declaration. The string form
// ("1.0") is never optional, so it needs no fields.
type depTable struct {
	Optional bool   `toml:"optional"`
	Package  string `toml:"package"`
}

// Load reads the manifest at path and returns the workspace it describes.
// A plain package manifest yields a single-package workspace. Inability to
// read the manifest at all is fatal: no matrix can be computed without it.
func Load(path string) (*Workspace, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "resolve %s", path)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestNotFound, err, "manifest %s does not exist", path)
	}

	root, meta, err := decodeFile(abs)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{RootDir: filepath.Dir(abs)}

	var wsRaw rawConfig
	if root.Workspace != nil {
		wsRaw, err = decodeConfig(abs, meta, root.Workspace.Metadata.Featuregrid, "workspace", "metadata", MetadataKey)
		if err != nil {
			return nil, err
		}
	}
	ws.Config = wsRaw.resolve()

	// The root manifest may declare a package of its own alongside the
	// workspace section.
	if root.Package != nil {
		pkg, err := buildPackage(abs, root, meta, wsRaw)
		if err != nil {
			return nil, err
		}
		ws.Packages = append(ws.Packages, pkg)
	}

	if root.Workspace != nil {
		members, err := resolveMembers(ws.RootDir, root.Workspace.Members)
		if err != nil {
			return nil, err
		}
		for _, memberPath := range members {
			mf, mfMeta, err := decodeFile(memberPath)
			if err != nil {
				return nil, err
			}
			if mf.Package == nil {
				continue
			}
			pkg, err := buildPackage(memberPath, mf, mfMeta, wsRaw)
			if err != nil {
				return nil, err
			}
			ws.Packages = append(ws.Packages, pkg)
		}
	}

	if len(ws.Packages) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidManifest, "manifest %s declares no packages", path)
	}

	ws.dropExcluded()
	sort.Slice(ws.Packages, func(i, j int) bool { return ws.Packages[i].Name < ws.Packages[j].Name })
	return ws, nil
}

// Select narrows the workspace to the named packages. An empty selection
// keeps every package. Selecting a package the workspace does not contain
// is an error, since the run would silently test nothing.
func (w *Workspace) Select(names []string) error {
	if len(names) == 0 {
		return nil
	}
	byName := make(map[string]*Package, len(w.Packages))
	for _, p := range w.Packages {
		byName[p.Name] = p
	}
	var selected []*Package
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return errors.New(errors.ErrCodePackageNotFound, "package %q is not in the workspace", name)
		}
		selected = append(selected, p)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Name < selected[j].Name })
	w.Packages = selected
	return nil
}

// DropWithoutLibTarget removes packages that do not build a library.
// Feature combinations mostly matter for libraries consumed downstream;
// pure binaries can be opted out this way.
func (w *Workspace) DropWithoutLibTarget() {
	kept := w.Packages[:0]
	for _, p := range w.Packages {
		if p.HasLibTarget {
			kept = append(kept, p)
		}
	}
	w.Packages = kept
}

func (w *Workspace) dropExcluded() {
	if len(w.Config.ExcludePackages) == 0 {
		return
	}
	excluded := make(map[string]bool, len(w.Config.ExcludePackages))
	for _, name := range w.Config.ExcludePackages {
		excluded[name] = true
	}
	kept := w.Packages[:0]
	for _, p := range w.Packages {
		if !excluded[p.Name] {
			kept = append(kept, p)
		}
	}
	w.Packages = kept
}

func decodeFile(path string) (*manifestFile, toml.MetaData, error) {
	var mf manifestFile
	meta, err := toml.DecodeFile(path, &mf)
	if err != nil {
		return nil, meta, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", path)
	}
	return &mf, meta, nil
}

// decodeConfig decodes the deferred tool metadata block named by keys. An
// absent block yields the zero configuration.
func decodeConfig(path string, meta toml.MetaData, prim toml.Primitive, keys ...string) (rawConfig, error) {
	var raw rawConfig
	if !meta.IsDefined(keys...) {
		return raw, nil
	}
	if err := meta.PrimitiveDecode(prim, &raw); err != nil {
		return raw, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse configuration in %s", path)
	}
	return raw, nil
}

func buildPackage(path string, mf *manifestFile, meta toml.MetaData, wsRaw rawConfig) (*Package, error) {
	pkgRaw, err := decodeConfig(path, meta, mf.Package.Metadata.Featuregrid, "package", "metadata", MetadataKey)
	if err != nil {
		return nil, err
	}

	pkg := &Package{
		Name:         mf.Package.Name,
		Version:      mf.Package.Version,
		ManifestPath: path,
		Dir:          filepath.Dir(path),
		Features:     make(map[string][]string, len(mf.Features)),
		Config:       merge(wsRaw, pkgRaw).resolve(),
	}
	for name, edges := range mf.Features {
		pkg.Features[name] = edges
	}

	optional, err := optionalDeps(path, mf, meta)
	if err != nil {
		return nil, err
	}
	pkg.OptionalDeps = optional

	pkg.HasLibTarget = meta.IsDefined("lib")
	if !pkg.HasLibTarget {
		if _, err := os.Stat(filepath.Join(pkg.Dir, "src", "lib.rs")); err == nil {
			pkg.HasLibTarget = true
		}
	}

	// Cargo synthesizes a feature per optional dependency unless a
	// declared feature already references it with the dep: syntax.
	for _, dep := range optional {
		if _, declared := pkg.Features[dep]; declared {
			continue
		}
		if referencedAsDep(mf.Features, dep) {
			continue
		}
		pkg.Features[dep] = nil
	}

	return pkg, nil
}

// optionalDeps extracts the feature-facing names of optional dependencies.
// The map key is the name a feature would use, so renames need no special
// handling beyond decoding the table form.
func optionalDeps(path string, mf *manifestFile, meta toml.MetaData) ([]string, error) {
	var names []string
	for name, prim := range mf.Dependencies {
		var tbl depTable
		if err := meta.PrimitiveDecode(prim, &tbl); err != nil {
			// String form ("1.0"): never optional.
			var version string
			if strErr := meta.PrimitiveDecode(prim, &version); strErr != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "dependency %q in %s", name, path)
			}
			continue
		}
		if tbl.Optional {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// referencedAsDep reports whether any declared feature enables dep via the
// "dep:<name>" edge syntax, which suppresses the implicit feature.
func referencedAsDep(features map[string][]string, dep string) bool {
	target := fmt.Sprintf("dep:%s", dep)
	for _, edges := range features {
		for _, edge := range edges {
			if edge == target {
				return true
			}
		}
	}
	return false
}

// resolveMembers expands workspace member globs into member manifest paths.
func resolveMembers(rootDir string, patterns []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(rootDir, pattern))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "workspace member pattern %q", pattern)
		}
		sort.Strings(matches)
		for _, dir := range matches {
			manifestPath := filepath.Join(dir, "Cargo.toml")
			if seen[manifestPath] {
				continue
			}
			if info, err := os.Stat(manifestPath); err != nil || info.IsDir() {
				continue
			}
			seen[manifestPath] = true
			paths = append(paths, manifestPath)
		}
	}
	return paths, nil
}
