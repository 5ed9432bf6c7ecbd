package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/matzehuels/featuregrid/pkg/errors"
)

// writeManifest writes content as dir/Cargo.toml and returns its path.
func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "Cargo.toml")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSinglePackage(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `
[package]
name = "testdummy"
version = "0.1.0"

[features]
A = []
B = ["A"]
C = ["dep:optDepC"]

[dependencies]
fixDepA = { path = "fixDepA" }
oDepB = { path = "optDepB", package = "optDepB", optional = true }
optDepC = { path = "optDepC", optional = true }
plain = "1.0"
`)

	ws, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ws.Packages) != 1 {
		t.Fatalf("packages = %d, want 1", len(ws.Packages))
	}

	pkg := ws.Packages[0]
	if pkg.Name != "testdummy" || pkg.Version != "0.1.0" {
		t.Errorf("package = %s %s, want testdummy 0.1.0", pkg.Name, pkg.Version)
	}

	wantOptional := []string{"oDepB", "optDepC"}
	if !reflect.DeepEqual(pkg.OptionalDeps, wantOptional) {
		t.Errorf("optional deps = %v, want %v", pkg.OptionalDeps, wantOptional)
	}

	// oDepB gains an implicit feature; optDepC does not, because feature C
	// references it via dep: syntax.
	if _, ok := pkg.Features["oDepB"]; !ok {
		t.Error("implicit feature oDepB missing")
	}
	if _, ok := pkg.Features["optDepC"]; ok {
		t.Error("optDepC should not have an implicit feature")
	}
	if got := pkg.Features["B"]; !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("feature B edges = %v, want [A]", got)
	}
}

func TestLoadConfigAliases(t *testing.T) {
	tests := []struct {
		name  string
		block string
		check func(t *testing.T, cfg Config)
	}{
		{
			name: "CanonicalKeys",
			block: `
exclude_feature_sets = [["a", "b"]]
exclude_features = ["default"]
include_feature_sets = [["x"]]
skip_optional_dependencies = true
`,
			check: func(t *testing.T, cfg Config) {
				if !reflect.DeepEqual(cfg.ExcludeFeatureSets, [][]string{{"a", "b"}}) {
					t.Errorf("ExcludeFeatureSets = %v", cfg.ExcludeFeatureSets)
				}
				if !cfg.SkipOptionalDependencies {
					t.Error("SkipOptionalDependencies = false")
				}
			},
		},
		{
			name: "Aliases",
			block: `
skip_feature_sets = [["a", "b"]]
denylist = ["default"]
exact_combinations = [["x", "y"]]
`,
			check: func(t *testing.T, cfg Config) {
				if !reflect.DeepEqual(cfg.ExcludeFeatureSets, [][]string{{"a", "b"}}) {
					t.Errorf("alias skip_feature_sets not resolved: %v", cfg.ExcludeFeatureSets)
				}
				if !reflect.DeepEqual(cfg.ExcludeFeatures, []string{"default"}) {
					t.Errorf("alias denylist not resolved: %v", cfg.ExcludeFeatures)
				}
				if !reflect.DeepEqual(cfg.IncludeFeatureSets, [][]string{{"x", "y"}}) {
					t.Errorf("alias exact_combinations not resolved: %v", cfg.IncludeFeatureSets)
				}
			},
		},
		{
			name: "CanonicalWinsOverAlias",
			block: `
exclude_features = ["canonical"]
denylist = ["alias"]
`,
			check: func(t *testing.T, cfg Config) {
				if !reflect.DeepEqual(cfg.ExcludeFeatures, []string{"canonical"}) {
					t.Errorf("ExcludeFeatures = %v, want [canonical]", cfg.ExcludeFeatures)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), `
[package]
name = "testdummy"
version = "0.1.0"

[features]
a = []
b = []

[package.metadata.featuregrid]
`+tt.block)

			ws, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.check(t, ws.Packages[0].Config)
		})
	}
}

func TestLoadMalformedConfig(t *testing.T) {
	// Wrong value type for a recognized key must abort before any matrix
	// is computed.
	path := writeManifest(t, t.TempDir(), `
[package]
name = "testdummy"
version = "0.1.0"

[package.metadata.featuregrid]
exclude_features = "not-a-list"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load succeeded on malformed configuration")
	}
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("error code = %q, want INVALID_CONFIG (%v)", errors.GetCode(err), err)
	}
}

func TestLoadMalformedManifestOutsideConfig(t *testing.T) {
	// A decode failure outside the metadata block is a malformed manifest
	// even when the offending key happens to contain the tool name.
	path := writeManifest(t, t.TempDir(), `
[package]
name = "testdummy"
version = "0.1.0"

[features]
featuregrid = "not-a-list"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load succeeded on malformed feature table")
	}
	if !errors.Is(err, errors.ErrCodeInvalidManifest) {
		t.Errorf("error code = %q, want INVALID_MANIFEST (%v)", errors.GetCode(err), err)
	}
}

func TestLoadMissingManifest(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "Cargo.toml"))
	if err == nil {
		t.Fatal("Load succeeded on missing manifest")
	}
	if !errors.Is(err, errors.ErrCodeManifestNotFound) {
		t.Errorf("error code = %q, want MANIFEST_NOT_FOUND", errors.GetCode(err))
	}
}

func TestLoadWorkspace(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[workspace]
members = ["crates/*"]

[workspace.metadata.featuregrid]
exclude_packages = ["skipme"]
exclude_features = ["default"]
`)
	writeManifest(t, filepath.Join(root, "crates", "alpha"), `
[package]
name = "alpha"
version = "0.1.0"

[features]
x = []

[package.metadata.featuregrid]
exclude_features = ["x"]
`)
	writeManifest(t, filepath.Join(root, "crates", "beta"), `
[package]
name = "beta"
version = "0.1.0"
`)
	writeManifest(t, filepath.Join(root, "crates", "skipme"), `
[package]
name = "skipme"
version = "0.1.0"
`)

	ws, err := Load(filepath.Join(root, "Cargo.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var names []string
	for _, p := range ws.Packages {
		names = append(names, p.Name)
	}
	if !reflect.DeepEqual(names, []string{"alpha", "beta"}) {
		t.Fatalf("packages = %v, want [alpha beta]", names)
	}

	// Package block overrides the workspace key; beta inherits it.
	if got := ws.Packages[0].Config.ExcludeFeatures; !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("alpha ExcludeFeatures = %v, want [x]", got)
	}
	if got := ws.Packages[1].Config.ExcludeFeatures; !reflect.DeepEqual(got, []string{"default"}) {
		t.Errorf("beta ExcludeFeatures = %v, want [default]", got)
	}
}

func TestLibTargetDetection(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[workspace]
members = ["lib-decl", "lib-file", "bin-only"]
`)
	writeManifest(t, filepath.Join(root, "lib-decl"), `
[package]
name = "lib-decl"
version = "0.1.0"

[lib]
name = "libdecl"
`)
	writeManifest(t, filepath.Join(root, "lib-file"), "[package]\nname = \"lib-file\"\nversion = \"0.1.0\"\n")
	srcDir := filepath.Join(root, "lib-file", "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "lib.rs"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, filepath.Join(root, "bin-only"), "[package]\nname = \"bin-only\"\nversion = \"0.1.0\"\n")

	ws, err := Load(filepath.Join(root, "Cargo.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := map[string]bool{"bin-only": false, "lib-decl": true, "lib-file": true}
	for _, p := range ws.Packages {
		if p.HasLibTarget != want[p.Name] {
			t.Errorf("%s HasLibTarget = %v, want %v", p.Name, p.HasLibTarget, want[p.Name])
		}
	}

	ws.DropWithoutLibTarget()
	var names []string
	for _, p := range ws.Packages {
		names = append(names, p.Name)
	}
	if !reflect.DeepEqual(names, []string{"lib-decl", "lib-file"}) {
		t.Errorf("packages after drop = %v, want [lib-decl lib-file]", names)
	}
}

func TestSelect(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[workspace]
members = ["a", "b"]
`)
	writeManifest(t, filepath.Join(root, "a"), "[package]\nname = \"a\"\nversion = \"0.1.0\"\n")
	writeManifest(t, filepath.Join(root, "b"), "[package]\nname = \"b\"\nversion = \"0.1.0\"\n")

	ws, err := Load(filepath.Join(root, "Cargo.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := ws.Select([]string{"b"}); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(ws.Packages) != 1 || ws.Packages[0].Name != "b" {
		t.Errorf("selection = %v", ws.Packages)
	}

	if err := ws.Select([]string{"nope"}); err == nil {
		t.Error("Select succeeded for unknown package")
	}
}
