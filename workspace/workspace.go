// Package workspace locates the WebAssembly crate inside a cargo workspace.
//
// A crate qualifies when it is a workspace member, builds a cdylib target and
// depends on wasm-bindgen. Exactly one crate must qualify unless a name is
// given explicitly.
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/runner"
)

// DefaultTarget is the platform triple packages are built for.
const DefaultTarget = "wasm32-unknown-unknown"

// GlueDependency is the crate every candidate must depend on.
const GlueDependency = "wasm-bindgen"

// Package describes the crate selected for packaging.
type Package struct {
	ID      string
	Name    string
	Version string
	License string // empty when the manifest declares none
	Path    string // directory containing Cargo.toml
}

// Metadata is the filtered result of a cargo metadata query.
type Metadata struct {
	Root       string
	TargetDir  string
	Candidates []Package
}

type cargoMetadata struct {
	Packages []struct {
		Name         string            `json:"name"`
		Version      string            `json:"version"`
		ID           string            `json:"id"`
		License      *string           `json:"license"`
		ManifestPath string            `json:"manifest_path"`
		Dependencies []cargoDependency `json:"dependencies"`
		Targets      []cargoTarget     `json:"targets"`
	} `json:"packages"`
	WorkspaceMembers []string `json:"workspace_members"`
	TargetDirectory  string   `json:"target_directory"`
	WorkspaceRoot    string   `json:"workspace_root"`
}

type cargoDependency struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type cargoTarget struct {
	Kind []string `json:"kind"`
	Name string   `json:"name"`
}

// MetadataArgs returns the cargo arguments for an offline, lockfile-exact
// metadata query filtered to target.
func MetadataArgs(target string) []string {
	return []string{
		"metadata",
		"--format-version=1",
		"--filter-platform=" + target,
		"--offline",
		"--frozen",
		"--no-deps",
	}
}

// Inspect queries cargo for workspace metadata and keeps the packaging candidates.
func Inspect(ctx context.Context, exec runner.Executor, target string) (*Metadata, error) {
	if target == "" {
		target = DefaultTarget
	}
	out, err := exec.Read(ctx, "cargo", MetadataArgs(target)...)
	if err != nil {
		return nil, runner.StageError(errors.StageDiscover, err)
	}
	return ParseMetadata(out)
}

// ParseMetadata decodes cargo metadata JSON and filters candidates.
func ParseMetadata(data []byte) (*Metadata, error) {
	var raw cargoMetadata
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.StageDiscover, errors.KindIO, err, "decode cargo metadata")
	}

	md := &Metadata{
		Root:      raw.WorkspaceRoot,
		TargetDir: raw.TargetDirectory,
	}

	for _, pkg := range raw.Packages {
		if !slices.Contains(raw.WorkspaceMembers, pkg.ID) {
			continue
		}
		cdylib := slices.ContainsFunc(pkg.Targets, func(t cargoTarget) bool {
			return slices.Contains(t.Kind, "cdylib")
		})
		bindgen := slices.ContainsFunc(pkg.Dependencies, func(d cargoDependency) bool {
			return d.Name == GlueDependency
		})
		if !cdylib || !bindgen {
			continue
		}

		p := Package{
			ID:      pkg.ID,
			Name:    pkg.Name,
			Version: pkg.Version,
			Path:    filepath.Dir(pkg.ManifestPath),
		}
		if pkg.License != nil {
			p.License = *pkg.License
		}
		md.Candidates = append(md.Candidates, p)
	}

	sort.Slice(md.Candidates, func(i, j int) bool {
		return md.Candidates[i].Name < md.Candidates[j].Name
	})
	return md, nil
}

// Select picks the package named hint, or the only candidate when hint is empty.
func (m *Metadata) Select(hint string) (Package, error) {
	if hint != "" {
		for _, p := range m.Candidates {
			if p.Name == hint {
				return p, nil
			}
		}
		return Package{}, errors.AmbiguousPackage(fmt.Sprintf("cannot find wasm project %s", hint))
	}

	switch len(m.Candidates) {
	case 1:
		return m.Candidates[0], nil
	case 0:
		return Package{}, errors.AmbiguousPackage("there's no wasm package")
	default:
		var b strings.Builder
		b.WriteString("there are too many packages, choose one of these:")
		for _, p := range m.Candidates {
			b.WriteString("\n- ")
			b.WriteString(p.ID)
		}
		return Package{}, errors.AmbiguousPackage(b.String())
	}
}

// Discover runs Inspect and Select.
func Discover(ctx context.Context, exec runner.Executor, target, hint string) (*Metadata, Package, error) {
	md, err := Inspect(ctx, exec, target)
	if err != nil {
		return nil, Package{}, err
	}
	pkg, err := md.Select(hint)
	if err != nil {
		return md, Package{}, err
	}
	return md, pkg, nil
}
