package pack

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/wippyai/wasm-pack/errors"
)

// Manifest is the package.json written next to the artifacts.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	License     string   `json:"license,omitempty"`
	Type        string   `json:"type"`
	Files       []string `json:"files"`
	Module      string   `json:"module"`
	Types       string   `json:"types"`
	SideEffects []string `json:"sideEffects"`
}

// NewManifest describes the artifacts of pkg.
func NewManifest(p *Params) Manifest {
	name := p.Package.Name
	return Manifest{
		Name:    name,
		Version: p.Package.Version,
		License: p.Package.License,
		Type:    "module",
		Files: []string{
			"./" + name + "_bg.wasm",
			"./" + name + "_bg.js",
			"./" + name + ".d.ts",
		},
		Module:      "./" + name + "_bg.js",
		Types:       "./" + name + ".d.ts",
		SideEffects: []string{"./" + name + ".js"},
	}
}

// WriteManifest writes package.json into OutDir.
func WriteManifest(p *Params) error {
	p.stage("writing package.json")

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(NewManifest(p)); err != nil {
		return errors.Wrap(errors.StageManifest, errors.KindIO, err, "encode package.json")
	}
	if err := os.WriteFile(p.ManifestPath(), buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(errors.StageManifest, errors.KindIO, err, "write package.json")
	}
	return nil
}
