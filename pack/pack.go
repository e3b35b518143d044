// Package pack turns a cargo crate into an npm-style package of a
// WebAssembly binary plus its JavaScript glue.
//
// The pipeline is Compile, Generate, then Optimize, Rewrite and
// WriteManifest concurrently. Every external tool goes through
// Params.Runner so the stages can be exercised without a Rust toolchain.
package pack

import (
	"path/filepath"
	"strings"

	"github.com/wippyai/wasm-pack/runner"
	"github.com/wippyai/wasm-pack/workspace"
	"go.uber.org/zap"
)

// Params configures one packaging run.
type Params struct {
	Runner    runner.Executor
	TargetDir string
	Package   workspace.Package
	OutDir    string
	Target    string
	Verbose   bool
	CI        bool
}

func (p *Params) target() string {
	if p.Target == "" {
		return workspace.DefaultTarget
	}
	return p.Target
}

// ArtifactPath returns the path of the compiled library.
func (p *Params) ArtifactPath() string {
	lib := strings.ReplaceAll(p.Package.Name, "-", "_") + ".wasm"
	return filepath.Join(p.TargetDir, p.target(), "release", lib)
}

// BinaryPath returns the path of the generated binary.
func (p *Params) BinaryPath() string {
	return filepath.Join(p.OutDir, p.Package.Name+"_bg.wasm")
}

// GluePath returns the path of the generated binding glue.
func (p *Params) GluePath() string {
	return filepath.Join(p.OutDir, p.Package.Name+"_bg.js")
}

// EntryPath returns the path of the glue entry module.
func (p *Params) EntryPath() string {
	return filepath.Join(p.OutDir, p.Package.Name+".js")
}

// TypesPath returns the path of the type declarations.
func (p *Params) TypesPath() string {
	return filepath.Join(p.OutDir, p.Package.Name+".d.ts")
}

// ManifestPath returns the path of package.json.
func (p *Params) ManifestPath() string {
	return filepath.Join(p.OutDir, "package.json")
}

func (p *Params) stage(msg string, fields ...zap.Field) {
	if !p.Verbose {
		return
	}
	Logger().Info(msg, append([]zap.Field{zap.String("package", p.Package.Name)}, fields...)...)
}
