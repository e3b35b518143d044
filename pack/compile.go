package pack

import (
	"context"
	"os"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/runner"
	"go.uber.org/zap"
)

// CompileArgs returns the cargo arguments for a release library build.
func CompileArgs(p *Params) []string {
	args := []string{
		"build",
		"--lib",
		"--target=" + p.target(),
		"--package=" + p.Package.Name,
		"--release",
	}
	if p.CI {
		args = append(args, "--locked")
	}
	return args
}

// Compile builds the crate for the wasm target.
func Compile(ctx context.Context, p *Params) error {
	p.stage("cargo building", zap.String("id", p.Package.ID), zap.Bool("locked", p.CI))
	return runner.StageError(errors.StageCompile, p.Runner.Run(ctx, "cargo", CompileArgs(p)...))
}

// GenerateArgs returns the wasm-bindgen arguments.
func GenerateArgs(p *Params) []string {
	return []string{
		"--out-dir", p.OutDir,
		"--out-name", p.Package.Name,
		"--typescript",
		"--target=bundler",
		"--remove-name-section",
		"--remove-producers-section",
		"--omit-default-module-path",
		"--encode-into=always",
		p.ArtifactPath(),
	}
}

// Generate extracts JavaScript glue from the compiled library into OutDir.
func Generate(ctx context.Context, p *Params) error {
	p.stage("extracting glue")
	if err := os.MkdirAll(p.OutDir, 0o755); err != nil {
		return errors.Wrap(errors.StageGenerate, errors.KindIO, err, "create output directory")
	}
	return runner.StageError(errors.StageGenerate, p.Runner.Run(ctx, "wasm-bindgen", GenerateArgs(p)...))
}
