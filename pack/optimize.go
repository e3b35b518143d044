package pack

import (
	"context"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/renamemap"
	"github.com/wippyai/wasm-pack/runner"
	"go.uber.org/zap"
)

// OptimizeArgs returns the wasm-opt arguments. The binary is optimized in
// place and import/export names are minified.
func OptimizeArgs(p *Params) []string {
	bin := p.BinaryPath()
	return []string{
		"--quiet",
		"--fast-math",
		"--minify-imports-and-exports-and-modules",
		"-O",
		bin,
		"-o",
		bin,
	}
}

// Optimize runs wasm-opt and records the renames it reports. The side-car
// is only written when something was renamed; otherwise a stale one is
// removed.
func Optimize(ctx context.Context, p *Params) (*renamemap.Map, error) {
	p.stage("wasm-opt optimizing")

	out, err := p.Runner.Read(ctx, "wasm-opt", OptimizeArgs(p)...)
	if err != nil {
		return nil, runner.StageError(errors.StageOptimize, err)
	}

	path := renamemap.PathFor(p.BinaryPath())
	renames := renamemap.ParseReport(out)
	if len(renames) == 0 {
		if err := renamemap.Remove(path); err != nil {
			return nil, errors.Wrap(errors.StageOptimize, errors.KindIO, err, "remove stale rename map")
		}
		return nil, nil
	}

	m := renamemap.New(p.Package.Name, renames)
	if err := m.Write(path); err != nil {
		return nil, errors.Wrap(errors.StageOptimize, errors.KindIO, err, "write rename map")
	}
	p.stage("rename map written", zap.Int("renames", m.Len()))
	return m, nil
}
