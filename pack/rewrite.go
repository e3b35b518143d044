package pack

import (
	"fmt"
	"os"
	"regexp"

	"github.com/wippyai/wasm-pack/errors"
	"go.uber.org/zap"
)

// The generated glue expects the host to inject the instance through
// __wbg_set_wasm. Bundled output imports the binary module directly instead.
var setWasmPattern = regexp.MustCompile(`(?:^|\n)let wasm;\nexport function __wbg_set_wasm\s*\([^)]+\)\s*\{[^}]*\}`)

// Error wrappers forward `arguments`, which minifiers cannot rename through.
var argumentsPattern = regexp.MustCompile(`\((\) \{ return (?:handle|log)Error\(function (?s:.+?)\}, )arguments\)`)

// RewriteReport records which glue substitutions applied.
type RewriteReport struct {
	SetWasmReplaced bool
	ArgumentsFixed  int
}

// RewriteGlue applies both substitutions to src.
func RewriteGlue(src, pkgName string) (string, RewriteReport) {
	var rep RewriteReport

	if loc := setWasmPattern.FindStringIndex(src); loc != nil {
		header := fmt.Sprintf("\nimport * as wasm from \"./%s_bg.wasm\";\nexport { initialized } from \"./%s_bg.wasm\";\n", pkgName, pkgName)
		src = src[:loc[0]] + header + src[loc[1]:]
		rep.SetWasmReplaced = true
	}

	rep.ArgumentsFixed = len(argumentsPattern.FindAllStringIndex(src, -1))
	if rep.ArgumentsFixed > 0 {
		src = argumentsPattern.ReplaceAllString(src, "(...args${1}args)")
	}

	return src, rep
}

// Rewrite adapts the binding glue for bundling. Substitutions that find
// nothing are logged and skipped.
func Rewrite(p *Params) (RewriteReport, error) {
	p.stage("rewriting glue")

	path := p.GluePath()
	data, err := os.ReadFile(path)
	if err != nil {
		return RewriteReport{}, errors.Wrap(errors.StageRewrite, errors.KindIO, err, "read glue")
	}

	out, rep := RewriteGlue(string(data), p.Package.Name)
	if !rep.SetWasmReplaced {
		Logger().Warn("glue rewrite skipped", zap.Error(errors.PatternNotFound(setWasmPattern.String())))
	}
	if rep.ArgumentsFixed == 0 {
		Logger().Warn("glue rewrite skipped", zap.Error(errors.PatternNotFound(argumentsPattern.String())))
	}

	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return rep, errors.Wrap(errors.StageRewrite, errors.KindIO, err, "write glue")
	}
	return rep, nil
}
