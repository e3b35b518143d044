package pack_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/pack"
	"github.com/wippyai/wasm-pack/renamemap"
	"github.com/wippyai/wasm-pack/runner/runnertest"
	"github.com/wippyai/wasm-pack/workspace"
)

const glueSource = `let wasm;
export function __wbg_set_wasm(val) {
    wasm = val;
}

const lTextDecoder = typeof TextDecoder === 'undefined' ? (0, module.require)('util').TextDecoder : TextDecoder;

export function __wbg_log_1d3ae0273d8f4f8a() { return logError(function (arg0) {
    console.log(getObject(arg0));
}, arguments) };

export function __wbg_now_9f1e2a3b() { return handleError(function () {
    return Date.now();
}, arguments) };
`

func testParams(t *testing.T, fake *runnertest.Fake) *pack.Params {
	t.Helper()
	dir := t.TempDir()
	return &pack.Params{
		Runner:    fake,
		TargetDir: filepath.Join(dir, "target"),
		OutDir:    filepath.Join(dir, "dist", "wasm-pkg"),
		Package: workspace.Package{
			ID:      "path+file:///ws/hangul-engine#0.2.0",
			Name:    "hangul-engine",
			Version: "0.2.0",
			License: "GPL-3.0",
		},
	}
}

// bindgen writes the files wasm-bindgen would produce into --out-dir.
func bindgen(t *testing.T) runnertest.Handler {
	return func(_ context.Context, args []string) ([]byte, error) {
		var outDir, outName string
		for i := 0; i < len(args)-1; i++ {
			switch args[i] {
			case "--out-dir":
				outDir = args[i+1]
			case "--out-name":
				outName = args[i+1]
			}
		}
		files := map[string]string{
			outName + "_bg.wasm": "\x00asm\x01\x00\x00\x00",
			outName + "_bg.js":   glueSource,
			outName + ".js":      "export * from \"./" + outName + "_bg.js\";\n",
			outName + ".d.ts":    "export function greet(): void;\n",
		}
		for name, content := range files {
			if err := os.WriteFile(filepath.Join(outDir, name), []byte(content), 0o644); err != nil {
				t.Errorf("bindgen fixture: %v", err)
			}
		}
		return nil, nil
	}
}

func TestCompileArgs(t *testing.T) {
	p := testParams(t, runnertest.New())

	got := strings.Join(pack.CompileArgs(p), " ")
	want := "build --lib --target=wasm32-unknown-unknown --package=hangul-engine --release"
	if got != want {
		t.Errorf("CompileArgs() = %q, want %q", got, want)
	}

	p.CI = true
	args := pack.CompileArgs(p)
	if args[len(args)-1] != "--locked" {
		t.Errorf("CI build must be locked: %v", args)
	}
}

func TestGenerateArgs(t *testing.T) {
	p := testParams(t, runnertest.New())
	args := pack.GenerateArgs(p)

	wantArtifact := filepath.Join(p.TargetDir, "wasm32-unknown-unknown", "release", "hangul_engine.wasm")
	if args[len(args)-1] != wantArtifact {
		t.Errorf("artifact = %q, want %q", args[len(args)-1], wantArtifact)
	}
	for _, flag := range []string{"--typescript", "--target=bundler", "--omit-default-module-path", "--encode-into=always"} {
		found := false
		for _, a := range args {
			if a == flag {
				found = true
			}
		}
		if !found {
			t.Errorf("missing flag %s in %v", flag, args)
		}
	}
}

func TestCompileFailure(t *testing.T) {
	fake := runnertest.New().Fail("cargo", 101, "error[E0425]: cannot find value `x`")
	p := testParams(t, fake)

	_, err := pack.Build(context.Background(), p)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, errors.New(errors.StageCompile, errors.KindSubprocessFailed).Build()) {
		t.Errorf("expected compile failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "E0425") {
		t.Errorf("stderr missing from error: %v", err)
	}
	if fake.Count("wasm-bindgen") != 0 {
		t.Error("generate must not run after a failed compile")
	}
}

func TestBuild(t *testing.T) {
	fake := runnertest.New().
		Output("cargo", "").
		Handle("wasm-bindgen", bindgen(t)).
		Output("wasm-opt", "__wbg_log_1d3ae0273d8f4f8a => a\n__wbg_now_9f1e2a3b => b\ngreet => c\n")
	p := testParams(t, fake)

	res, err := pack.Build(context.Background(), p)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if res.Renames != 3 {
		t.Errorf("Renames = %d, want 3", res.Renames)
	}
	if !res.Rewrite.SetWasmReplaced || res.Rewrite.ArgumentsFixed != 2 {
		t.Errorf("unexpected rewrite report: %+v", res.Rewrite)
	}

	m, err := renamemap.Load(renamemap.PathFor(p.BinaryPath()))
	if err != nil {
		t.Fatalf("rename map not written: %v", err)
	}
	if m.ModuleName("a") != "./hangul-engine_bg.js" {
		t.Errorf("module original = %q", m.ModuleName("a"))
	}
	if m.FunctionName("c") != "greet" {
		t.Errorf("FunctionName(c) = %q", m.FunctionName("c"))
	}

	glue, err := os.ReadFile(p.GluePath())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(glue), "__wbg_set_wasm") {
		t.Error("set_wasm block should be replaced")
	}
	if !strings.Contains(string(glue), `export { initialized } from "./hangul-engine_bg.wasm";`) {
		t.Errorf("missing initialized re-export:\n%s", glue)
	}

	types, err := os.ReadFile(p.TypesPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(types) != "export function greet(): void;\n" {
		t.Errorf("type declarations modified: %q", types)
	}

	var manifest map[string]any
	data, err := os.ReadFile(p.ManifestPath())
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("package.json: %v", err)
	}
	if manifest["type"] != "module" || manifest["license"] != "GPL-3.0" {
		t.Errorf("unexpected manifest: %v", manifest)
	}
	if manifest["module"] != "./hangul-engine_bg.js" || manifest["types"] != "./hangul-engine.d.ts" {
		t.Errorf("unexpected entry points: %v", manifest)
	}

	calls := fake.Calls()
	if len(calls) != 3 || calls[0].Name != "cargo" || calls[1].Name != "wasm-bindgen" || calls[2].Name != "wasm-opt" {
		t.Errorf("unexpected call order: %v", calls)
	}
	if !calls[2].Read {
		t.Error("wasm-opt output must be captured")
	}
}

func TestOptimizeWithoutRenamesRemovesStaleMap(t *testing.T) {
	fake := runnertest.New().Output("wasm-opt", "")
	p := testParams(t, fake)
	if err := os.MkdirAll(p.OutDir, 0o755); err != nil {
		t.Fatal(err)
	}

	stale := renamemap.PathFor(p.BinaryPath())
	if err := renamemap.New("hangul-engine", map[string]string{"a": "old"}).Write(stale); err != nil {
		t.Fatal(err)
	}

	m, err := pack.Optimize(context.Background(), p)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if m != nil {
		t.Errorf("expected no map, got %+v", m)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale map should be removed, stat err = %v", err)
	}
}

func TestOptimizeFailure(t *testing.T) {
	fake := runnertest.New().Fail("wasm-opt", 1, "[wasm-validator error]")
	p := testParams(t, fake)

	_, err := pack.Optimize(context.Background(), p)
	if !errors.Is(err, errors.New(errors.StageOptimize, errors.KindSubprocessFailed).Build()) {
		t.Errorf("expected optimize failure, got %v", err)
	}
}

func TestRewriteGlueNoMatch(t *testing.T) {
	src := "export function plain() {}\n"
	out, rep := pack.RewriteGlue(src, "x")
	if out != src {
		t.Errorf("unmatched glue must be unchanged, got %q", out)
	}
	if rep.SetWasmReplaced || rep.ArgumentsFixed != 0 {
		t.Errorf("unexpected report %+v", rep)
	}
}

func TestRewriteGlueSetWasmParameter(t *testing.T) {
	for _, param := range []string{"val", "instance", "v0"} {
		src := "let wasm;\nexport function __wbg_set_wasm(" + param + ") {\n    wasm = " + param + ";\n}\nexport const x = 1;\n"
		out, rep := pack.RewriteGlue(src, "demo")
		if !rep.SetWasmReplaced {
			t.Errorf("%s: setter not replaced:\n%s", param, out)
			continue
		}
		if strings.Contains(out, "__wbg_set_wasm") {
			t.Errorf("%s: setter left behind:\n%s", param, out)
		}
	}
}

func TestRewriteGlueArguments(t *testing.T) {
	out, rep := pack.RewriteGlue(glueSource, "hangul-engine")
	if rep.ArgumentsFixed != 2 {
		t.Fatalf("ArgumentsFixed = %d, want 2", rep.ArgumentsFixed)
	}
	if strings.Contains(out, "arguments") {
		t.Errorf("arguments still forwarded:\n%s", out)
	}
	want := "export function __wbg_log_1d3ae0273d8f4f8a(...args) { return logError(function (arg0) {\n    console.log(getObject(arg0));\n}, args) };"
	if !strings.Contains(out, want) {
		t.Errorf("missing rewritten wrapper:\n%s", out)
	}
	if !strings.HasPrefix(out, "\nimport * as wasm from \"./hangul-engine_bg.wasm\";\n") {
		t.Errorf("header not at start:\n%s", out)
	}
}

func TestRewriteMissingGlue(t *testing.T) {
	p := testParams(t, runnertest.New())
	if _, err := pack.Rewrite(p); err == nil {
		t.Fatal("expected read error")
	}
}

func TestManifestOmitsEmptyLicense(t *testing.T) {
	p := testParams(t, runnertest.New())
	p.Package.License = ""
	if err := os.MkdirAll(p.OutDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := pack.WriteManifest(p); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}
	data, err := os.ReadFile(p.ManifestPath())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "license") {
		t.Errorf("license should be omitted:\n%s", data)
	}
	if !strings.Contains(string(data), "\n  \"sideEffects\": [\n    \"./hangul-engine.js\"\n  ]") {
		t.Errorf("unexpected layout:\n%s", data)
	}
}
