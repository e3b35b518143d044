package loader_test

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/wippyai/wasm-pack/loader"
	"github.com/wippyai/wasm-pack/renamemap"
	"github.com/wippyai/wasm-pack/wasm"
	"github.com/wippyai/wasm-pack/wasm/wasmtest"
)

func funcImport(module, name string) wasm.Import {
	return wasm.Import{Module: module, Name: name, Desc: wasm.ImportDesc{Kind: wasm.KindFunc}}
}

// demoModule is a binary as wasm-bindgen leaves it, before optimization.
func demoModule() *wasmtest.Module {
	return &wasmtest.Module{
		Types: []wasmtest.FuncType{
			{Params: []wasm.ValType{wasm.ValI32}},
			{Results: []wasm.ValType{wasm.ValI32}},
		},
		Imports: []wasm.Import{
			funcImport("./demo_bg.js", "__wbg_alert_1"),
			funcImport("./demo_bg.js", "__wbg_log_2"),
		},
		Funcs:    []uint32{1},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Exports: []wasm.Export{
			{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
			{Name: "greet", Kind: wasm.KindFunc, Idx: 2},
		},
		Code: []wasmtest.FuncBody{
			{Code: []byte{wasmtest.OpI32Const, 7, wasmtest.OpEnd}},
		},
	}
}

// optimizedModule is demoModule after wasm-opt minified every name.
func optimizedModule() (*wasmtest.Module, *renamemap.Map) {
	m := demoModule()
	m.Imports = []wasm.Import{
		funcImport("a", "a"),
		funcImport("a", "b"),
	}
	m.Exports = []wasm.Export{
		{Name: "d", Kind: wasm.KindMemory, Idx: 0},
		{Name: "c", Kind: wasm.KindFunc, Idx: 2},
	}
	names := renamemap.New("demo", map[string]string{
		"a": "__wbg_alert_1",
		"b": "__wbg_log_2",
		"c": "greet",
		"d": "memory",
	})
	return m, names
}

func TestGenerateGolden(t *testing.T) {
	m := demoModule()
	m.Imports = append(m.Imports, funcImport("env", "abort"))

	got := loader.Generate("/srv/pkg/demo_bg.wasm", m.Parsed(), nil)
	want := `import $wasm_path from "/srv/pkg/demo_bg.wasm";
import * as $wasm_import_0 from "./demo_bg.js";
import * as $wasm_import_1 from "env";
export let memory;
export let greet;
export const initialized = WebAssembly.instantiateStreaming(
	fetch(new URL($wasm_path, import.meta.url), { headers: { accept: "application/wasm" } }),
	{
		["./demo_bg.js"]: {
			["__wbg_alert_1"]: $wasm_import_0["__wbg_alert_1"],
			["__wbg_log_2"]: $wasm_import_0["__wbg_log_2"],
		},
		["env"]: {
			["abort"]: $wasm_import_1["abort"],
		},
	},
).then(($wasm) => {
	const $exports = $wasm.instance.exports;
	memory = $exports["memory"];
	greet = $exports["greet"];
});
`
	if got != want {
		t.Errorf("Generate mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestGenerateCounts(t *testing.T) {
	m := &wasm.Module{
		Imports: []wasm.Import{
			funcImport("b", "x"),
			funcImport("a", "y"),
			funcImport("b", "z"),
			funcImport("c", "w"),
			funcImport("a", "v"),
		},
		Exports: []wasm.Export{
			{Name: "one", Kind: wasm.KindFunc},
			{Name: "two", Kind: wasm.KindFunc},
			{Name: "three", Kind: wasm.KindGlobal},
		},
	}

	src := loader.Generate("/x.wasm", m, nil)

	if n := strings.Count(src, "import * as $wasm_import_"); n != 3 {
		t.Errorf("namespace imports = %d, want 3", n)
	}
	if n := strings.Count(src, "export let "); n != 3 {
		t.Errorf("export bindings = %d, want 3", n)
	}

	// first appearance order: b, a, c
	ib := strings.Index(src, `from "b"`)
	ia := strings.Index(src, `from "a"`)
	ic := strings.Index(src, `from "c"`)
	if !(ib < ia && ia < ic) {
		t.Errorf("modules out of first-appearance order:\n%s", src)
	}
	if !strings.Contains(src, "\t\t[\"b\"]: {\n\t\t\t[\"x\"]: $wasm_import_0[\"x\"],\n\t\t\t[\"z\"]: $wasm_import_0[\"z\"],\n\t\t},") {
		t.Errorf("module b entries not grouped:\n%s", src)
	}
}

func TestGenerateNoImports(t *testing.T) {
	m := &wasm.Module{Exports: []wasm.Export{{Name: "run", Kind: wasm.KindFunc}}}
	src := loader.Generate("/x.wasm", m, nil)
	if strings.Contains(src, "$wasm_import_") {
		t.Errorf("unexpected namespace import:\n%s", src)
	}
	if !strings.Contains(src, "\t{\n\t},\n") {
		t.Errorf("expected empty import object:\n%s", src)
	}
}

func TestGenerateAliasesInvalidNames(t *testing.T) {
	m := &wasm.Module{
		Exports: []wasm.Export{
			{Name: "ok_name", Kind: wasm.KindFunc},
			{Name: "default", Kind: wasm.KindFunc},
			{Name: "with-dash", Kind: wasm.KindFunc},
			{Name: "fetch", Kind: wasm.KindFunc},
			{Name: "9lives", Kind: wasm.KindFunc},
		},
	}

	src := loader.Generate("/x.wasm", m, nil)

	for _, want := range []string{
		"export let ok_name;\n",
		"let $wasm_export_1;\n",
		"export { $wasm_export_1 as \"default\" };\n",
		"export { $wasm_export_2 as \"with-dash\" };\n",
		"export { $wasm_export_3 as \"fetch\" };\n",
		"export { $wasm_export_4 as \"9lives\" };\n",
		"\t$wasm_export_2 = $exports[\"with-dash\"];\n",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q in:\n%s", want, src)
		}
	}
	if strings.Contains(src, "export let default") {
		t.Error("reserved word declared as binding")
	}
}

func TestGenerateSkipsTakenNames(t *testing.T) {
	m := &wasm.Module{
		Exports: []wasm.Export{
			{Name: "a", Kind: wasm.KindFunc},
			{Name: "b", Kind: wasm.KindFunc},
			{Name: "c", Kind: wasm.KindFunc},
		},
	}
	names := renamemap.New("demo", map[string]string{
		"a": "initialized",
		"b": "greet",
		"c": "greet",
	})

	src := loader.Generate("/x.wasm", m, names)

	if strings.Contains(src, `$exports["a"]`) || strings.Contains(src, `$exports["c"]`) {
		t.Errorf("taken names still bound:\n%s", src)
	}
	if n := strings.Count(src, "export let greet;"); n != 1 {
		t.Errorf("greet declared %d times:\n%s", n, src)
	}
	if !strings.Contains(src, "\tgreet = $exports[\"b\"];\n") {
		t.Errorf("first greet not bound:\n%s", src)
	}
}

func TestGeneratedLoaderTransforms(t *testing.T) {
	m := &wasm.Module{
		Imports: []wasm.Import{funcImport("./demo_bg.js", "log"), funcImport("env", "abort")},
		Exports: []wasm.Export{
			{Name: "initialized", Kind: wasm.KindFunc},
			{Name: "default", Kind: wasm.KindFunc},
			{Name: "with-dash", Kind: wasm.KindFunc},
			{Name: "fetch", Kind: wasm.KindFunc},
			{Name: "$exports", Kind: wasm.KindFunc},
			{Name: "$wasm_path", Kind: wasm.KindFunc},
			{Name: "memory", Kind: wasm.KindMemory},
		},
	}

	src := loader.Generate("/x.wasm", m, nil)
	res := api.Transform(src, api.TransformOptions{Loader: api.LoaderJS, Format: api.FormatESModule})
	if len(res.Errors) > 0 {
		t.Fatalf("generated loader does not parse: %v\n%s", res.Errors, src)
	}
}

func TestGenerateQuotesStrings(t *testing.T) {
	m := &wasm.Module{Imports: []wasm.Import{funcImport(`we"ird<mod>`, "n")}}
	src := loader.Generate(`C:\pkg\x.wasm`, m, nil)
	if !strings.Contains(src, `import $wasm_path from "C:\\pkg\\x.wasm";`) {
		t.Errorf("path not escaped:\n%s", src)
	}
	if !strings.Contains(src, `from "we\"ird<mod>";`) {
		t.Errorf("module not escaped:\n%s", src)
	}
}

var wireNames = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^(\t+)\["[^"]*"\]:`),
	regexp.MustCompile(`\$exports\["[^"]*"\]`),
}

func stripWireNames(src string) string {
	src = wireNames[0].ReplaceAllString(src, "${1}[WIRE]:")
	return wireNames[1].ReplaceAllString(src, "$$exports[WIRE]")
}

func TestGenerateOptimizedMatchesOriginal(t *testing.T) {
	plain := loader.Generate("/p/demo_bg.wasm", demoModule().Parsed(), nil)

	m, names := optimizedModule()
	optimized := loader.Generate("/p/demo_bg.wasm", m.Parsed(), names)

	if plain == optimized {
		t.Fatal("wire names should differ")
	}
	if stripWireNames(plain) != stripWireNames(optimized) {
		t.Errorf("loaders differ beyond wire names\nplain:\n%s\noptimized:\n%s", plain, optimized)
	}
	if !strings.Contains(optimized, "\t\t[\"a\"]: {\n\t\t\t[\"a\"]: $wasm_import_0[\"__wbg_alert_1\"],") {
		t.Errorf("import table not keyed by wire names:\n%s", optimized)
	}
	if !strings.Contains(optimized, "\tgreet = $exports[\"c\"];") {
		t.Errorf("export not bound through wire name:\n%s", optimized)
	}
}

func TestLoadIgnoresUnusableMaps(t *testing.T) {
	m, _ := optimizedModule()
	dir := t.TempDir()
	path := filepath.Join(dir, "demo_bg.wasm")
	if err := os.WriteFile(path, m.Encode(), 0o644); err != nil {
		t.Fatal(err)
	}
	sidecar := renamemap.PathFor(path)

	missing, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load without map: %v", err)
	}

	if err := os.WriteFile(sidecar, []byte(`{"module":{"a":"./demo_bg.js"},"functions":{"a":"x"},"version":"xnuk-r0"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	mismatched, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load with foreign version: %v", err)
	}

	if err := os.WriteFile(sidecar, []byte(`{"module":{},"functions":{},"version":"xnuk-r1"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	empty, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load with empty map: %v", err)
	}

	if err := os.WriteFile(sidecar, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	malformed, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load with malformed map: %v", err)
	}

	if missing != mismatched || missing != malformed || missing != empty {
		t.Errorf("outputs differ:\nmissing:\n%s\nmismatched:\n%s\nempty:\n%s", missing, mismatched, empty)
	}
}

func TestLoadInvalidBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wasm")
	if err := os.WriteFile(path, []byte("not wasm"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loader.Load(path); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := loader.Load(filepath.Join(t.TempDir(), "absent.wasm")); err == nil {
		t.Fatal("expected read error")
	}
}
