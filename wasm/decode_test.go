package wasm_test

import (
	"errors"
	"reflect"
	"runtime"
	"testing"

	"github.com/wippyai/wasm-pack/wasm"
	"github.com/wippyai/wasm-pack/wasm/wasmtest"
)

func ptrTo[T any](v T) *T { return &v }

// glueModule mirrors the shape wasm-bindgen emits: several imports from the
// glue module, one exported memory and a couple of exported functions.
func glueModule() *wasmtest.Module {
	return &wasmtest.Module{
		Types: []wasmtest.FuncType{
			{Params: []wasm.ValType{wasm.ValI32}},
			{Results: []wasm.ValType{wasm.ValI32}},
		},
		Imports: []wasm.Import{
			{Module: "./demo_bg.js", Name: "__wbg_alert_1", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
			{Module: "./demo_bg.js", Name: "__wbg_log_2", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
			{Module: "env", Name: "abort", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
		},
		Funcs:    []uint32{1},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Exports: []wasm.Export{
			{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
			{Name: "greet", Kind: wasm.KindFunc, Idx: 3},
		},
		Code: []wasmtest.FuncBody{
			{Code: []byte{wasmtest.OpI32Const, 7, wasmtest.OpEnd}},
		},
	}
}

func TestParseMinimalModule(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(m.Imports) != 0 || len(m.Exports) != 0 {
		t.Errorf("expected empty module, got %d imports %d exports", len(m.Imports), len(m.Exports))
	}
}

func TestParseInvalidHeader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"invalid magic", []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}, wasm.ErrInvalidMagic},
		{"invalid version", []byte{0x00, 0x61, 0x73, 0x6D, 0x02, 0x00, 0x00, 0x00}, wasm.ErrInvalidVersion},
		{"truncated", []byte{0x00, 0x61, 0x73}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wasm.ParseModule(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseImportsAndExports(t *testing.T) {
	m := glueModule()
	parsed, err := wasm.ParseModule(m.Encode())
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}

	if len(parsed.Imports) != 3 {
		t.Fatalf("expected 3 imports, got %d", len(parsed.Imports))
	}
	for i, imp := range parsed.Imports {
		want := m.Imports[i]
		if imp.Module != want.Module || imp.Name != want.Name || imp.Desc.Kind != want.Desc.Kind {
			t.Errorf("import %d = %+v, want %+v", i, imp, want)
		}
	}
	if !reflect.DeepEqual(parsed.Exports, m.Exports) {
		t.Errorf("exports = %+v, want %+v", parsed.Exports, m.Exports)
	}
	if got := parsed.ImportModules(); !reflect.DeepEqual(got, []string{"./demo_bg.js", "env"}) {
		t.Errorf("ImportModules = %v", got)
	}
	if parsed.NumImportedFuncs() != 3 {
		t.Errorf("NumImportedFuncs = %d", parsed.NumImportedFuncs())
	}
	if !reflect.DeepEqual(parsed, m.Parsed()) {
		t.Errorf("parsed = %+v, want %+v", parsed, m.Parsed())
	}
}

func TestParseAllImportKinds(t *testing.T) {
	m := &wasmtest.Module{
		Types: []wasmtest.FuncType{{}},
		Imports: []wasm.Import{
			{Module: "env", Name: "f", Desc: wasm.ImportDesc{Kind: wasm.KindFunc}},
			{Module: "env", Name: "t", Desc: wasm.ImportDesc{Kind: wasm.KindTable, Table: &wasm.TableType{
				ElemType: byte(wasm.ValExtern), Limits: wasm.Limits{Min: 1, Max: ptrTo(uint64(10))},
			}}},
			{Module: "env", Name: "m", Desc: wasm.ImportDesc{Kind: wasm.KindMemory, Memory: &wasm.MemoryType{
				Limits: wasm.Limits{Min: 2, Shared: true, Max: ptrTo(uint64(4))},
			}}},
			{Module: "env", Name: "m64", Desc: wasm.ImportDesc{Kind: wasm.KindMemory, Memory: &wasm.MemoryType{
				Limits: wasm.Limits{Min: 1 << 33, Memory64: true},
			}}},
			{Module: "env", Name: "g", Desc: wasm.ImportDesc{Kind: wasm.KindGlobal, Global: &wasm.GlobalType{
				ValType: wasm.ValI64, Mutable: true,
			}}},
			{Module: "env", Name: "gref", Desc: wasm.ImportDesc{Kind: wasm.KindGlobal, Global: &wasm.GlobalType{
				ValType: wasm.ValRefNull, RefType: &wasm.RefType{Nullable: true, HeapType: -17},
			}}},
			{Module: "env", Name: "tag", Desc: wasm.ImportDesc{Kind: wasm.KindTag, Tag: &wasm.TagType{TypeIdx: 0}}},
		},
	}

	parsed, err := wasm.ParseModule(m.Encode())
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if !reflect.DeepEqual(parsed.Imports, m.Imports) {
		t.Errorf("imports mismatch:\n got %+v\nwant %+v", parsed.Imports, m.Imports)
	}
}

func TestParseSkipsCustomSections(t *testing.T) {
	data := glueModule().Encode()
	// custom section "name" with two payload bytes appended at the end
	data = append(data, wasm.SectionCustom, 7, 4, 'n', 'a', 'm', 'e', 0xAA, 0xBB)

	parsed, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(parsed.Exports) != 2 {
		t.Errorf("expected 2 exports, got %d", len(parsed.Exports))
	}
}

func TestParseRejectsOutOfOrderSections(t *testing.T) {
	header := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	// export section (empty) followed by import section (empty)
	data := append(header, wasm.SectionExport, 1, 0, wasm.SectionImport, 1, 0)
	if _, err := wasm.ParseModule(data); err == nil {
		t.Error("expected out-of-order error")
	}
}

func TestParseRejectsUnknownSection(t *testing.T) {
	header := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	data := append(header, 0x42, 0)
	if _, err := wasm.ParseModule(data); err == nil {
		t.Error("expected unknown section error")
	}
}

func TestParseTruncatedSection(t *testing.T) {
	data := glueModule().Encode()
	if _, err := wasm.ParseModule(data[:len(data)-3]); err == nil {
		t.Error("expected error for truncated section")
	}
}

func TestParseOversizedCount(t *testing.T) {
	header := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	tests := []struct {
		name string
		data []byte
	}{
		// 5,000,000 imports declared in a four byte section
		{"imports", append(header, wasm.SectionImport, 4, 0xC0, 0x96, 0xB1, 0x02)},
		// 2^32-1 exports declared in a five byte section
		{"exports", append(header, wasm.SectionExport, 5, 0xFF, 0xFF, 0xFF, 0xFF, 0x0F)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			_, err := wasm.ParseModule(tt.data)
			runtime.ReadMemStats(&after)

			if err == nil {
				t.Fatal("expected truncation error")
			}
			if grown := after.TotalAlloc - before.TotalAlloc; grown > 1<<20 {
				t.Errorf("allocated %d bytes for a %d byte input", grown, len(tt.data))
			}
		})
	}
}

func TestParseInvalidUTF8Name(t *testing.T) {
	header := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	// export section: 1 export, name length 1 with invalid byte 0xFF
	data := append(header, wasm.SectionExport, 5, 1, 1, 0xFF, wasm.KindFunc, 0)
	if _, err := wasm.ParseModule(data); err == nil {
		t.Error("expected invalid UTF-8 error")
	}
}

func TestKindName(t *testing.T) {
	tests := map[byte]string{
		wasm.KindFunc:   "function",
		wasm.KindTable:  "table",
		wasm.KindMemory: "memory",
		wasm.KindGlobal: "global",
		wasm.KindTag:    "tag",
		9:               "unknown",
	}
	for kind, want := range tests {
		if got := wasm.KindName(kind); got != want {
			t.Errorf("KindName(%d) = %q, want %q", kind, got, want)
		}
	}
}
