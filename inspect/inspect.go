// Package inspect summarizes the interface of a WebAssembly binary: its
// imports grouped by module, its exports, and function signatures.
package inspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/renamemap"
	"github.com/wippyai/wasm-pack/wasm"
)

// Symbol is one imported or exported item.
type Symbol struct {
	ID        string // name in the binary
	Original  string // name before minification, equal to ID without a map
	Kind      string
	Signature string // empty for non-functions or when compilation failed
}

// Module groups the imports of one module specifier.
type Module struct {
	ID       string
	Original string
	Symbols  []Symbol
}

// Report describes a binary.
type Report struct {
	Modules []Module
	Exports []Symbol
	// Unchecked is set when the runtime rejected the binary and signatures
	// could not be resolved.
	Unchecked error
	Size      int
}

// Inspect reads the import and export sections of data and resolves
// function signatures by compiling it with wazero. names may be nil.
func Inspect(ctx context.Context, data []byte, names *renamemap.Map) (*Report, error) {
	mod, err := wasm.ParseModule(data)
	if err != nil {
		return nil, errors.Wrap(errors.StageCodegen, errors.KindInvalidModule, err, "parse module")
	}

	rep := &Report{Size: len(data)}
	importSigs, exportSigs, err := signatures(ctx, data)
	switch {
	case err != nil:
		rep.Unchecked = err
	case len(importSigs) != mod.NumImportedFuncs():
		rep.Unchecked = fmt.Errorf("runtime sees %d imported functions, import section declares %d",
			len(importSigs), mod.NumImportedFuncs())
		importSigs = nil
	}

	index := make(map[string]int)
	for i, name := range mod.ImportModules() {
		index[name] = i
		rep.Modules = append(rep.Modules, Module{ID: name, Original: names.ModuleName(name)})
	}
	fn := 0
	for _, imp := range mod.Imports {
		i := index[imp.Module]
		sym := Symbol{ID: imp.Name, Original: names.FunctionName(imp.Name), Kind: wasm.KindName(imp.Desc.Kind)}
		if imp.Desc.Kind == wasm.KindFunc {
			if fn < len(importSigs) {
				sym.Signature = importSigs[fn]
			}
			fn++
		}
		rep.Modules[i].Symbols = append(rep.Modules[i].Symbols, sym)
	}

	for _, exp := range mod.Exports {
		rep.Exports = append(rep.Exports, Symbol{
			ID:        exp.Name,
			Original:  names.FunctionName(exp.Name),
			Kind:      wasm.KindName(exp.Kind),
			Signature: exportSigs[exp.Name],
		})
	}
	return rep, nil
}

func signatures(ctx context.Context, data []byte) ([]string, map[string]string, error) {
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer r.Close(ctx)

	cm, err := r.CompileModule(ctx, data)
	if err != nil {
		return nil, nil, fmt.Errorf("compile: %w", err)
	}
	defer cm.Close(ctx)

	var imports []string
	for _, def := range cm.ImportedFunctions() {
		imports = append(imports, Signature(def))
	}
	exports := make(map[string]string)
	for name, def := range cm.ExportedFunctions() {
		exports[name] = Signature(def)
	}
	return imports, exports, nil
}

// Signature renders a function type as "(i32, i32) -> i64".
func Signature(def api.FunctionDefinition) string {
	return formatTypes(def.ParamTypes()) + " -> " + formatTypes(def.ResultTypes())
}

func formatTypes(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return "(" + strings.Join(names, ", ") + ")"
}
