// Package loader generates JavaScript modules that fetch and instantiate a
// WebAssembly binary, and the esbuild plugin that serves them.
//
// Importing "foo_bg.wasm" from bundled code yields a module exporting one
// live binding per wasm export plus an `initialized` promise that resolves
// once instantiation is done.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/renamemap"
	"github.com/wippyai/wasm-pack/wasm"
)

type importGroup struct {
	id       string
	original string
	symbols  []wasm.Import
}

// groupImports groups imports by module in first-appearance order.
func groupImports(mod *wasm.Module) []*importGroup {
	modules := mod.ImportModules()
	groups := make([]*importGroup, len(modules))
	index := make(map[string]*importGroup, len(modules))
	for i, name := range modules {
		groups[i] = &importGroup{id: name}
		index[name] = groups[i]
	}
	for _, imp := range mod.Imports {
		g := index[imp.Module]
		g.symbols = append(g.symbols, imp)
	}
	return groups
}

// quote renders s as a JavaScript string literal.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		// strings always encode
		panic(err)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Generate returns loader source for the binary at path. Names are taken
// from the module's own import and export sections and mapped back to
// their originals through names, which may be nil. An export whose name is
// initialized, or repeats an earlier one, is left out.
func Generate(path string, mod *wasm.Module, names *renamemap.Map) string {
	var b strings.Builder

	groups := groupImports(mod)
	for _, g := range groups {
		g.original = names.ModuleName(g.id)
	}

	fmt.Fprintf(&b, "import $wasm_path from %s;\n", quote(path))
	for i, g := range groups {
		fmt.Fprintf(&b, "import * as $wasm_import_%d from %s;\n", i, quote(g.original))
	}

	type binding struct {
		local    string
		original string
		id       string
		aliased  bool
	}
	// The module already exports initialized.
	exported := map[string]bool{"initialized": true}
	bindings := make([]binding, 0, len(mod.Exports))
	for i, exp := range mod.Exports {
		original := names.FunctionName(exp.Name)
		if exported[original] {
			Logger().Warn("skipping export with a taken name",
				zap.String("name", original), zap.String("wire", exp.Name))
			continue
		}
		exported[original] = true

		bd := binding{local: original, original: original, id: exp.Name}
		if !isBindingName(original) {
			bd.local = fmt.Sprintf("$wasm_export_%d", i)
			bd.aliased = true
		}
		bindings = append(bindings, bd)

		if bd.aliased {
			fmt.Fprintf(&b, "let %s;\n", bd.local)
		} else {
			fmt.Fprintf(&b, "export let %s;\n", bd.local)
		}
	}
	for _, bd := range bindings {
		if bd.aliased {
			fmt.Fprintf(&b, "export { %s as %s };\n", bd.local, quote(bd.original))
		}
	}

	b.WriteString("export const initialized = WebAssembly.instantiateStreaming(\n")
	b.WriteString("\tfetch(new URL($wasm_path, import.meta.url), { headers: { accept: \"application/wasm\" } }),\n")
	b.WriteString("\t{\n")
	for i, g := range groups {
		fmt.Fprintf(&b, "\t\t[%s]: {\n", quote(g.id))
		for _, sym := range g.symbols {
			fmt.Fprintf(&b, "\t\t\t[%s]: $wasm_import_%d[%s],\n", quote(sym.Name), i, quote(names.FunctionName(sym.Name)))
		}
		b.WriteString("\t\t},\n")
	}
	b.WriteString("\t},\n")
	b.WriteString(").then(($wasm) => {\n")
	b.WriteString("\tconst $exports = $wasm.instance.exports;\n")
	for _, bd := range bindings {
		fmt.Fprintf(&b, "\t%s = $exports[%s];\n", bd.local, quote(bd.id))
	}
	b.WriteString("});\n")

	return b.String()
}
