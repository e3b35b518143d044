// Package wasm reads the structural metadata of WebAssembly binary modules.
//
// The loader generator only needs a module's import and export descriptor
// tables, so ParseModule decodes those two sections and skips every other
// section after checking the header and the canonical section order.
//
// # Parsing
//
//	data, _ := os.ReadFile("demo_bg.wasm")
//	module, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, imp := range module.Imports {
//	    fmt.Println(imp.Module, imp.Name, wasm.KindName(imp.Desc.Kind))
//	}
//
// Imports group by module name:
//
//	for _, name := range module.ImportModules() {
//	    fmt.Println(name)
//	}
//
// Test binaries are built with the wasmtest package.
package wasm
