// Package wasmpack builds Rust WebAssembly crates into browser-ready bundles.
//
// The pipeline locates the cdylib crate of a cargo workspace, compiles it,
// extracts JavaScript glue with wasm-bindgen, shrinks the binary with
// wasm-opt and bundles the web front end with esbuild. Imports of ".wasm"
// files are replaced by generated loader modules that fetch and
// instantiate the binary, restoring names the optimizer minified.
//
// # Architecture Overview
//
//	wasmpack/
//	├── cmd/wasmpack/    CLI: one-shot build, watch and serve, pack, inspect
//	├── orchestrator/    One-shot and watch pipelines, progress events
//	├── workspace/       cargo metadata query and package selection
//	├── pack/            cargo build, wasm-bindgen, wasm-opt, glue rewrite, package.json
//	├── renamemap/       Side-car file mapping minified names to originals
//	├── loader/          Loader codegen and the esbuild plugin serving it
//	├── bundle/          esbuild build and serve, HTML trimming
//	├── debounce/        Coalescing of rebuild triggers
//	├── watcher/         Recursive fsnotify directory watcher
//	├── inspect/         Import/export listing with wazero signatures
//	├── wasm/            Import and export section decoding, module encoding
//	├── runner/          Subprocess execution with stderr capture
//	├── config/          viper-backed settings
//	└── errors/          Structured error types
//
// # Quick Start
//
// One minified build into dist/wasm-pkg and dist/web:
//
//	wasmpack
//
// Rebuild on change and serve on port 8080:
//
//	wasmpack 8080
//
// From Go:
//
//	cfg, err := config.Load(config.New(), ".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := orchestrator.New(cfg, logger).OneShot(ctx, cfg.OutDir); err != nil {
//	    log.Fatal(err)
//	}
//
// # Generated Loader
//
// For a binary importing from "./engine_bg.js" and exporting greet, an
// import of engine_bg.wasm resolves to:
//
//	import $wasm_path from "/abs/engine_bg.wasm";
//	import * as $wasm_import_0 from "./engine_bg.js";
//	export let greet;
//	export const initialized = WebAssembly.instantiateStreaming(...)
//
// Code must await initialized before calling any export.
package wasmpack
