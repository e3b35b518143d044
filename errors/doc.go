// Package errors provides structured error types for the wasm-pack pipeline.
//
// Errors are categorized by Stage (which pipeline step failed) and Kind
// (error category). Subprocess failures additionally carry the command line,
// the exit code and the tail of the tool's stderr.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.StageCompile, errors.KindSubprocessFailed).
//		Command("cargo build --release").
//		ExitCode(101).
//		Stderr(tail).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.SubprocessFailed(errors.StageOptimize, "wasm-opt ...", 1, tail, cause)
//	err := errors.AmbiguousPackage("choose one of: a, b")
//
// All errors implement the standard error interface and support errors.Is/As.
// Two errors match under errors.Is when their stage and kind are equal.
package errors
