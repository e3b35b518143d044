package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Stage indicates which pipeline step produced the error
type Stage string

const (
	StageDiscover Stage = "discover" // workspace metadata and package selection
	StageCompile  Stage = "compile"  // cargo build
	StageGenerate Stage = "generate" // wasm-bindgen
	StageOptimize Stage = "optimize" // wasm-opt and rename map
	StageRewrite  Stage = "rewrite"  // glue source patching
	StageManifest Stage = "manifest" // package.json
	StageCodegen  Stage = "codegen"  // loader generation
	StageBundle   Stage = "bundle"   // esbuild pass
	StageWatch    Stage = "watch"    // directory watching
)

// Kind categorizes the error
type Kind string

const (
	KindAmbiguousPackage  Kind = "ambiguous_package"
	KindSubprocessFailed  Kind = "subprocess_failed"
	KindRenameMapInvalid  Kind = "rename_map_invalid"
	KindPatternNotFound   Kind = "pattern_not_found"
	KindBundlerDiagnostic Kind = "bundler_diagnostic"
	KindInvalidModule     Kind = "invalid_module"
	KindIO                Kind = "io"
)

// Error is the structured error type used throughout the pipeline
type Error struct {
	Cause    error
	Stage    Stage
	Kind     Kind
	Detail   string
	Command  string
	Stderr   string
	ExitCode int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Stage))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Command != "" {
		b.WriteString(": ")
		b.WriteString(e.Command)
		if e.Kind == KindSubprocessFailed {
			fmt.Fprintf(&b, " exited with code %d", e.ExitCode)
		}
	}

	if e.Detail != "" {
		if e.Command != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Stderr != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(e.Stderr, "\n"))
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Stage == t.Stage && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(stage Stage, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Stage: stage,
			Kind:  kind,
		},
	}
}

// Command sets the failing command line
func (b *Builder) Command(cmd string) *Builder {
	b.err.Command = cmd
	return b
}

// ExitCode sets the subprocess exit code
func (b *Builder) ExitCode(code int) *Builder {
	b.err.ExitCode = code
	return b
}

// Stderr sets the captured stderr tail
func (b *Builder) Stderr(s string) *Builder {
	b.err.Stderr = s
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// SubprocessFailed creates a subprocess failure error for a pipeline stage
func SubprocessFailed(stage Stage, command string, exitCode int, stderr string, cause error) *Error {
	return &Error{
		Stage:    stage,
		Kind:     KindSubprocessFailed,
		Command:  command,
		ExitCode: exitCode,
		Stderr:   stderr,
		Cause:    cause,
	}
}

// AmbiguousPackage creates a package selection error
func AmbiguousPackage(detail string) *Error {
	return &Error{
		Stage:  StageDiscover,
		Kind:   KindAmbiguousPackage,
		Detail: detail,
	}
}

// RenameMapInvalid creates an error for an unusable rename side-car file
func RenameMapInvalid(path string, cause error) *Error {
	return &Error{
		Stage:  StageCodegen,
		Kind:   KindRenameMapInvalid,
		Detail: path,
		Cause:  cause,
	}
}

// PatternNotFound creates an error for a glue substitution that did not match
func PatternNotFound(pattern string) *Error {
	return &Error{
		Stage:  StageRewrite,
		Kind:   KindPatternNotFound,
		Detail: fmt.Sprintf("pattern %q not found", pattern),
	}
}

// BundlerDiagnostic creates an error summarizing a bundle pass
func BundlerDiagnostic(errorCount, warningCount int) *Error {
	return &Error{
		Stage:  StageBundle,
		Kind:   KindBundlerDiagnostic,
		Detail: fmt.Sprintf("%d error(s), %d warning(s)", errorCount, warningCount),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(stage Stage, kind Kind, cause error, detail string) *Error {
	return &Error{
		Stage:  stage,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Has reports whether err carries a pipeline error of the given kind.
func Has(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
