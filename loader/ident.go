package loader

import (
	"strings"
	"unicode"
)

// reserved holds names that cannot be used as a binding in module code,
// plus the bindings the generated loader declares itself.
var reserved = map[string]struct{}{
	"await": {}, "break": {}, "case": {}, "catch": {}, "class": {}, "const": {},
	"continue": {}, "debugger": {}, "default": {}, "delete": {}, "do": {},
	"else": {}, "enum": {}, "export": {}, "extends": {}, "false": {},
	"finally": {}, "for": {}, "function": {}, "if": {}, "implements": {},
	"import": {}, "in": {}, "instanceof": {}, "interface": {}, "let": {},
	"new": {}, "null": {}, "package": {}, "private": {}, "protected": {},
	"public": {}, "return": {}, "static": {}, "super": {}, "switch": {},
	"this": {}, "throw": {}, "true": {}, "try": {}, "typeof": {}, "var": {},
	"void": {}, "while": {}, "with": {}, "yield": {}, "arguments": {},
	"eval": {},

	"initialized": {}, "$wasm": {}, "$exports": {},
	"WebAssembly": {}, "fetch": {}, "URL": {},
}

// isBindingName reports whether name can be declared with `export let`.
func isBindingName(name string) bool {
	if name == "" {
		return false
	}
	if _, ok := reserved[name]; ok {
		return false
	}
	if strings.HasPrefix(name, "$wasm_") {
		return false
	}
	for i, r := range name {
		switch {
		case r == '$' || r == '_':
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Pc, r)):
		default:
			return false
		}
	}
	return true
}
