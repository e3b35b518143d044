// Package renamemap records the names wasm-opt minified so the loader can
// rebuild the import object under the original names.
//
// The side-car file lives next to the optimized binary as
// "<binary>.renamed.json". Readers treat every defect in that file as if
// it were absent: a bad map must never break a bundle.
package renamemap

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wippyai/wasm-pack/errors"
)

// Version tags the side-car schema.
const Version = "xnuk-r1"

// Suffix is appended to the binary path to name the side-car file.
const Suffix = ".renamed.json"

// ModuleKey is the name wasm-opt gives the single import module. The
// optimizer does not report this rename, so it is fixed.
const ModuleKey = "a"

const separator = " => "

// Map holds renamed → original names.
type Map struct {
	Module    map[string]string `json:"module"`
	Functions map[string]string `json:"functions"`
	Version   string            `json:"version"`
}

// PathFor returns the side-car path for a binary.
func PathFor(wasmPath string) string {
	return wasmPath + Suffix
}

// ParseReport extracts renames from optimizer output. Each line of the form
// "<original> => <renamed>" contributes one entry, split on the last
// separator with both sides trimmed. Other lines are ignored.
func ParseReport(output []byte) map[string]string {
	renames := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(output))
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	for sc.Scan() {
		line := sc.Text()
		i := strings.LastIndex(line, separator)
		if i < 0 {
			continue
		}
		original := strings.TrimSpace(line[:i])
		renamed := strings.TrimSpace(line[i+len(separator):])
		renames[renamed] = original
	}
	return renames
}

// New builds a map for the given package from parsed renames.
func New(pkgName string, functions map[string]string) *Map {
	return &Map{
		Module:    map[string]string{ModuleKey: "./" + pkgName + "_bg.js"},
		Functions: functions,
		Version:   Version,
	}
}

// Encode writes m as two-space indented JSON.
func (m *Map) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(m)
}

// Write stores m at path.
func (m *Map) Write(path string) error {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Remove deletes a side-car file left by an earlier build.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Decode strictly parses a side-car document. Unknown fields, missing
// sections and foreign versions are rejected.
func Decode(data []byte) (*Map, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var m Map
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after rename map")
	}
	if m.Version != Version {
		return nil, fmt.Errorf("unsupported rename map version %q", m.Version)
	}
	if m.Module == nil {
		return nil, fmt.Errorf("rename map has no module section")
	}
	if m.Functions == nil {
		return nil, fmt.Errorf("rename map has no functions section")
	}
	return &m, nil
}

// Load reads and decodes the side-car at path.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.RenameMapInvalid(path, err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, errors.RenameMapInvalid(path, err)
	}
	return m, nil
}

// LoadOptional is Load with every failure mapped to nil. The error is
// still returned so callers can log it; a missing file yields no error.
func LoadOptional(path string) (*Map, error) {
	m, err := Load(path)
	if err == nil {
		return m, nil
	}
	if os.IsNotExist(unwrapCause(err)) {
		return nil, nil
	}
	return nil, err
}

// ModuleName returns the original module specifier for id.
func (m *Map) ModuleName(id string) string {
	if m == nil {
		return id
	}
	if v, ok := m.Module[id]; ok && v != "" {
		return v
	}
	return id
}

// FunctionName returns the original symbol name for id.
func (m *Map) FunctionName(id string) string {
	if m == nil {
		return id
	}
	if v, ok := m.Functions[id]; ok && v != "" {
		return v
	}
	return id
}

// Len returns the number of function renames.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Functions)
}

func unwrapCause(err error) error {
	if e, ok := err.(*errors.Error); ok && e.Cause != nil {
		return e.Cause
	}
	return err
}
