// Package wasmtest builds WebAssembly binaries for tests.
//
// The wasm package only decodes interfaces; Module here adds the type,
// function, memory and code sections needed for a binary that a runtime
// will also accept.
package wasmtest

import (
	"github.com/wippyai/wasm-pack/wasm"
	"github.com/wippyai/wasm-pack/wasm/internal/binary"
)

// FuncTypeByte prefixes a function type in the type section.
const FuncTypeByte byte = 0x60

// Opcodes used when synthesizing function bodies.
const (
	OpEnd      byte = 0x0B
	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
)

// FuncType is a function signature.
type FuncType struct {
	Params  []wasm.ValType
	Results []wasm.ValType
}

// FuncBody is a function body. Code holds the raw instructions including
// the trailing end opcode.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte
}

// LocalEntry declares Count locals of one type.
type LocalEntry struct {
	Count   uint32
	ValType wasm.ValType
}

// Module lists the sections Encode writes, in section order.
type Module struct {
	Types    []FuncType
	Imports  []wasm.Import
	Funcs    []uint32 // type indices of declared functions
	Memories []wasm.MemoryType
	Exports  []wasm.Export
	Code     []FuncBody
}

// Parsed returns what wasm.ParseModule yields for m.Encode().
func (m *Module) Parsed() *wasm.Module {
	return &wasm.Module{Imports: m.Imports, Exports: m.Exports}
}

// Encode writes m in the WebAssembly binary format.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(wasm.Magic)
	w.WriteU32LE(wasm.Version)

	if len(m.Types) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(FuncTypeByte)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		w.WriteSection(wasm.SectionType, sec)
	}

	if len(m.Imports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			sec.WriteName(imp.Module)
			sec.WriteName(imp.Name)
			writeDesc(sec, imp.Desc)
		}
		w.WriteSection(wasm.SectionImport, sec)
	}

	if len(m.Funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, idx := range m.Funcs {
			sec.WriteU32(idx)
		}
		w.WriteSection(wasm.SectionFunction, sec)
	}

	if len(m.Memories) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeLimits(sec, mem.Limits)
		}
		w.WriteSection(wasm.SectionMemory, sec)
	}

	if len(m.Exports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.WriteName(exp.Name)
			sec.Byte(exp.Kind)
			sec.WriteU32(exp.Idx)
		}
		w.WriteSection(wasm.SectionExport, sec)
	}

	if len(m.Code) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Code)))
		for _, body := range m.Code {
			fn := binary.NewWriter()
			fn.WriteU32(uint32(len(body.Locals)))
			for _, local := range body.Locals {
				fn.WriteU32(local.Count)
				fn.Byte(byte(local.ValType))
			}
			fn.WriteBytes(body.Code)
			sec.WriteU32(uint32(fn.Len()))
			sec.WriteBytes(fn.Bytes())
		}
		w.WriteSection(wasm.SectionCode, sec)
	}

	return w.Bytes()
}

func writeDesc(w *binary.Writer, d wasm.ImportDesc) {
	w.Byte(d.Kind)
	switch d.Kind {
	case wasm.KindFunc:
		w.WriteU32(d.TypeIdx)
	case wasm.KindTable:
		if d.Table != nil {
			writeRefType(w, d.Table.ElemType, d.Table.RefElemType)
			writeLimits(w, d.Table.Limits)
		}
	case wasm.KindMemory:
		if d.Memory != nil {
			writeLimits(w, d.Memory.Limits)
		}
	case wasm.KindGlobal:
		if d.Global != nil {
			writeRefType(w, byte(d.Global.ValType), d.Global.RefType)
			if d.Global.Mutable {
				w.Byte(1)
			} else {
				w.Byte(0)
			}
		}
	case wasm.KindTag:
		if d.Tag != nil {
			w.Byte(d.Tag.Attribute)
			w.WriteU32(d.Tag.TypeIdx)
		}
	}
}

func writeValTypes(w *binary.Writer, types []wasm.ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeLimits(w *binary.Writer, l wasm.Limits) {
	var flags byte
	if l.Max != nil {
		flags |= wasm.LimitsHasMax
	}
	if l.Shared {
		flags |= wasm.LimitsShared
	}
	if l.Memory64 {
		flags |= wasm.LimitsMemory64
	}
	w.Byte(flags)

	if l.Memory64 {
		w.WriteU64(l.Min)
		if l.Max != nil {
			w.WriteU64(*l.Max)
		}
		return
	}
	w.WriteU32(uint32(l.Min))
	if l.Max != nil {
		w.WriteU32(uint32(*l.Max))
	}
}

func writeRefType(w *binary.Writer, plain byte, ref *wasm.RefType) {
	if ref == nil {
		w.Byte(plain)
		return
	}
	if ref.Nullable {
		w.Byte(byte(wasm.ValRefNull))
	} else {
		w.Byte(byte(wasm.ValRef))
	}
	w.WriteS64(ref.HeapType)
}
