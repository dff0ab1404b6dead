// Package wasmtest assembles small Wasm binaries for tests.
package wasmtest

import (
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin"
)

const (
	I32 = wasmbin.ValueTypeI32
	I64 = wasmbin.ValueTypeI64
	F32 = wasmbin.ValueTypeF32
	F64 = wasmbin.ValueTypeF64
)

type importEntry struct {
	module, field string
	payload       []byte
}

type function struct {
	typeIndex uint32
	locals    []byte
	code      []byte
}

type export struct {
	name  string
	kind  wasmbin.ExternalKind
	index uint32
}

// Builder collects module entities and encodes them in section order.
type Builder struct {
	types         [][]byte
	imports       []importEntry
	importedFuncs uint32
	funcs         []function
	tables        [][]byte
	memories      [][]byte
	globals       [][]byte
	exports       []export
	customs       []wasmbin.Section
}

func New() *Builder {
	return &Builder{}
}

// Type adds a function type and returns its index. Identical types are reused.
func (b *Builder) Type(params, results []wasmbin.ValueType) uint32 {
	enc := []byte{0x60}
	enc = wasmbin.AppendU32(enc, uint32(len(params)))
	for _, p := range params {
		enc = append(enc, byte(p))
	}
	enc = wasmbin.AppendU32(enc, uint32(len(results)))
	for _, r := range results {
		enc = append(enc, byte(r))
	}
	for i, t := range b.types {
		if string(t) == string(enc) {
			return uint32(i)
		}
	}
	b.types = append(b.types, enc)
	return uint32(len(b.types) - 1)
}

// ImportFunc adds a function import and returns its function index.
// Imports must be added before defined functions.
func (b *Builder) ImportFunc(module, field string, typeIndex uint32) uint32 {
	b.imports = append(b.imports, importEntry{module, field, wasmbin.AppendU32([]byte{byte(wasmbin.ExternalFunc)}, typeIndex)})
	b.importedFuncs++
	return b.importedFuncs - 1
}

func (b *Builder) ImportMemory(module, field string, min uint32) {
	payload := append([]byte{byte(wasmbin.ExternalMemory)}, limits(min, nil)...)
	b.imports = append(b.imports, importEntry{module, field, payload})
}

func (b *Builder) ImportGlobal(module, field string, vt wasmbin.ValueType, mutable bool) {
	payload := []byte{byte(wasmbin.ExternalGlobal), byte(vt), boolByte(mutable)}
	b.imports = append(b.imports, importEntry{module, field, payload})
}

func (b *Builder) ImportTable(module, field string, min uint32) {
	payload := append([]byte{byte(wasmbin.ExternalTable), byte(wasmbin.ValueTypeFuncRef)}, limits(min, nil)...)
	b.imports = append(b.imports, importEntry{module, field, payload})
}

func (b *Builder) Memory(min uint32, max *uint32) *Builder {
	b.memories = append(b.memories, limits(min, max))
	return b
}

func (b *Builder) Table(min uint32, max *uint32) *Builder {
	b.tables = append(b.tables, append([]byte{byte(wasmbin.ValueTypeFuncRef)}, limits(min, max)...))
	return b
}

// Func adds a function without locals. code must not include the final end.
func (b *Builder) Func(typeIndex uint32, code ...byte) uint32 {
	return b.FuncWithLocals(typeIndex, 0, 0, code...)
}

// FuncWithLocals adds a function declaring n locals of type vt.
func (b *Builder) FuncWithLocals(typeIndex uint32, n uint32, vt wasmbin.ValueType, code ...byte) uint32 {
	locals := []byte{0}
	if n > 0 {
		locals = wasmbin.AppendU32([]byte{1}, n)
		locals = append(locals, byte(vt))
	}
	body := append(append([]byte{}, code...), 0x0b)
	b.funcs = append(b.funcs, function{typeIndex: typeIndex, locals: locals, code: body})
	return b.importedFuncs + uint32(len(b.funcs)-1)
}

// Global adds a global initialised by init (without the final end).
func (b *Builder) Global(vt wasmbin.ValueType, mutable bool, init ...byte) {
	enc := []byte{byte(vt), boolByte(mutable)}
	enc = append(enc, init...)
	b.globals = append(b.globals, append(enc, 0x0b))
}

func (b *Builder) Export(name string, kind wasmbin.ExternalKind, index uint32) *Builder {
	b.exports = append(b.exports, export{name, kind, index})
	return b
}

func (b *Builder) ExportFunc(name string, index uint32) *Builder {
	return b.Export(name, wasmbin.ExternalFunc, index)
}

// Custom appends a custom section at the end of the module.
func (b *Builder) Custom(name string, data []byte) *Builder {
	payload := wasmbin.AppendName(nil, name)
	b.customs = append(b.customs, wasmbin.Section{ID: wasmbin.SectionCustom, Name: name, Payload: append(payload, data...)})
	return b
}

func (b *Builder) Build() []byte {
	var sections []wasmbin.Section
	add := func(id wasmbin.SectionID, count int, entries []byte) {
		if count == 0 {
			return
		}
		payload := wasmbin.AppendU32(nil, uint32(count))
		sections = append(sections, wasmbin.Section{ID: id, Payload: append(payload, entries...)})
	}

	add(wasmbin.SectionType, len(b.types), concat(b.types))

	var imports []byte
	for _, imp := range b.imports {
		imports = wasmbin.AppendName(imports, imp.module)
		imports = wasmbin.AppendName(imports, imp.field)
		imports = append(imports, imp.payload...)
	}
	add(wasmbin.SectionImport, len(b.imports), imports)

	var funcs []byte
	for _, f := range b.funcs {
		funcs = wasmbin.AppendU32(funcs, f.typeIndex)
	}
	add(wasmbin.SectionFunction, len(b.funcs), funcs)
	add(wasmbin.SectionTable, len(b.tables), concat(b.tables))
	add(wasmbin.SectionMemory, len(b.memories), concat(b.memories))
	add(wasmbin.SectionGlobal, len(b.globals), concat(b.globals))

	var exports []byte
	for _, e := range b.exports {
		exports = wasmbin.AppendName(exports, e.name)
		exports = append(exports, byte(e.kind))
		exports = wasmbin.AppendU32(exports, e.index)
	}
	add(wasmbin.SectionExport, len(b.exports), exports)

	var code []byte
	for _, f := range b.funcs {
		body := append(append([]byte{}, f.locals...), f.code...)
		code = wasmbin.AppendU32(code, uint32(len(body)))
		code = append(code, body...)
	}
	add(wasmbin.SectionCode, len(b.funcs), code)

	sections = append(sections, b.customs...)
	return wasmbin.Assemble(sections)
}

func limits(min uint32, max *uint32) []byte {
	if max == nil {
		return wasmbin.AppendU32([]byte{0x00}, min)
	}
	enc := wasmbin.AppendU32([]byte{0x01}, min)
	return wasmbin.AppendU32(enc, *max)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func concat(parts [][]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func Ptr(v uint32) *uint32 {
	return &v
}
