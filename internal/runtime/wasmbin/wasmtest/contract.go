package wasmtest

import (
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin"
)

// HeapStart is where the bump allocator of ContractBase starts handing out regions.
const HeapStart = 1024

// ContractBase adds what a valid contract needs: one memory exported as
// "memory", a bump allocator behind allocate/deallocate, the
// interface_version_8 marker and an instantiate entry point returning 0.
// Imports must be declared on b before calling it.
func ContractBase(b *Builder) *Builder {
	b.Memory(1, nil)
	b.Export("memory", wasmbin.ExternalMemory, 0)
	b.Global(I32, true, I32Const(HeapStart)...)

	allocate := b.FuncWithLocals(b.Type([]wasmbin.ValueType{I32}, []wasmbin.ValueType{I32}), 1, I32,
		Cat(
			GlobalGet(0), LocalSet(1),
			GlobalGet(0), I32Const(12), []byte{OpI32Add}, GlobalSet(0),
			LocalGet(1), GlobalGet(0), I32Store(0),
			LocalGet(1), LocalGet(0), I32Store(4),
			LocalGet(1), I32Const(0), I32Store(8),
			GlobalGet(0), LocalGet(0), []byte{OpI32Add}, GlobalSet(0),
			LocalGet(1),
		)...)
	deallocate := b.Func(b.Type([]wasmbin.ValueType{I32}, nil))
	marker := b.Func(b.Type(nil, nil))
	instantiate := b.Func(b.Type([]wasmbin.ValueType{I32, I32, I32}, []wasmbin.ValueType{I32}), I32Const(0)...)

	b.ExportFunc("allocate", allocate)
	b.ExportFunc("deallocate", deallocate)
	b.ExportFunc("interface_version_8", marker)
	b.ExportFunc("instantiate", instantiate)
	return b
}

// Contract returns the smallest module passing static validation.
func Contract() []byte {
	return ContractBase(New()).Build()
}

const (
	OpUnreachable = 0x00
	OpNop         = 0x01
	OpBlock       = 0x02
	OpLoop        = 0x03
	OpIf          = 0x04
	OpElse        = 0x05
	OpEnd         = 0x0b
	OpBr          = 0x0c
	OpBrIf        = 0x0d
	OpReturn      = 0x0f
	OpDrop        = 0x1a
	OpI32Eqz      = 0x45
	OpI32Add      = 0x6a
	OpI32Sub      = 0x6b
	OpI64Add      = 0x7c
	BlockEmpty    = 0x40
)

func I32Const(v int32) []byte { return wasmbin.AppendS32([]byte{0x41}, v) }

func I64Const(v int64) []byte { return wasmbin.AppendS64([]byte{0x42}, v) }

func LocalGet(i uint32) []byte { return wasmbin.AppendU32([]byte{0x20}, i) }

func LocalSet(i uint32) []byte { return wasmbin.AppendU32([]byte{0x21}, i) }

func GlobalGet(i uint32) []byte { return wasmbin.AppendU32([]byte{0x23}, i) }

func GlobalSet(i uint32) []byte { return wasmbin.AppendU32([]byte{0x24}, i) }

func Call(i uint32) []byte { return wasmbin.AppendU32([]byte{0x10}, i) }

// I32Store stores with natural alignment at the given static offset.
func I32Store(offset uint32) []byte { return wasmbin.AppendU32([]byte{0x36, 0x02}, offset) }

func I32Load(offset uint32) []byte { return wasmbin.AppendU32([]byte{0x28, 0x02}, offset) }

// Cat concatenates instruction fragments.
func Cat(parts ...[]byte) []byte {
	return concat(parts)
}
