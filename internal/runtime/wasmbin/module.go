// Package wasmbin parses the structural parts of a Wasm binary that the
// sandbox inspects, and assembles rewritten binaries.
package wasmbin

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

const (
	Magic   = "\x00asm"
	Version = uint32(1)

	// MigrateVersionSection is the custom section holding the contract migrate version.
	MigrateVersionSection = "cw_migrate_version"
)

type SectionID byte

const (
	SectionCustom SectionID = iota
	SectionType
	SectionImport
	SectionFunction
	SectionTable
	SectionMemory
	SectionGlobal
	SectionExport
	SectionStart
	SectionElement
	SectionCode
	SectionData
	SectionDataCount
	SectionTag
)

// rank orders non-custom sections as required by the binary format.
// The tag section sits between memory and global.
func (id SectionID) rank() int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11
	case SectionCode:
		return 12
	case SectionData:
		return 13
	default:
		return 0
	}
}

type ValueType byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeV128      ValueType = 0x7b
	ValueTypeFuncRef   ValueType = 0x70
	ValueTypeExternRef ValueType = 0x6f
	ValueTypeExnRef    ValueType = 0x69
	ValueTypeRefNull   ValueType = 0x63
	ValueTypeRef       ValueType = 0x64
)

type ExternalKind byte

const (
	ExternalFunc ExternalKind = iota
	ExternalTable
	ExternalMemory
	ExternalGlobal
	ExternalTag
)

func (k ExternalKind) String() string {
	switch k {
	case ExternalFunc:
		return "func"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	case ExternalTag:
		return "tag"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

// Limits describe a memory (in pages) or a table (in entries).
type Limits struct {
	Min    uint64
	Max    *uint64
	Shared bool
	Is64   bool
}

type TableType struct {
	ElemType ValueType
	Limits   Limits
}

type GlobalType struct {
	ValType ValueType
	Mutable bool
}

type Import struct {
	Module string
	Field  string
	Kind   ExternalKind
	// TypeIndex is set for function and tag imports.
	TypeIndex uint32
	Table     *TableType
	Memory    *Limits
	Global    *GlobalType
}

// FullName returns module.field.
func (i Import) FullName() string {
	return i.Module + "." + i.Field
}

type Export struct {
	Name  string
	Kind  ExternalKind
	Index uint32
}

// FunctionBody is one entry of the code section.
type FunctionBody struct {
	// Locals is the raw encoded local declarations.
	Locals []byte
	// Code is the instruction stream including the final end.
	Code []byte
	// Offset of Code in the module binary.
	Offset int
}

// Section is a raw section in file order.
type Section struct {
	ID      SectionID
	Name    string
	Payload []byte
}

// Module is an immutable structural parse of a Wasm binary.
type Module struct {
	Sections []Section

	Types     []FuncType
	Imports   []Import
	Functions []uint32
	Tables    []TableType
	Memories  []Limits
	Exports   []Export
	Code      []FunctionBody

	// GlobalCount and GlobalEntries hold the global section: the number of
	// defined globals and their encoded entries after the count.
	GlobalCount   uint32
	GlobalEntries []byte

	ContractMigrateVersion *uint64

	MaxFunctionParams   int
	MaxFunctionResults  int
	TotalFunctionParams int
}

// Parse decodes the sections of a Wasm binary that the sandbox inspects.
// Element, data, start and tag sections are kept raw.
func Parse(bin []byte) (*Module, error) {
	if len(bin) < 8 || string(bin[:4]) != Magic {
		return nil, fmt.Errorf("invalid magic number")
	}
	if v := binary.LittleEndian.Uint32(bin[4:8]); v != Version {
		return nil, fmt.Errorf("unsupported binary version %d", v)
	}

	m := &Module{}
	r := NewReader(bin)
	_ = r.Skip(8)
	lastRank := 0
	for !r.EOF() {
		idByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		id := SectionID(idByte)
		if idByte > byte(SectionTag) {
			return nil, fmt.Errorf("unknown section id %d at offset %d", idByte, r.Pos()-1)
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
		start := r.Pos()
		payload, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}

		sec := Section{ID: id, Payload: payload}
		if id != SectionCustom {
			if id.rank() <= lastRank {
				return nil, fmt.Errorf("section %d out of order or duplicated", id)
			}
			lastRank = id.rank()
		}
		if err := m.parseSection(&sec, payload, start); err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
		m.Sections = append(m.Sections, sec)
	}

	if len(m.Functions) != len(m.Code) {
		return nil, fmt.Errorf("function and code section have inconsistent lengths")
	}
	if err := m.computeStats(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Module) parseSection(sec *Section, payload []byte, base int) error {
	r := NewReader(payload)
	var err error
	switch sec.ID {
	case SectionCustom:
		sec.Name, err = r.ReadName()
		if err != nil {
			return err
		}
		if sec.Name == MigrateVersionSection {
			raw, _ := r.ReadBytes(r.Len())
			v, err := strconv.ParseUint(string(raw), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", MigrateVersionSection, err)
			}
			m.ContractMigrateVersion = &v
		}
		return nil
	case SectionType:
		m.Types, err = readVector(r, readFuncType)
	case SectionImport:
		m.Imports, err = readVector(r, readImport)
	case SectionFunction:
		m.Functions, err = readVector(r, (*Reader).ReadU32)
	case SectionTable:
		m.Tables, err = readVector(r, readTableType)
	case SectionMemory:
		m.Memories, err = readVector(r, readLimits)
	case SectionGlobal:
		m.GlobalCount, err = r.ReadU32()
		if err != nil {
			return err
		}
		m.GlobalEntries, err = r.ReadBytes(r.Len())
		return err
	case SectionExport:
		m.Exports, err = readVector(r, readExport)
	case SectionCode:
		m.Code, err = readVector(r, func(r *Reader) (FunctionBody, error) {
			return readFunctionBody(r, base)
		})
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if !r.EOF() {
		return fmt.Errorf("section size mismatch: %d trailing bytes", r.Len())
	}
	return nil
}

func readVector[T any](r *Reader, read func(*Reader) (T, error)) ([]T, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	// every entry takes at least one byte
	if int(n) > r.Len() {
		return nil, ErrUnexpectedEOF
	}
	out := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := read(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func readFuncType(r *Reader) (FuncType, error) {
	form, err := r.ReadByte()
	if err != nil {
		return FuncType{}, err
	}
	if form != 0x60 {
		return FuncType{}, fmt.Errorf("unsupported type form 0x%x", form)
	}
	params, err := readVector(r, (*Reader).ReadValueType)
	if err != nil {
		return FuncType{}, err
	}
	results, err := readVector(r, (*Reader).ReadValueType)
	if err != nil {
		return FuncType{}, err
	}
	return FuncType{Params: params, Results: results}, nil
}

func readLimits(r *Reader) (Limits, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	if flags > 0x07 {
		return Limits{}, fmt.Errorf("invalid limits flags 0x%x", flags)
	}
	l := Limits{Shared: flags&0x02 != 0, Is64: flags&0x04 != 0}
	read := func() (uint64, error) {
		if l.Is64 {
			return r.ReadU64()
		}
		v, err := r.ReadU32()
		return uint64(v), err
	}
	if l.Min, err = read(); err != nil {
		return Limits{}, err
	}
	if flags&0x01 != 0 {
		max, err := read()
		if err != nil {
			return Limits{}, err
		}
		l.Max = &max
	}
	return l, nil
}

func readTableType(r *Reader) (TableType, error) {
	elem, err := r.ReadValueType()
	if err != nil {
		return TableType{}, err
	}
	switch elem {
	case ValueTypeFuncRef, ValueTypeExternRef, ValueTypeExnRef, ValueTypeRef, ValueTypeRefNull:
	default:
		return TableType{}, fmt.Errorf("table element type 0x%x is not a reference type", byte(elem))
	}
	limits, err := readLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: elem, Limits: limits}, nil
}

func readImport(r *Reader) (Import, error) {
	var imp Import
	var err error
	if imp.Module, err = r.ReadName(); err != nil {
		return imp, err
	}
	if imp.Field, err = r.ReadName(); err != nil {
		return imp, err
	}
	kind, err := r.ReadByte()
	if err != nil {
		return imp, err
	}
	imp.Kind = ExternalKind(kind)
	switch imp.Kind {
	case ExternalFunc:
		imp.TypeIndex, err = r.ReadU32()
	case ExternalTable:
		var t TableType
		t, err = readTableType(r)
		imp.Table = &t
	case ExternalMemory:
		var l Limits
		l, err = readLimits(r)
		imp.Memory = &l
	case ExternalGlobal:
		var g GlobalType
		g, err = readGlobalType(r)
		imp.Global = &g
	case ExternalTag:
		if _, err = r.ReadByte(); err == nil {
			imp.TypeIndex, err = r.ReadU32()
		}
	default:
		err = fmt.Errorf("unknown import kind 0x%x", kind)
	}
	return imp, err
}

func readGlobalType(r *Reader) (GlobalType, error) {
	vt, err := r.ReadValueType()
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, fmt.Errorf("invalid mutability 0x%x", mut)
	}
	return GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

func readExport(r *Reader) (Export, error) {
	name, err := r.ReadName()
	if err != nil {
		return Export{}, err
	}
	kind, err := r.ReadByte()
	if err != nil {
		return Export{}, err
	}
	if kind > byte(ExternalTag) {
		return Export{}, fmt.Errorf("unknown export kind 0x%x", kind)
	}
	index, err := r.ReadU32()
	if err != nil {
		return Export{}, err
	}
	return Export{Name: name, Kind: ExternalKind(kind), Index: index}, nil
}

func readFunctionBody(r *Reader, base int) (FunctionBody, error) {
	size, err := r.ReadU32()
	if err != nil {
		return FunctionBody{}, err
	}
	start := r.Pos()
	body, err := r.ReadBytes(int(size))
	if err != nil {
		return FunctionBody{}, err
	}
	br := NewReader(body)
	groups, err := br.ReadU32()
	if err != nil {
		return FunctionBody{}, err
	}
	var total uint64
	for i := uint32(0); i < groups; i++ {
		n, err := br.ReadU32()
		if err != nil {
			return FunctionBody{}, err
		}
		total += uint64(n)
		if total > 50_000 {
			return FunctionBody{}, fmt.Errorf("too many locals")
		}
		if _, err := br.ReadValueType(); err != nil {
			return FunctionBody{}, err
		}
	}
	return FunctionBody{
		Locals: body[:br.Pos()],
		Code:   body[br.Pos():],
		Offset: base + start + br.Pos(),
	}, nil
}

func (m *Module) computeStats() error {
	for _, t := range m.Types {
		m.MaxFunctionParams = max(m.MaxFunctionParams, len(t.Params))
		m.MaxFunctionResults = max(m.MaxFunctionResults, len(t.Results))
	}
	for _, typeIndex := range m.Functions {
		if int(typeIndex) >= len(m.Types) {
			return fmt.Errorf("function uses unknown type index %d", typeIndex)
		}
		m.TotalFunctionParams += len(m.Types[typeIndex].Params)
	}
	return nil
}

// FunctionCount is the number of functions defined (not imported) by the module.
func (m *Module) FunctionCount() int {
	return len(m.Code)
}

func (m *Module) NumImported(kind ExternalKind) uint32 {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Kind == kind {
			n++
		}
	}
	return n
}

// ExportedFunctionNames returns the set of names of exported functions.
func (m *Module) ExportedFunctionNames() map[string]struct{} {
	out := make(map[string]struct{})
	for _, e := range m.Exports {
		if e.Kind == ExternalFunc {
			out[e.Name] = struct{}{}
		}
	}
	return out
}

// CustomSection returns the payload of the first custom section with the given name,
// without the name prefix.
func (m *Module) CustomSection(name string) ([]byte, bool) {
	for _, s := range m.Sections {
		if s.ID == SectionCustom && s.Name == name {
			r := NewReader(s.Payload)
			_, _ = r.ReadName()
			return s.Payload[r.Pos():], true
		}
	}
	return nil, false
}
