package opcode

import (
	"fmt"
	"strings"
)

// Prefix bytes of multi-byte opcodes.
const (
	PrefixGC      byte = 0xfb
	PrefixMisc    byte = 0xfc
	PrefixSIMD    byte = 0xfd
	PrefixThreads byte = 0xfe
)

type immediate uint8

const (
	immNone immediate = iota
	immBlockType
	immIndex
	immTwoIndex
	immBrTable
	immMemArg
	immI32
	immI64
	immF32
	immF64
	immSelectT
	immHeapType
	immTryTable
	immMemArgLane
	immV128
	immLane
	immZeroByte
	// immUndecodable operators are recognised but their immediates are not
	// decoded. The reader stops after them.
	immUndecodable
)

// Operator describes one opcode.
type Operator struct {
	Name   string
	Prefix byte
	Code   uint32
	Family Family
	// FloatLanes marks SIMD operators that interpret lanes as f32 or f64.
	FloatLanes bool

	imm immediate
}

// IsFloat reports whether the operator performs or exposes floating point computation.
func (o *Operator) IsFloat() bool {
	return o.Family == Float || o.Family == SaturatingFloatToInt || o.FloatLanes
}

func (o *Operator) String() string {
	return o.Name
}

// Opcode renders the binary encoding, e.g. 0x6a or 0xfc 0x0a.
func (o *Operator) Opcode() string {
	if o.Prefix == 0 {
		return fmt.Sprintf("0x%02x", o.Code)
	}
	return fmt.Sprintf("0x%02x 0x%02x", o.Prefix, o.Code)
}

var (
	singleByte [256]*Operator
	prefixed   = map[byte]map[uint32]*Operator{
		PrefixGC:      {},
		PrefixMisc:    {},
		PrefixSIMD:    {},
		PrefixThreads: {},
	}
)

func def(code byte, name string, family Family, imm immediate) {
	if singleByte[code] != nil {
		panic("duplicate opcode " + name)
	}
	singleByte[code] = &Operator{Name: name, Code: uint32(code), Family: family, imm: imm}
}

func defPrefixed(prefix byte, code uint32, name string, family Family, imm immediate) {
	if _, ok := prefixed[prefix][code]; ok {
		panic("duplicate opcode " + name)
	}
	op := &Operator{Name: name, Prefix: prefix, Code: code, Family: family, imm: imm}
	if prefix == PrefixSIMD && (strings.Contains(name, "f32x4") || strings.Contains(name, "f64x2")) {
		op.FloatLanes = true
	}
	prefixed[prefix][code] = op
}

// Lookup returns the operator for an opcode, or nil if it is unknown.
func Lookup(prefix byte, code uint32) *Operator {
	if prefix == 0 {
		if code > 0xff {
			return nil
		}
		return singleByte[code]
	}
	return prefixed[prefix][code]
}

// All returns every known operator.
func All() []*Operator {
	var out []*Operator
	for _, op := range singleByte {
		if op != nil {
			out = append(out, op)
		}
	}
	for _, prefix := range []byte{PrefixGC, PrefixMisc, PrefixSIMD, PrefixThreads} {
		for code := uint32(0); code < 0x200; code++ {
			if op := prefixed[prefix][code]; op != nil {
				out = append(out, op)
			}
		}
	}
	return out
}

func init() {
	defControl()
	defMemory()
	defNumeric()
	defReference()
	defMisc()
	defSIMD()
	defThreads()
	defGC()
}

func defControl() {
	def(0x00, "unreachable", Core, immNone)
	def(0x01, "nop", Core, immNone)
	def(0x02, "block", Core, immBlockType)
	def(0x03, "loop", Core, immBlockType)
	def(0x04, "if", Core, immBlockType)
	def(0x05, "else", Core, immNone)
	def(0x06, "try", LegacyExceptions, immBlockType)
	def(0x07, "catch", LegacyExceptions, immIndex)
	def(0x08, "throw", Exceptions, immIndex)
	def(0x09, "rethrow", LegacyExceptions, immIndex)
	def(0x0a, "throw_ref", Exceptions, immNone)
	def(0x0b, "end", Core, immNone)
	def(0x0c, "br", Core, immIndex)
	def(0x0d, "br_if", Core, immIndex)
	def(0x0e, "br_table", Core, immBrTable)
	def(0x0f, "return", Core, immNone)
	def(0x10, "call", Core, immIndex)
	def(0x11, "call_indirect", Core, immTwoIndex)
	def(0x12, "return_call", TailCall, immIndex)
	def(0x13, "return_call_indirect", TailCall, immTwoIndex)
	def(0x14, "call_ref", FunctionReferences, immIndex)
	def(0x15, "return_call_ref", FunctionReferences, immIndex)
	def(0x18, "delegate", LegacyExceptions, immIndex)
	def(0x19, "catch_all", LegacyExceptions, immNone)
	def(0x1a, "drop", Core, immNone)
	def(0x1b, "select", Core, immNone)
	def(0x1c, "select_t", ReferenceTypes, immSelectT)
	def(0x1f, "try_table", Exceptions, immTryTable)
	def(0x20, "local.get", Core, immIndex)
	def(0x21, "local.set", Core, immIndex)
	def(0x22, "local.tee", Core, immIndex)
	def(0x23, "global.get", Core, immIndex)
	def(0x24, "global.set", Core, immIndex)
	def(0x25, "table.get", ReferenceTypes, immIndex)
	def(0x26, "table.set", ReferenceTypes, immIndex)
}

func defMemory() {
	loads := []struct {
		code   byte
		name   string
		family Family
	}{
		{0x28, "i32.load", Core}, {0x29, "i64.load", Core},
		{0x2a, "f32.load", Float}, {0x2b, "f64.load", Float},
		{0x2c, "i32.load8_s", Core}, {0x2d, "i32.load8_u", Core},
		{0x2e, "i32.load16_s", Core}, {0x2f, "i32.load16_u", Core},
		{0x30, "i64.load8_s", Core}, {0x31, "i64.load8_u", Core},
		{0x32, "i64.load16_s", Core}, {0x33, "i64.load16_u", Core},
		{0x34, "i64.load32_s", Core}, {0x35, "i64.load32_u", Core},
		{0x36, "i32.store", Core}, {0x37, "i64.store", Core},
		{0x38, "f32.store", Float}, {0x39, "f64.store", Float},
		{0x3a, "i32.store8", Core}, {0x3b, "i32.store16", Core},
		{0x3c, "i64.store8", Core}, {0x3d, "i64.store16", Core}, {0x3e, "i64.store32", Core},
	}
	for _, l := range loads {
		def(l.code, l.name, l.family, immMemArg)
	}
	def(0x3f, "memory.size", Core, immIndex)
	def(0x40, "memory.grow", Core, immIndex)
}

// defSeq defines consecutive opcodes starting at first.
func defSeq(first byte, family Family, imm immediate, names ...string) {
	for i, name := range names {
		def(first+byte(i), name, family, imm)
	}
}

func defNumeric() {
	def(0x41, "i32.const", Core, immI32)
	def(0x42, "i64.const", Core, immI64)
	def(0x43, "f32.const", Float, immF32)
	def(0x44, "f64.const", Float, immF64)

	defSeq(0x45, Core, immNone, "i32.eqz", "i32.eq", "i32.ne", "i32.lt_s", "i32.lt_u", "i32.gt_s",
		"i32.gt_u", "i32.le_s", "i32.le_u", "i32.ge_s", "i32.ge_u")
	defSeq(0x50, Core, immNone, "i64.eqz", "i64.eq", "i64.ne", "i64.lt_s", "i64.lt_u", "i64.gt_s",
		"i64.gt_u", "i64.le_s", "i64.le_u", "i64.ge_s", "i64.ge_u")
	defSeq(0x5b, Float, immNone, "f32.eq", "f32.ne", "f32.lt", "f32.gt", "f32.le", "f32.ge")
	defSeq(0x61, Float, immNone, "f64.eq", "f64.ne", "f64.lt", "f64.gt", "f64.le", "f64.ge")
	defSeq(0x67, Core, immNone, "i32.clz", "i32.ctz", "i32.popcnt", "i32.add", "i32.sub", "i32.mul",
		"i32.div_s", "i32.div_u", "i32.rem_s", "i32.rem_u", "i32.and", "i32.or", "i32.xor",
		"i32.shl", "i32.shr_s", "i32.shr_u", "i32.rotl", "i32.rotr")
	defSeq(0x79, Core, immNone, "i64.clz", "i64.ctz", "i64.popcnt", "i64.add", "i64.sub", "i64.mul",
		"i64.div_s", "i64.div_u", "i64.rem_s", "i64.rem_u", "i64.and", "i64.or", "i64.xor",
		"i64.shl", "i64.shr_s", "i64.shr_u", "i64.rotl", "i64.rotr")
	floatArith := []string{"abs", "neg", "ceil", "floor", "trunc", "nearest", "sqrt",
		"add", "sub", "mul", "div", "min", "max", "copysign"}
	for i, name := range floatArith {
		def(0x8b+byte(i), "f32."+name, Float, immNone)
		def(0x99+byte(i), "f64."+name, Float, immNone)
	}

	def(0xa7, "i32.wrap_i64", Core, immNone)
	defSeq(0xa8, Float, immNone, "i32.trunc_f32_s", "i32.trunc_f32_u", "i32.trunc_f64_s", "i32.trunc_f64_u")
	def(0xac, "i64.extend_i32_s", Core, immNone)
	def(0xad, "i64.extend_i32_u", Core, immNone)
	defSeq(0xae, Float, immNone, "i64.trunc_f32_s", "i64.trunc_f32_u", "i64.trunc_f64_s", "i64.trunc_f64_u",
		"f32.convert_i32_s", "f32.convert_i32_u", "f32.convert_i64_s", "f32.convert_i64_u", "f32.demote_f64",
		"f64.convert_i32_s", "f64.convert_i32_u", "f64.convert_i64_s", "f64.convert_i64_u", "f64.promote_f32",
		"i32.reinterpret_f32", "i64.reinterpret_f64", "f32.reinterpret_i32", "f64.reinterpret_i64")
	defSeq(0xc0, SignExtension, immNone, "i32.extend8_s", "i32.extend16_s", "i64.extend8_s",
		"i64.extend16_s", "i64.extend32_s")
}

func defReference() {
	def(0xd0, "ref.null", ReferenceTypes, immHeapType)
	def(0xd1, "ref.is_null", ReferenceTypes, immNone)
	def(0xd2, "ref.func", ReferenceTypes, immIndex)
	def(0xd3, "ref.as_non_null", FunctionReferences, immNone)
	def(0xd4, "br_on_null", FunctionReferences, immIndex)
	def(0xd5, "ref.eq", GC, immNone)
	def(0xd6, "br_on_non_null", FunctionReferences, immIndex)
}

func defMisc() {
	sat := []string{"i32.trunc_sat_f32_s", "i32.trunc_sat_f32_u", "i32.trunc_sat_f64_s", "i32.trunc_sat_f64_u",
		"i64.trunc_sat_f32_s", "i64.trunc_sat_f32_u", "i64.trunc_sat_f64_s", "i64.trunc_sat_f64_u"}
	for i, name := range sat {
		defPrefixed(PrefixMisc, uint32(i), name, SaturatingFloatToInt, immNone)
	}
	defPrefixed(PrefixMisc, 8, "memory.init", BulkMemory, immTwoIndex)
	defPrefixed(PrefixMisc, 9, "data.drop", BulkMemory, immIndex)
	defPrefixed(PrefixMisc, 10, "memory.copy", BulkMemory, immTwoIndex)
	defPrefixed(PrefixMisc, 11, "memory.fill", BulkMemory, immIndex)
	defPrefixed(PrefixMisc, 12, "table.init", BulkMemory, immTwoIndex)
	defPrefixed(PrefixMisc, 13, "elem.drop", BulkMemory, immIndex)
	defPrefixed(PrefixMisc, 14, "table.copy", BulkMemory, immTwoIndex)
	defPrefixed(PrefixMisc, 15, "table.grow", ReferenceTypes, immIndex)
	defPrefixed(PrefixMisc, 16, "table.size", ReferenceTypes, immIndex)
	defPrefixed(PrefixMisc, 17, "table.fill", ReferenceTypes, immIndex)
	defPrefixed(PrefixMisc, 18, "memory.discard", MemoryControl, immUndecodable)
}

func defSIMDSeq(first uint32, family Family, imm immediate, names ...string) {
	for i, name := range names {
		defPrefixed(PrefixSIMD, first+uint32(i), name, family, imm)
	}
}

// comparisons returns the ten integer comparison names of a lane shape.
func comparisons(shape string) []string {
	out := make([]string, 0, 10)
	for _, c := range []string{"eq", "ne", "lt_s", "lt_u", "gt_s", "gt_u", "le_s", "le_u", "ge_s", "ge_u"} {
		out = append(out, shape+"."+c)
	}
	return out
}

func defSIMD() {
	defSIMDSeq(0x00, SIMD, immMemArg, "v128.load", "v128.load8x8_s", "v128.load8x8_u",
		"v128.load16x4_s", "v128.load16x4_u", "v128.load32x2_s", "v128.load32x2_u",
		"v128.load8_splat", "v128.load16_splat", "v128.load32_splat", "v128.load64_splat", "v128.store")
	defPrefixed(PrefixSIMD, 0x0c, "v128.const", SIMD, immV128)
	defPrefixed(PrefixSIMD, 0x0d, "i8x16.shuffle", SIMD, immV128)
	defSIMDSeq(0x0e, SIMD, immNone, "i8x16.swizzle", "i8x16.splat", "i16x8.splat", "i32x4.splat",
		"i64x2.splat", "f32x4.splat", "f64x2.splat")
	defSIMDSeq(0x15, SIMD, immLane, "i8x16.extract_lane_s", "i8x16.extract_lane_u", "i8x16.replace_lane",
		"i16x8.extract_lane_s", "i16x8.extract_lane_u", "i16x8.replace_lane",
		"i32x4.extract_lane", "i32x4.replace_lane", "i64x2.extract_lane", "i64x2.replace_lane",
		"f32x4.extract_lane", "f32x4.replace_lane", "f64x2.extract_lane", "f64x2.replace_lane")
	defSIMDSeq(0x23, SIMD, immNone, comparisons("i8x16")...)
	defSIMDSeq(0x2d, SIMD, immNone, comparisons("i16x8")...)
	defSIMDSeq(0x37, SIMD, immNone, comparisons("i32x4")...)
	defSIMDSeq(0x41, SIMD, immNone, "f32x4.eq", "f32x4.ne", "f32x4.lt", "f32x4.gt", "f32x4.le", "f32x4.ge",
		"f64x2.eq", "f64x2.ne", "f64x2.lt", "f64x2.gt", "f64x2.le", "f64x2.ge",
		"v128.not", "v128.and", "v128.andnot", "v128.or", "v128.xor", "v128.bitselect", "v128.any_true")
	defSIMDSeq(0x54, SIMD, immMemArgLane, "v128.load8_lane", "v128.load16_lane", "v128.load32_lane",
		"v128.load64_lane", "v128.store8_lane", "v128.store16_lane", "v128.store32_lane", "v128.store64_lane")
	defSIMDSeq(0x5c, SIMD, immMemArg, "v128.load32_zero", "v128.load64_zero")
	defSIMDSeq(0x5e, SIMD, immNone, "f32x4.demote_f64x2_zero", "f64x2.promote_low_f32x4",
		"i8x16.abs", "i8x16.neg", "i8x16.popcnt", "i8x16.all_true", "i8x16.bitmask",
		"i8x16.narrow_i16x8_s", "i8x16.narrow_i16x8_u",
		"f32x4.ceil", "f32x4.floor", "f32x4.trunc", "f32x4.nearest",
		"i8x16.shl", "i8x16.shr_s", "i8x16.shr_u", "i8x16.add", "i8x16.add_sat_s", "i8x16.add_sat_u",
		"i8x16.sub", "i8x16.sub_sat_s", "i8x16.sub_sat_u",
		"f64x2.ceil", "f64x2.floor",
		"i8x16.min_s", "i8x16.min_u", "i8x16.max_s", "i8x16.max_u",
		"f64x2.trunc", "i8x16.avgr_u",
		"i16x8.extadd_pairwise_i8x16_s", "i16x8.extadd_pairwise_i8x16_u",
		"i32x4.extadd_pairwise_i16x8_s", "i32x4.extadd_pairwise_i16x8_u",
		"i16x8.abs", "i16x8.neg", "i16x8.q15mulr_sat_s", "i16x8.all_true", "i16x8.bitmask",
		"i16x8.narrow_i32x4_s", "i16x8.narrow_i32x4_u",
		"i16x8.extend_low_i8x16_s", "i16x8.extend_high_i8x16_s",
		"i16x8.extend_low_i8x16_u", "i16x8.extend_high_i8x16_u",
		"i16x8.shl", "i16x8.shr_s", "i16x8.shr_u", "i16x8.add", "i16x8.add_sat_s", "i16x8.add_sat_u",
		"i16x8.sub", "i16x8.sub_sat_s", "i16x8.sub_sat_u",
		"f64x2.nearest",
		"i16x8.mul", "i16x8.min_s", "i16x8.min_u", "i16x8.max_s", "i16x8.max_u")
	defSIMDSeq(0x9b, SIMD, immNone, "i16x8.avgr_u",
		"i16x8.extmul_low_i8x16_s", "i16x8.extmul_high_i8x16_s",
		"i16x8.extmul_low_i8x16_u", "i16x8.extmul_high_i8x16_u",
		"i32x4.abs", "i32x4.neg")
	defSIMDSeq(0xa3, SIMD, immNone, "i32x4.all_true", "i32x4.bitmask")
	defSIMDSeq(0xa7, SIMD, immNone, "i32x4.extend_low_i16x8_s", "i32x4.extend_high_i16x8_s",
		"i32x4.extend_low_i16x8_u", "i32x4.extend_high_i16x8_u",
		"i32x4.shl", "i32x4.shr_s", "i32x4.shr_u", "i32x4.add")
	defPrefixed(PrefixSIMD, 0xb1, "i32x4.sub", SIMD, immNone)
	defSIMDSeq(0xb5, SIMD, immNone, "i32x4.mul", "i32x4.min_s", "i32x4.min_u", "i32x4.max_s", "i32x4.max_u",
		"i32x4.dot_i16x8_s")
	defSIMDSeq(0xbc, SIMD, immNone, "i32x4.extmul_low_i16x8_s", "i32x4.extmul_high_i16x8_s",
		"i32x4.extmul_low_i16x8_u", "i32x4.extmul_high_i16x8_u",
		"i64x2.abs", "i64x2.neg")
	defSIMDSeq(0xc3, SIMD, immNone, "i64x2.all_true", "i64x2.bitmask")
	defSIMDSeq(0xc7, SIMD, immNone, "i64x2.extend_low_i32x4_s", "i64x2.extend_high_i32x4_s",
		"i64x2.extend_low_i32x4_u", "i64x2.extend_high_i32x4_u",
		"i64x2.shl", "i64x2.shr_s", "i64x2.shr_u", "i64x2.add")
	defPrefixed(PrefixSIMD, 0xd1, "i64x2.sub", SIMD, immNone)
	defSIMDSeq(0xd5, SIMD, immNone, "i64x2.mul", "i64x2.eq", "i64x2.ne", "i64x2.lt_s", "i64x2.gt_s",
		"i64x2.le_s", "i64x2.ge_s",
		"i64x2.extmul_low_i32x4_s", "i64x2.extmul_high_i32x4_s",
		"i64x2.extmul_low_i32x4_u", "i64x2.extmul_high_i32x4_u",
		"f32x4.abs", "f32x4.neg")
	defSIMDSeq(0xe3, SIMD, immNone, "f32x4.sqrt", "f32x4.add", "f32x4.sub", "f32x4.mul", "f32x4.div",
		"f32x4.min", "f32x4.max", "f32x4.pmin", "f32x4.pmax",
		"f64x2.abs", "f64x2.neg")
	defSIMDSeq(0xef, SIMD, immNone, "f64x2.sqrt", "f64x2.add", "f64x2.sub", "f64x2.mul", "f64x2.div",
		"f64x2.min", "f64x2.max", "f64x2.pmin", "f64x2.pmax",
		"i32x4.trunc_sat_f32x4_s", "i32x4.trunc_sat_f32x4_u",
		"f32x4.convert_i32x4_s", "f32x4.convert_i32x4_u",
		"i32x4.trunc_sat_f64x2_s_zero", "i32x4.trunc_sat_f64x2_u_zero",
		"f64x2.convert_low_i32x4_s", "f64x2.convert_low_i32x4_u")
	defSIMDSeq(0x100, RelaxedSIMD, immNone, "i8x16.relaxed_swizzle",
		"i32x4.relaxed_trunc_f32x4_s", "i32x4.relaxed_trunc_f32x4_u",
		"i32x4.relaxed_trunc_f64x2_s_zero", "i32x4.relaxed_trunc_f64x2_u_zero",
		"f32x4.relaxed_madd", "f32x4.relaxed_nmadd", "f64x2.relaxed_madd", "f64x2.relaxed_nmadd",
		"i8x16.relaxed_laneselect", "i16x8.relaxed_laneselect",
		"i32x4.relaxed_laneselect", "i64x2.relaxed_laneselect",
		"f32x4.relaxed_min", "f32x4.relaxed_max", "f64x2.relaxed_min", "f64x2.relaxed_max",
		"i16x8.relaxed_q15mulr_s", "i16x8.relaxed_dot_i8x16_i7x16_s",
		"i32x4.relaxed_dot_i8x16_i7x16_add_s")
}

func defThreads() {
	defPrefixed(PrefixThreads, 0x00, "memory.atomic.notify", Threads, immMemArg)
	defPrefixed(PrefixThreads, 0x01, "memory.atomic.wait32", Threads, immMemArg)
	defPrefixed(PrefixThreads, 0x02, "memory.atomic.wait64", Threads, immMemArg)
	defPrefixed(PrefixThreads, 0x03, "atomic.fence", Threads, immZeroByte)

	plain := []string{"i32.atomic.load", "i64.atomic.load", "i32.atomic.load8_u", "i32.atomic.load16_u",
		"i64.atomic.load8_u", "i64.atomic.load16_u", "i64.atomic.load32_u",
		"i32.atomic.store", "i64.atomic.store", "i32.atomic.store8", "i32.atomic.store16",
		"i64.atomic.store8", "i64.atomic.store16", "i64.atomic.store32"}
	code := uint32(0x10)
	for _, name := range plain {
		defPrefixed(PrefixThreads, code, name, Threads, immMemArg)
		code++
	}
	for _, op := range []string{"add", "sub", "and", "or", "xor", "xchg", "cmpxchg"} {
		for _, shape := range []string{"i32.atomic.rmw.%s", "i64.atomic.rmw.%s", "i32.atomic.rmw8.%s_u",
			"i32.atomic.rmw16.%s_u", "i64.atomic.rmw8.%s_u", "i64.atomic.rmw16.%s_u", "i64.atomic.rmw32.%s_u"} {
			defPrefixed(PrefixThreads, code, fmt.Sprintf(shape, op), Threads, immMemArg)
			code++
		}
	}
}

func defGC() {
	names := []string{"struct.new", "struct.new_default", "struct.get", "struct.get_s", "struct.get_u",
		"struct.set", "array.new", "array.new_default", "array.new_fixed", "array.new_data",
		"array.new_elem", "array.get", "array.get_s", "array.get_u", "array.set", "array.len",
		"array.fill", "array.copy", "array.init_data", "array.init_elem", "ref.test", "ref.test_null",
		"ref.cast", "ref.cast_null", "br_on_cast", "br_on_cast_fail", "any.convert_extern",
		"extern.convert_any", "ref.i31", "i31.get_s", "i31.get_u"}
	for i, name := range names {
		defPrefixed(PrefixGC, uint32(i), name, GC, immUndecodable)
	}
}
