package opcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(t *testing.T, code []byte) []string {
	t.Helper()
	instrs, err := Decode(code)
	require.NoError(t, err)
	out := make([]string, len(instrs))
	for i, ins := range instrs {
		out[i] = ins.Op.Name
	}
	return out
}

func TestDecodeImmediates(t *testing.T) {
	code := []byte{
		0x02, 0x40,                               // block
		0x41, 0xc0, 0xbb, 0x78,                   // i32.const -123456
		0x42, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01, // i64.const
		0x1a, 0x1a,                               // drop drop
		0x43, 0, 0, 0x80, 0x3f,                   // f32.const 1.0
		0x1a,
		0x0e, 0x02, 0x00, 0x00, 0x00,                                      // br_table 0 0 0
		0x0b,                                                              // end
		0x28, 0x02, 0x80, 0x01,                                            // i32.load align=2 offset=128
		0xfc, 0x0a, 0x00, 0x00,                                            // memory.copy
		0xfd, 0x0c, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, // v128.const
		0xfd, 0x15, 0x03,                                                  // i8x16.extract_lane_s 3
		0xfe, 0x03, 0x00,                                                  // atomic.fence
		0xfe, 0x1e, 0x02, 0x00,                                            // i32.atomic.rmw.add
		0x1c, 0x01, 0x7f,                                                  // select_t (result i32)
		0x11, 0x00, 0x00,                                                  // call_indirect
		0x0b,
	}
	assert.Equal(t, []string{
		"block", "i32.const", "i64.const", "drop", "drop", "f32.const", "drop", "br_table", "end",
		"i32.load", "memory.copy", "v128.const", "i8x16.extract_lane_s", "atomic.fence",
		"i32.atomic.rmw.add", "select_t", "call_indirect", "end",
	}, names(t, code))
}

func TestDecodeOffsets(t *testing.T) {
	instrs, err := Decode([]byte{0x41, 0x80, 0x01, 0x1a, 0x0b})
	require.NoError(t, err)
	require.Len(t, instrs, 3)
	assert.Equal(t, 0, instrs[0].Start)
	assert.Equal(t, 3, instrs[0].End)
	assert.Equal(t, 3, instrs[1].Start)
	assert.Equal(t, 4, instrs[2].Start)
	assert.Equal(t, 5, instrs[2].End)
}

func TestDecodeTryTable(t *testing.T) {
	code := []byte{
		0x1f, 0x40, 0x02, // try_table, two catch clauses
		0x00, 0x00, 0x00, // catch tag 0 label 0
		0x02, 0x00,       // catch_all label 0
		0x0b,
		0x0b,
	}
	assert.Equal(t, []string{"try_table", "end", "end"}, names(t, code))
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string][]byte{
		"unknown single byte":  {0x27},
		"unknown misc":         {0xfc, 0x13},
		"unknown simd":         {0xfd, 0x9a, 0x01},
		"truncated immediate":  {0x41},
		"truncated f64":        {0x44, 0, 0, 0},
		"bad fence":            {0xfe, 0x03, 0x01},
		"unknown catch clause": {0x1f, 0x40, 0x01, 0x07, 0x00},
	}
	for name, code := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(code)
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestDecodeStopsAfterUndecodable(t *testing.T) {
	r := NewReader([]byte{0xfb, 0x00, 0x01, 0x0b})
	ins, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "struct.new", ins.Op.Name)
	assert.Equal(t, GC, ins.Op.Family)
	_, err = r.Next()
	require.ErrorContains(t, err, "cannot decode past struct.new")
}

func TestTableConsistency(t *testing.T) {
	all := All()
	seen := make(map[Family]int)
	for _, op := range all {
		seen[op.Family]++
		assert.Same(t, op, Lookup(op.Prefix, op.Code), op.Name)
		assert.NotEmpty(t, op.Name)
	}
	for _, f := range Families() {
		assert.NotZero(t, seen[f], "family %s has no operators", f)
	}

	// counts pinned to the proposals the table implements
	assert.Equal(t, 256, countPrefix(all, PrefixSIMD))
	assert.Equal(t, 20, countFamily(all, RelaxedSIMD))
	assert.Equal(t, 67, countPrefix(all, PrefixThreads))
	assert.Equal(t, 19, countPrefix(all, PrefixMisc))
	assert.Equal(t, 8, countFamily(all, SaturatingFloatToInt))
	assert.Equal(t, 5, countFamily(all, SignExtension))
	assert.Equal(t, 7, countFamily(all, BulkMemory))
}

func countPrefix(ops []*Operator, prefix byte) int {
	n := 0
	for _, op := range ops {
		if op.Prefix == prefix {
			n++
		}
	}
	return n
}

func countFamily(ops []*Operator, f Family) int {
	n := 0
	for _, op := range ops {
		if op.Family == f {
			n++
		}
	}
	return n
}

func TestFloatClassification(t *testing.T) {
	cases := map[string]bool{
		"f32.convert_i32_u":       true,
		"i32.trunc_sat_f32_s":     true,
		"i32.reinterpret_f32":     true,
		"f64.load":                true,
		"f32x4.add":               true,
		"i32x4.trunc_sat_f32x4_s": true,
		"f32x4.relaxed_madd":      true,
		"i32.add":                 false,
		"i64.extend32_s":          false,
		"i8x16.add":               false,
		"v128.load":               false,
		"memory.copy":             false,
	}
	byName := make(map[string]*Operator)
	for _, op := range All() {
		byName[op.Name] = op
	}
	for name, isFloat := range cases {
		op, ok := byName[name]
		require.True(t, ok, name)
		assert.Equal(t, isFloat, op.IsFloat(), name)
	}
}
