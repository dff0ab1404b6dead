package gatekeeper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/opcode"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin/wasmtest"
	"github.com/CosmWasm/wasmsandbox/types"
)

var allToggles = types.GatekeeperConfig{
	AllowReferenceTypes: true,
	AllowThreads:        true,
	AllowSIMD:           true,
	AllowBulkMemory:     true,
	AllowExceptions:     true,
}

func body(code ...byte) []byte {
	return append(code, wasmtest.OpEnd)
}

func TestFloatConversion(t *testing.T) {
	// i32.const 1; f32.convert_i32_u; drop
	code := body(wasmtest.Cat(wasmtest.I32Const(1), []byte{0xb3, wasmtest.OpDrop})...)

	require.NoError(t, New(types.GatekeeperConfig{}).CheckFunction(0, code))

	err := Deterministic().CheckFunction(0, code)
	var compileErr types.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "Non-deterministic operator detected: f32.convert_i32_u. The use of floats is not supported.", compileErr.Msg)
	assert.Equal(t, "f32.convert_i32_u", compileErr.Operator)
	assert.Equal(t, "float", compileErr.Family)
	assert.Equal(t, "Error compiling Wasm: Non-deterministic operator detected: f32.convert_i32_u. The use of floats is not supported.", err.Error())
}

func TestBulkMemoryRejectedByBoth(t *testing.T) {
	// memory.copy 0 0 with three i32 operands
	code := body(wasmtest.Cat(wasmtest.I32Const(0), wasmtest.I32Const(0), wasmtest.I32Const(0), []byte{0xfc, 0x0a, 0x00, 0x00})...)

	for _, p := range []*Policy{Deterministic(), New(types.GatekeeperConfig{})} {
		t.Run(p.String(), func(t *testing.T) {
			err := p.CheckFunction(3, code)
			var compileErr types.CompileError
			require.ErrorAs(t, err, &compileErr)
			assert.Equal(t, "Bulk memory operation detected: memory.copy. Bulk memory operations are not supported.", compileErr.Msg)
			assert.Equal(t, "bulk_memory", compileErr.Family)
			assert.Equal(t, 3, compileErr.FunctionIndex)
		})
	}

	require.NoError(t, New(types.GatekeeperConfig{AllowBulkMemory: true}).CheckFunction(0, code))
}

func TestSignExtensionAllowed(t *testing.T) {
	// i32.const 1; i32.extend8_s; drop
	code := body(wasmtest.Cat(wasmtest.I32Const(1), []byte{0xc0, wasmtest.OpDrop})...)
	require.NoError(t, Deterministic().CheckFunction(0, code))
	require.NoError(t, New(types.GatekeeperConfig{}).CheckFunction(0, code))
}

func TestSaturatingConversion(t *testing.T) {
	// f32.const 0; i32.trunc_sat_f32_s; drop
	code := body(0x43, 0, 0, 0, 0, 0xfc, 0x00, wasmtest.OpDrop)
	require.NoError(t, New(types.GatekeeperConfig{}).CheckFunction(0, code))
	require.ErrorContains(t, Deterministic().CheckFunction(0, code), "Non-deterministic operator detected: f32.const.")
}

func TestSIMDFloatLanes(t *testing.T) {
	// v128.const 0; v128.const 0; f32x4.add; drop
	v128 := append([]byte{0xfd, 0x0c}, make([]byte, 16)...)
	code := body(wasmtest.Cat(v128, v128, []byte{0xfd, 0xe4, 0x01, wasmtest.OpDrop})...)

	require.ErrorContains(t, Deterministic().CheckFunction(0, code), "SIMD operator detected: v128.const.")
	// float lanes are reported as floats by the deterministic policy
	require.ErrorContains(t, Deterministic().CheckFunction(0, body(0xfd, 0xe4, 0x01, wasmtest.OpDrop)),
		"Non-deterministic operator detected: f32x4.add.")
	require.ErrorContains(t, New(types.GatekeeperConfig{}).CheckFunction(0, code), "SIMD operator detected: v128.const. The Wasm SIMD extension is not supported.")
	require.NoError(t, New(types.GatekeeperConfig{AllowSIMD: true}).CheckFunction(0, code))
}

func TestInvalidInstruction(t *testing.T) {
	err := Deterministic().CheckFunction(7, []byte{0x41})
	var compileErr types.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Contains(t, compileErr.Msg, "Invalid instruction in function 7")
	assert.Empty(t, compileErr.Operator)
}

func TestCheckModuleReportsFunctionIndex(t *testing.T) {
	b := wasmtest.New()
	b.ImportFunc("env", "debug", b.Type([]wasmbin.ValueType{wasmtest.I32}, nil))
	wasmtest.ContractBase(b)
	// i64.const 1; f64.convert_i64_s; drop
	b.Func(b.Type(nil, nil), wasmtest.Cat(wasmtest.I64Const(1), []byte{0xb9, wasmtest.OpDrop})...)
	m, err := wasmbin.Parse(b.Build())
	require.NoError(t, err)

	require.NoError(t, New(types.GatekeeperConfig{}).Check(m))

	err = Chain{New(types.GatekeeperConfig{}), Deterministic()}.Check(m)
	var compileErr types.CompileError
	require.ErrorAs(t, err, &compileErr)
	// one import plus the four base functions
	assert.Equal(t, 5, compileErr.FunctionIndex)
	assert.Equal(t, "f64.convert_i64_s", compileErr.Operator)
}

func TestContractPassesBothPolicies(t *testing.T) {
	m, err := wasmbin.Parse(wasmtest.Contract())
	require.NoError(t, err)
	require.NoError(t, Chain{New(types.GatekeeperConfig{}), Deterministic()}.Check(m))
}

// TestFamilyOutcomes pins the decision for every operator of the table.
func TestFamilyOutcomes(t *testing.T) {
	deterministicFamilies := map[opcode.Family]bool{opcode.Core: true, opcode.SignExtension: true}
	defaultFamilies := map[opcode.Family]bool{
		opcode.Core: true, opcode.Float: true, opcode.SaturatingFloatToInt: true, opcode.SignExtension: true,
	}
	neverAllowed := map[opcode.Family]bool{opcode.RelaxedSIMD: true, opcode.GC: true, opcode.MemoryControl: true}

	deterministic := Deterministic()
	closed := New(types.GatekeeperConfig{})
	open := New(allToggles)

	for _, op := range opcode.All() {
		assert.Equal(t, deterministicFamilies[op.Family] && !op.IsFloat(), deterministic.Allows(op), "deterministic %s", op)
		assert.Equal(t, defaultFamilies[op.Family], closed.Allows(op), "default gatekeeper %s", op)
		assert.Equal(t, !neverAllowed[op.Family], open.Allows(op), "open gatekeeper %s", op)
	}

	// every family that can be rejected has a dedicated message
	for _, f := range opcode.Families() {
		if defaultFamilies[f] {
			continue
		}
		_, ok := rejections[f]
		assert.True(t, ok, "no message for family %s", f)
	}
}

func TestTogglesMapToFamilies(t *testing.T) {
	cases := map[string]struct {
		cfg      types.GatekeeperConfig
		families []opcode.Family
	}{
		"reference types": {types.GatekeeperConfig{AllowReferenceTypes: true}, []opcode.Family{opcode.ReferenceTypes, opcode.TailCall, opcode.FunctionReferences}},
		"threads":         {types.GatekeeperConfig{AllowThreads: true}, []opcode.Family{opcode.Threads}},
		"simd":            {types.GatekeeperConfig{AllowSIMD: true}, []opcode.Family{opcode.SIMD}},
		"bulk memory":     {types.GatekeeperConfig{AllowBulkMemory: true}, []opcode.Family{opcode.BulkMemory}},
		"exceptions":      {types.GatekeeperConfig{AllowExceptions: true}, []opcode.Family{opcode.LegacyExceptions, opcode.Exceptions}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := New(tc.cfg)
			for _, f := range tc.families {
				assert.True(t, p.allowed[f], f.String())
			}
			assert.False(t, p.allowed[opcode.RelaxedSIMD])
			assert.False(t, p.allowed[opcode.GC])
		})
	}
}
