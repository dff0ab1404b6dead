package gas

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/opcode"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin/wasmtest"
)

func TestLinearGasCost(t *testing.T) {
	c := LinearGasCost{Base: 10, PerItem: 3}
	assert.Equal(t, uint64(10), c.TotalCost(0))
	assert.Equal(t, uint64(40), c.TotalCost(10))

	maxU64 := ^uint64(0)
	assert.Equal(t, maxU64, LinearGasCost{Base: 1, PerItem: maxU64}.TotalCost(2))
	assert.Equal(t, maxU64, LinearGasCost{Base: maxU64, PerItem: 1}.TotalCost(1))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 96*GasPerUS, cfg.Secp256k1VerifyCost)
	assert.Equal(t, 194*GasPerUS, cfg.Secp256k1RecoverPubkeyCost)
	assert.Equal(t, 279*GasPerUS, cfg.Secp256r1VerifyCost)
	assert.Equal(t, 592*GasPerUS, cfg.Secp256r1RecoverPubkeyCost)
	assert.Equal(t, 35*GasPerUS, cfg.Ed25519VerifyCost)
	assert.Equal(t, (24+21*3)*GasPerUS, cfg.Ed25519BatchVerifyCost.TotalCost(3))
	assert.Equal(t, (36+10*3)*GasPerUS, cfg.Ed25519BatchVerifyOnePubkeyCost.TotalCost(3))
	assert.Equal(t, (68+12*2)*GasPerUS, cfg.Bls12381AggregateG1Cost.TotalCost(2))
	assert.Equal(t, (103+24*2)*GasPerUS, cfg.Bls12381AggregateG2Cost.TotalCost(2))
	assert.Equal(t, 563*GasPerUS, cfg.Bls12381HashToG1Cost)
	assert.Equal(t, 871*GasPerUS, cfg.Bls12381HashToG2Cost)
	assert.Equal(t, (2112+163*4)*GasPerUS, cfg.Bls12381PairingEqualityCost.TotalCost(4))
}

func TestDefaultCost(t *testing.T) {
	byName := make(map[string]*opcode.Operator)
	for _, op := range opcode.All() {
		byName[op.Name] = op
	}
	assert.Equal(t, uint64(115*14), DefaultCost(byName["br_if"]))
	assert.Equal(t, uint64(115*14), DefaultCost(byName["end"]))
	assert.Equal(t, uint64(115), DefaultCost(byName["i64.const"]))
	assert.Equal(t, uint64(115), DefaultCost(byName["i64.extend8_s"]))
	assert.Equal(t, uint64(115), DefaultCost(byName["block"]))

	for name := range accounting {
		if op, ok := byName[name]; ok {
			assert.True(t, IsAccounting(op), name)
		}
	}
}

// adder exports add(a, b) = a + b next to the contract base.
func adder() []byte {
	b := wasmtest.ContractBase(wasmtest.New())
	add := b.Func(b.Type([]wasmbin.ValueType{wasmtest.I32, wasmtest.I32}, []wasmbin.ValueType{wasmtest.I32}),
		wasmtest.Cat(wasmtest.LocalGet(0), wasmtest.LocalGet(1), []byte{wasmtest.OpI32Add})...)
	b.ExportFunc("add", add)
	return b.Build()
}

// addCost is the charge for local.get, local.get, i32.add and end.
const addCost = 3*115 + 115*14

func instantiate(t *testing.T, code []byte, initialLimit uint64) api.Module {
	t.Helper()
	m, err := wasmbin.Parse(code)
	require.NoError(t, err)
	instrumented, err := Instrument(m, DefaultCost, initialLimit)
	require.NoError(t, err)

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })
	mod, err := r.Instantiate(ctx, instrumented)
	require.NoError(t, err)
	return mod
}

func TestInstrumentChargesPerBasicBlock(t *testing.T) {
	ctx := context.Background()
	mod := instantiate(t, adder(), 0)

	points, err := RemainingPoints(mod)
	require.NoError(t, err)
	assert.Zero(t, points)

	require.NoError(t, SetRemainingPoints(mod, 1_000_000))
	res, err := mod.ExportedFunction("add").Call(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5}, res)

	points, err = RemainingPoints(mod)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000-addCost), points)

	exhausted, err := PointsExhausted(mod)
	require.NoError(t, err)
	assert.False(t, exhausted)
}

func TestInstrumentTrapsWhenExhausted(t *testing.T) {
	ctx := context.Background()
	mod := instantiate(t, adder(), 0)

	require.NoError(t, SetRemainingPoints(mod, addCost-1))
	_, err := mod.ExportedFunction("add").Call(ctx, 2, 3)
	require.ErrorContains(t, err, "unreachable")

	exhausted, err := PointsExhausted(mod)
	require.NoError(t, err)
	assert.True(t, exhausted)
	// the failed charge is not subtracted
	points, err := RemainingPoints(mod)
	require.NoError(t, err)
	assert.Equal(t, uint64(addCost-1), points)

	// resetting the points clears the flag
	require.NoError(t, SetRemainingPoints(mod, addCost))
	_, err = mod.ExportedFunction("add").Call(ctx, 2, 3)
	require.NoError(t, err)
	points, err = RemainingPoints(mod)
	require.NoError(t, err)
	assert.Zero(t, points)
	exhausted, err = PointsExhausted(mod)
	require.NoError(t, err)
	assert.False(t, exhausted)
}

func TestInstrumentKeepsExistingGlobals(t *testing.T) {
	ctx := context.Background()
	mod := instantiate(t, wasmtest.Contract(), 1_000_000)

	// allocate uses the heap pointer in global 0
	res, err := mod.ExportedFunction("allocate").Call(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(wasmtest.HeapStart), res[0])
	res, err = mod.ExportedFunction("allocate").Call(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(wasmtest.HeapStart+12+100), res[0])

	points, err := RemainingPoints(mod)
	require.NoError(t, err)
	assert.Less(t, points, uint64(1_000_000))
}

func TestInstrumentLoopIsBounded(t *testing.T) {
	ctx := context.Background()
	b := wasmtest.ContractBase(wasmtest.New())
	// loop br 0 end
	spin := b.Func(b.Type(nil, nil), wasmtest.OpLoop, wasmtest.BlockEmpty, wasmtest.OpBr, 0x00, wasmtest.OpEnd)
	b.ExportFunc("spin", spin)
	mod := instantiate(t, b.Build(), 0)

	require.NoError(t, SetRemainingPoints(mod, 10_000_000))
	_, err := mod.ExportedFunction("spin").Call(ctx)
	require.Error(t, err)
	exhausted, err := PointsExhausted(mod)
	require.NoError(t, err)
	assert.True(t, exhausted)
}

func TestInstrumentModuleWithoutGlobalsOrExports(t *testing.T) {
	b := wasmtest.New()
	b.Func(b.Type(nil, nil), wasmtest.OpNop)
	m, err := wasmbin.Parse(b.Build())
	require.NoError(t, err)
	require.Zero(t, m.GlobalCount)

	out, err := Instrument(m, nil, 5)
	require.NoError(t, err)
	rewritten, err := wasmbin.Parse(out)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), rewritten.GlobalCount)
	require.Len(t, rewritten.Exports, 2)
	assert.Equal(t, RemainingPointsExport, rewritten.Exports[0].Name)
	assert.Equal(t, uint32(0), rewritten.Exports[0].Index)
	assert.Equal(t, PointsExhaustedExport, rewritten.Exports[1].Name)
	assert.Equal(t, uint32(1), rewritten.Exports[1].Index)

	mod := instantiate(t, b.Build(), 5)
	points, err := RemainingPoints(mod)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), points)
}

func TestInstrumentRejectsReservedExport(t *testing.T) {
	b := wasmtest.ContractBase(wasmtest.New())
	b.Global(wasmtest.I64, true, wasmtest.I64Const(0)...)
	b.Export(RemainingPointsExport, wasmbin.ExternalGlobal, 1)
	m, err := wasmbin.Parse(b.Build())
	require.NoError(t, err)
	_, err = Instrument(m, nil, 0)
	require.ErrorContains(t, err, "reserved for metering")
}

func TestUninstrumentedModule(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	mod, err := r.Instantiate(ctx, wasmtest.Contract())
	require.NoError(t, err)

	_, err = RemainingPoints(mod)
	require.ErrorIs(t, err, ErrNotInstrumented)
	require.ErrorIs(t, SetRemainingPoints(mod, 1), ErrNotInstrumented)
	_, err = PointsExhausted(mod)
	require.ErrorIs(t, err, ErrNotInstrumented)
}
