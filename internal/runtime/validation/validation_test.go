package validation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin/wasmtest"
	"github.com/CosmWasm/wasmsandbox/types"
)

func checkCode(t *testing.T, code []byte, limits types.WasmLimits) error {
	t.Helper()
	_, err := CheckWasm(code, types.DefaultCapabilities(), limits, zerolog.Nop())
	return err
}

func requireValidationMsg(t *testing.T, err error, msg string) {
	t.Helper()
	var validationErr types.StaticValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, msg, validationErr.Msg)
}

func u32(v uint32) *uint32 { return &v }

func TestCheckWasmAcceptsMinimalContract(t *testing.T) {
	module, err := CheckWasm(wasmtest.Contract(), types.DefaultCapabilities(), types.WasmLimits{}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, module)
}

func TestCheckWasmIsIdempotent(t *testing.T) {
	code := wasmtest.Contract()
	module, err := wasmbin.Parse(code)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, CheckModule(module, types.DefaultCapabilities(), types.WasmLimits{}, zerolog.Nop()))
	}

	bad := wasmtest.New().Memory(1, nil).Memory(1, nil).Build()
	first := checkCode(t, bad, types.WasmLimits{})
	second := checkCode(t, bad, types.WasmLimits{})
	require.Error(t, first)
	assert.Equal(t, first, second)
}

func TestCheckWasmRejectsGarbage(t *testing.T) {
	err := checkCode(t, []byte("not wasm"), types.WasmLimits{})
	var validationErr types.StaticValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Msg, "Wasm bytecode error")
}

func TestMemories(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		requireValidationMsg(t, checkCode(t, wasmtest.New().Build(), types.WasmLimits{}),
			"Wasm contract must contain exactly one memory")
	})

	t.Run("two memories are rejected before anything else", func(t *testing.T) {
		b := wasmtest.New().Memory(1, nil).Memory(1, nil)
		// also unbound table and no exports at all
		b.Table(1, nil)
		requireValidationMsg(t, checkCode(t, b.Build(), types.WasmLimits{}),
			"Wasm contract must contain exactly one memory")
	})

	t.Run("initial size at the configured limit", func(t *testing.T) {
		require.NoError(t, checkCode(t, wasmtest.Contract(), types.WasmLimits{InitialMemoryLimitPages: u32(1)}))
		requireValidationMsg(t, checkCode(t, wasmtest.Contract(), types.WasmLimits{InitialMemoryLimitPages: u32(0)}),
			"Wasm contract memory's minimum must not exceed 0 pages.")
	})

	t.Run("initial size too large", func(t *testing.T) {
		requireValidationMsg(t, checkCode(t, wasmtest.New().Memory(513, nil).Build(), types.WasmLimits{}),
			"Wasm contract memory's minimum must not exceed 512 pages.")
	})

	t.Run("maximum set", func(t *testing.T) {
		requireValidationMsg(t, checkCode(t, wasmtest.New().Memory(1, wasmtest.Ptr(5)).Build(), types.WasmLimits{}),
			"Wasm contract memory's maximum must be unset. The host will set it for you.")
	})
}

func mustParse(t *testing.T, code []byte) *wasmbin.Module {
	t.Helper()
	m, err := wasmbin.Parse(code)
	require.NoError(t, err)
	return m
}

func TestTables(t *testing.T) {
	contractWithTable := func(min uint32, max *uint32) []byte {
		b := wasmtest.New().Table(min, max)
		return wasmtest.ContractBase(b).Build()
	}

	require.NoError(t, checkCode(t, contractWithTable(10, wasmtest.Ptr(2500)), types.WasmLimits{}))

	requireValidationMsg(t, checkCode(t, contractWithTable(10, nil), types.WasmLimits{}),
		"Wasm contract must not have unbound table section")

	requireValidationMsg(t, checkCode(t, contractWithTable(10, wasmtest.Ptr(2501)), types.WasmLimits{}),
		"Wasm contract's table size limit exceeded: 2501 > 2500")

	requireValidationMsg(t, checkCode(t, contractWithTable(1, wasmtest.Ptr(20)), types.WasmLimits{TableSizeLimitElements: u32(10)}),
		"Wasm contract's table size limit exceeded: 20 > 10")

	b := wasmtest.New().Table(1, wasmtest.Ptr(1)).Table(1, wasmtest.Ptr(1))
	requireValidationMsg(t, checkCode(t, wasmtest.ContractBase(b).Build(), types.WasmLimits{}),
		"Wasm contract must not have more than 1 table section")
}

// contractWithMarkers builds a contract that exports the given markers
// instead of interface_version_8.
func contractWithMarkers(markers ...string) []byte {
	b := wasmtest.New().Memory(1, nil)
	noop := b.Func(b.Type(nil, nil))
	for _, name := range []string{"allocate", "deallocate", "instantiate"} {
		b.ExportFunc(name, noop)
	}
	for _, m := range markers {
		b.ExportFunc(m, noop)
	}
	return b.Build()
}

func TestInterfaceVersion(t *testing.T) {
	require.NoError(t, checkCode(t, contractWithMarkers("interface_version_8"), types.WasmLimits{}))

	requireValidationMsg(t, checkCode(t, contractWithMarkers(), types.WasmLimits{}),
		"Wasm contract missing a required marker export: interface_version_*")

	requireValidationMsg(t, checkCode(t, contractWithMarkers("interface_version_8", "interface_version_9"), types.WasmLimits{}),
		"Wasm contract contains more than one marker export: interface_version_*")

	requireValidationMsg(t, checkCode(t, contractWithMarkers("interface_version_7"), types.WasmLimits{}),
		"Wasm contract uses deprecated interface version interface_version_7. Only interface_version_8 is supported (see https://github.com/CosmWasm/cosmwasm/blob/main/packages/vm/README.md)")

	requireValidationMsg(t, checkCode(t, contractWithMarkers("interface_version_9"), types.WasmLimits{}),
		"Wasm contract has unknown interface_version_* marker export (see https://github.com/CosmWasm/cosmwasm/blob/main/packages/vm/README.md)")

	// prefix matching is exact
	requireValidationMsg(t, checkCode(t, contractWithMarkers("Interface_version_8"), types.WasmLimits{}),
		"Wasm contract missing a required marker export: interface_version_*")
}

func TestRequiredExports(t *testing.T) {
	b := wasmtest.New().Memory(1, nil)
	noop := b.Func(b.Type(nil, nil))
	b.ExportFunc("interface_version_8", noop).ExportFunc("allocate", noop).ExportFunc("instantiate", noop)

	requireValidationMsg(t, checkCode(t, b.Build(), types.WasmLimits{}),
		`Wasm contract doesn't have required export: "deallocate". Exports required by VM: ["allocate", "deallocate", "instantiate"].`)
}

func TestImports(t *testing.T) {
	t.Run("supported", func(t *testing.T) {
		b := wasmtest.New()
		b.ImportFunc("env", "db_read", b.Type([]wasmbin.ValueType{wasmtest.I32}, []wasmbin.ValueType{wasmtest.I32}))
		b.ImportFunc("env", "debug", b.Type([]wasmbin.ValueType{wasmtest.I32}, nil))
		require.NoError(t, checkCode(t, wasmtest.ContractBase(b).Build(), types.WasmLimits{}))
	})

	t.Run("unsupported", func(t *testing.T) {
		b := wasmtest.New()
		typ := b.Type(nil, nil)
		b.ImportFunc("env", "db_read", typ)
		b.ImportFunc("env", "foo", typ)
		err := checkCode(t, wasmtest.ContractBase(b).Build(), types.WasmLimits{})
		var validationErr types.StaticValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Msg,
			`Wasm contract requires unsupported import: "env.foo". Required imports: {"env.db_read", "env.foo"}. Available imports: ["env.db_read", `)
	})

	t.Run("wrong module", func(t *testing.T) {
		b := wasmtest.New()
		b.ImportFunc("other", "db_read", b.Type(nil, nil))
		err := checkCode(t, wasmtest.ContractBase(b).Build(), types.WasmLimits{})
		require.ErrorContains(t, err, `unsupported import: "other.db_read"`)
	})

	t.Run("non-function", func(t *testing.T) {
		b := wasmtest.New()
		b.ImportGlobal("env", "db_read", wasmtest.I32, false)
		requireValidationMsg(t, checkCode(t, wasmtest.ContractBase(b).Build(), types.WasmLimits{}),
			`Wasm contract requires non-function import: "env.db_read". Right now, all supported imports are functions.`)
	})

	t.Run("count is checked before names", func(t *testing.T) {
		b := wasmtest.New()
		typ := b.Type(nil, nil)
		for i := 0; i < 3; i++ {
			b.ImportFunc("env", "nope", typ)
		}
		requireValidationMsg(t, checkCode(t, wasmtest.ContractBase(b).Build(), types.WasmLimits{MaxImports: u32(2)}),
			"Import count exceeds limit. Imports: 3. Limit: 2.")
	})

	t.Run("required list is limited", func(t *testing.T) {
		b := wasmtest.New()
		typ := b.Type(nil, nil)
		for i := 0; i < 50; i++ {
			b.ImportFunc("env", "unknown_import_"+string(rune('a'+i%26))+string(rune('a'+i/26)), typ)
		}
		err := checkCode(t, wasmtest.ContractBase(b).Build(), types.WasmLimits{})
		require.ErrorContains(t, err, "more}. Available imports:")
	})
}

func TestFunctionLimits(t *testing.T) {
	// the base contract defines 4 functions with 1, 1, 0 and 3 parameters
	code := wasmtest.Contract()

	requireValidationMsg(t, checkCode(t, code, types.WasmLimits{MaxFunctions: u32(3)}),
		"Wasm contract contains more than 3 functions")
	requireValidationMsg(t, checkCode(t, code, types.WasmLimits{MaxFunctionParams: u32(2)}),
		"Wasm contract contains function with more than 2 parameters")
	requireValidationMsg(t, checkCode(t, code, types.WasmLimits{MaxTotalFunctionParams: u32(4)}),
		"Wasm contract requires 5 function parameters in total, which exceeds the limit of 4")
	require.NoError(t, checkCode(t, code, types.WasmLimits{MaxFunctions: u32(4), MaxTotalFunctionParams: u32(5)}))

	b := wasmtest.ContractBase(wasmtest.New())
	b.Func(b.Type(nil, []wasmbin.ValueType{wasmtest.I32, wasmtest.I32}), wasmtest.Cat(wasmtest.I32Const(1), wasmtest.I32Const(2))...)
	requireValidationMsg(t, checkCode(t, b.Build(), types.WasmLimits{}),
		"Wasm contract contains function with more than 1 results")
}

func TestCapabilities(t *testing.T) {
	withRequires := func(names ...string) []byte {
		b := wasmtest.ContractBase(wasmtest.New())
		noop := b.Func(b.Type(nil, nil))
		for _, n := range names {
			b.ExportFunc(n, noop)
		}
		return b.Build()
	}

	code := withRequires("requires_iterator", "requires_staking", "requires_", "Requires_nope")
	m := mustParse(t, code)
	assert.Equal(t, types.NewCapabilities("iterator", "staking"), RequiredCapabilitiesFromModule(m))

	require.NoError(t, CheckModule(m, types.NewCapabilities("iterator", "staking", "stargate"), types.WasmLimits{}, zerolog.Nop()))

	err := CheckModule(mustParse(t, withRequires("requires_nutella", "requires_chocolate", "requires_staking")),
		types.NewCapabilities("staking"), types.WasmLimits{}, zerolog.Nop())
	requireValidationMsg(t, err, `Wasm contract requires unsupported capabilities: {"chocolate", "nutella"}`)
}

func TestLimitedDisplay(t *testing.T) {
	assert.Equal(t, "{}", LimitedDisplay(nil, 100))
	assert.Equal(t, "{}", LimitedDisplay(nil, 2))

	fruits := []string{"watermelon", "apple", "banana"}
	assert.Equal(t, `{"apple", "banana", "watermelon"}`, LimitedDisplay(fruits, 100))
	assert.Equal(t, `{"apple", "banana", "watermelon"}`, LimitedDisplay(fruits, 33))
	assert.Equal(t, `{"apple", "banana", ... 1 more}`, LimitedDisplay(fruits, 32))
	assert.Equal(t, `{"apple", "banana", ... 1 more}`, LimitedDisplay(fruits, 31))
	assert.Equal(t, `{"apple", ... 2 more}`, LimitedDisplay(fruits, 30))
	assert.Equal(t, `{"apple", ... 2 more}`, LimitedDisplay(fruits, 21))
	assert.Equal(t, `{... 3 elements}`, LimitedDisplay(fruits, 20))
	assert.Equal(t, `{... 3 elements}`, LimitedDisplay(fruits, 16))

	assert.Equal(t, `["banana", "apple", ... 1 more]`, LimitedList([]string{"banana", "apple", "watermelon"}, 32))

	// the input is not modified
	assert.Equal(t, []string{"watermelon", "apple", "banana"}, fruits)
}
