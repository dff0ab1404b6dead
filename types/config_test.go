package types

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Ptr[T any](v T) *T {
	return &v
}

func TestConfigJSON(t *testing.T) {
	config := Config{
		WasmLimits: WasmLimits{
			InitialMemoryLimitPages: Ptr(uint32(15)),
			TableSizeLimitElements:  Ptr(uint32(20)),
			MaxImports:              Ptr(uint32(100)),
			MaxFunctionParams:       Ptr(uint32(0)),
		},
		Cache: CacheOptions{
			AvailableCapabilities: []string{"a", "b"},
			InstanceMemoryLimit:   NewSize(100),
		},
	}
	expected := `{"wasm_limits":{"initial_memory_limit_pages":15,"table_size_limit_elements":20,"max_imports":100,"max_function_params":0},"cache":{"available_capabilities":["a","b"],"instance_memory_limit":100},"gatekeeper":{"allow_reference_types":false,"allow_threads":false,"allow_simd":false,"allow_bulk_memory":false,"allow_exceptions":false}}`

	bz, err := json.Marshal(config)
	require.NoError(t, err)
	assert.Equal(t, expected, string(bz))

	var restored Config
	require.NoError(t, json.Unmarshal(bz, &restored))
	assert.Equal(t, config, restored)
}

func TestWasmLimitsDefaults(t *testing.T) {
	var limits WasmLimits
	assert.Equal(t, uint32(512), limits.InitialMemoryLimitPagesOrDefault())
	assert.Equal(t, uint32(2500), limits.TableSizeLimitElementsOrDefault())
	assert.Equal(t, uint32(100), limits.MaxImportsOrDefault())
	assert.Equal(t, uint32(20_000), limits.MaxFunctionsOrDefault())
	assert.Equal(t, uint32(100), limits.MaxFunctionParamsOrDefault())
	assert.Equal(t, uint32(10_000), limits.MaxTotalFunctionParamsOrDefault())
	assert.Equal(t, uint32(1), limits.MaxFunctionResultsOrDefault())

	limits.MaxImports = Ptr(uint32(0))
	assert.Equal(t, uint32(0), limits.MaxImportsOrDefault())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sandbox.yaml")
	content := `
wasm_limits:
  max_imports: 7
cache:
  available_capabilities: [iterator, staking]
  instance_memory_limit: 1048576
gatekeeper:
  allow_bulk_memory: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), cfg.WasmLimits.MaxImportsOrDefault())
	assert.Equal(t, uint32(512), cfg.WasmLimits.InitialMemoryLimitPagesOrDefault())
	assert.Equal(t, []string{"iterator", "staking"}, cfg.Cache.AvailableCapabilities)
	assert.Equal(t, uint32(16), cfg.MemoryLimitPages())
	assert.True(t, cfg.Gatekeeper.AllowBulkMemory)
	assert.False(t, cfg.Gatekeeper.AllowSIMD)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestDefaultConfigMemoryPages(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, uint32(512), cfg.MemoryLimitPages())
	assert.True(t, cfg.Capabilities().Contains(CapIterator))

	cfg.Cache.InstanceMemoryLimit = NewSize(10)
	assert.Equal(t, uint32(1), cfg.MemoryLimitPages())
}
