package types

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultInitialMemoryLimitPages = 512
	defaultTableSizeLimitElements  = 2500
	defaultMaxImports              = 100
	defaultMaxFunctions            = 20_000
	defaultMaxFunctionParams       = 100
	defaultMaxTotalFunctionParams  = 10_000
	defaultMaxFunctionResults      = 1

	// WasmPageSize is the size of one linear memory page.
	WasmPageSize = 64 * 1024
)

// Config defines the configuration for the VM.
type Config struct {
	WasmLimits WasmLimits       `json:"wasm_limits" yaml:"wasm_limits"`
	Cache      CacheOptions     `json:"cache" yaml:"cache"`
	Gatekeeper GatekeeperConfig `json:"gatekeeper" yaml:"gatekeeper"`
}

// WasmLimits bounds the shape of an uploaded module. Unset fields fall back
// to the defaults of the ...OrDefault getters.
type WasmLimits struct {
	InitialMemoryLimitPages *uint32 `json:"initial_memory_limit_pages,omitempty" yaml:"initial_memory_limit_pages,omitempty"`
	TableSizeLimitElements  *uint32 `json:"table_size_limit_elements,omitempty" yaml:"table_size_limit_elements,omitempty"`
	MaxImports              *uint32 `json:"max_imports,omitempty" yaml:"max_imports,omitempty"`
	MaxFunctions            *uint32 `json:"max_functions,omitempty" yaml:"max_functions,omitempty"`
	MaxFunctionParams       *uint32 `json:"max_function_params,omitempty" yaml:"max_function_params,omitempty"`
	MaxTotalFunctionParams  *uint32 `json:"max_total_function_params,omitempty" yaml:"max_total_function_params,omitempty"`
	MaxFunctionResults      *uint32 `json:"max_function_results,omitempty" yaml:"max_function_results,omitempty"`
}

func orDefault(v *uint32, def uint32) uint32 {
	if v == nil {
		return def
	}
	return *v
}

func (l WasmLimits) InitialMemoryLimitPagesOrDefault() uint32 {
	return orDefault(l.InitialMemoryLimitPages, defaultInitialMemoryLimitPages)
}

func (l WasmLimits) TableSizeLimitElementsOrDefault() uint32 {
	return orDefault(l.TableSizeLimitElements, defaultTableSizeLimitElements)
}

func (l WasmLimits) MaxImportsOrDefault() uint32 {
	return orDefault(l.MaxImports, defaultMaxImports)
}

func (l WasmLimits) MaxFunctionsOrDefault() uint32 {
	return orDefault(l.MaxFunctions, defaultMaxFunctions)
}

func (l WasmLimits) MaxFunctionParamsOrDefault() uint32 {
	return orDefault(l.MaxFunctionParams, defaultMaxFunctionParams)
}

func (l WasmLimits) MaxTotalFunctionParamsOrDefault() uint32 {
	return orDefault(l.MaxTotalFunctionParams, defaultMaxTotalFunctionParams)
}

func (l WasmLimits) MaxFunctionResultsOrDefault() uint32 {
	return orDefault(l.MaxFunctionResults, defaultMaxFunctionResults)
}

type CacheOptions struct {
	AvailableCapabilities []string `json:"available_capabilities" yaml:"available_capabilities"`
	// InstanceMemoryLimit caps the linear memory of every instance.
	InstanceMemoryLimit Size `json:"instance_memory_limit" yaml:"instance_memory_limit"`
}

// GatekeeperConfig toggles the post-MVP proposals a module may use.
// Floats are always allowed by the gatekeeper; everything here defaults to off.
type GatekeeperConfig struct {
	AllowReferenceTypes bool `json:"allow_reference_types" yaml:"allow_reference_types"`
	AllowThreads        bool `json:"allow_threads" yaml:"allow_threads"`
	AllowSIMD           bool `json:"allow_simd" yaml:"allow_simd"`
	AllowBulkMemory     bool `json:"allow_bulk_memory" yaml:"allow_bulk_memory"`
	AllowExceptions     bool `json:"allow_exceptions" yaml:"allow_exceptions"`
}

// DefaultConfig returns a config advertising DefaultCapabilities with a
// 32 MiB instance memory limit.
func DefaultConfig() Config {
	return Config{
		Cache: CacheOptions{
			AvailableCapabilities: DefaultCapabilities().Sorted(),
			InstanceMemoryLimit:   NewSizeMebi(32),
		},
	}
}

// Capabilities returns the advertised capabilities as a set.
func (c Config) Capabilities() Capabilities {
	return NewCapabilities(c.Cache.AvailableCapabilities...)
}

// MemoryLimitPages converts the instance memory limit to wasm pages, rounding down.
func (c Config) MemoryLimitPages() uint32 {
	pages := c.Cache.InstanceMemoryLimit.uint32 / WasmPageSize
	if pages == 0 {
		return 1
	}
	return pages
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	bz, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(bz, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

type Size struct{ uint32 }

func (s Size) Bytes() uint32 {
	return s.uint32
}

func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.uint32)
}

func (s *Size) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &s.uint32)
}

func (s Size) MarshalYAML() (any, error) {
	return s.uint32, nil
}

func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	return node.Decode(&s.uint32)
}

func NewSize(v uint32) Size {
	return Size{v}
}

func NewSizeKibi(v uint32) Size {
	return Size{v * 1024}
}

func NewSizeMebi(v uint32) Size {
	return Size{v * 1024 * 1024}
}
