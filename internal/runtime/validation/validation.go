// Package validation statically checks contract modules before they are
// compiled.
package validation

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/constants"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin"
	"github.com/CosmWasm/wasmsandbox/types"
)

// maxDisplayLength bounds user controlled lists embedded in error messages.
const maxDisplayLength = 200

type check func(m *wasmbin.Module, available types.Capabilities, limits types.WasmLimits) error

// checks run in this order; the first failure is returned.
var checks = []struct {
	name string
	run  check
}{
	{"memories", checkMemories},
	{"tables", checkTables},
	{"interface_version", checkInterfaceVersion},
	{"exports", checkExports},
	{"imports", checkImports},
	{"functions", checkFunctions},
	{"capabilities", checkCapabilities},
}

// CheckWasm parses code and runs CheckModule on it.
func CheckWasm(code []byte, available types.Capabilities, limits types.WasmLimits, logger zerolog.Logger) (*wasmbin.Module, error) {
	module, err := wasmbin.Parse(code)
	if err != nil {
		logger.Warn().Err(err).Msg("rejecting undecodable wasm")
		return nil, types.NewStaticValidationError("Wasm bytecode error: %s", err)
	}
	if err := CheckModule(module, available, limits, logger); err != nil {
		return nil, err
	}
	return module, nil
}

// CheckModule validates the structure of a parsed module against the host
// limits and capabilities. It has no side effects besides logging.
func CheckModule(module *wasmbin.Module, available types.Capabilities, limits types.WasmLimits, logger zerolog.Logger) error {
	for _, c := range checks {
		if err := c.run(module, available, limits); err != nil {
			logger.Warn().Str("check", c.name).Err(err).Msg("static validation failed")
			return err
		}
	}
	logger.Debug().
		Int("functions", module.FunctionCount()).
		Int("imports", len(module.Imports)).
		Msg("static validation passed")
	return nil
}

func checkMemories(m *wasmbin.Module, _ types.Capabilities, limits types.WasmLimits) error {
	if len(m.Memories) != 1 {
		return types.NewStaticValidationError("Wasm contract must contain exactly one memory")
	}
	mem := m.Memories[0]
	limit := limits.InitialMemoryLimitPagesOrDefault()
	if mem.Min > uint64(limit) {
		return types.NewStaticValidationError("Wasm contract memory's minimum must not exceed %d pages.", limit)
	}
	if mem.Max != nil {
		return types.NewStaticValidationError("Wasm contract memory's maximum must be unset. The host will set it for you.")
	}
	return nil
}

func checkTables(m *wasmbin.Module, _ types.Capabilities, limits types.WasmLimits) error {
	switch len(m.Tables) {
	case 0:
		return nil
	case 1:
		table := m.Tables[0]
		if table.Limits.Max == nil {
			return types.NewStaticValidationError("Wasm contract must not have unbound table section")
		}
		limit := limits.TableSizeLimitElementsOrDefault()
		if *table.Limits.Max > uint64(limit) {
			return types.NewStaticValidationError("Wasm contract's table size limit exceeded: %d > %d", *table.Limits.Max, limit)
		}
		return nil
	default:
		return types.NewStaticValidationError("Wasm contract must not have more than 1 table section")
	}
}

func checkInterfaceVersion(m *wasmbin.Module, _ types.Capabilities, _ types.WasmLimits) error {
	var markers []string
	for name := range m.ExportedFunctionNames() {
		if strings.HasPrefix(name, constants.InterfaceVersionPrefix) {
			markers = append(markers, name)
		}
	}
	switch len(markers) {
	case 0:
		return types.NewStaticValidationError("Wasm contract missing a required marker export: interface_version_*")
	case 1:
	default:
		return types.NewStaticValidationError("Wasm contract contains more than one marker export: interface_version_*")
	}

	switch marker := markers[0]; marker {
	case constants.InterfaceVersion:
		return nil
	case "interface_version_5", "interface_version_6", "interface_version_7":
		return types.NewStaticValidationError(
			"Wasm contract uses deprecated interface version %s. Only %s is supported (see %s)",
			marker, constants.InterfaceVersion, constants.ReadmeURL)
	default:
		return types.NewStaticValidationError(
			"Wasm contract has unknown interface_version_* marker export (see %s)", constants.ReadmeURL)
	}
}

func checkExports(m *wasmbin.Module, _ types.Capabilities, _ types.WasmLimits) error {
	exported := m.ExportedFunctionNames()
	for _, required := range constants.RequiredExports {
		if _, ok := exported[required]; !ok {
			return types.NewStaticValidationError(
				"Wasm contract doesn't have required export: %q. Exports required by VM: %s.",
				required, LimitedList(constants.RequiredExports, maxDisplayLength))
		}
	}
	return nil
}

func checkImports(m *wasmbin.Module, _ types.Capabilities, limits types.WasmLimits) error {
	limit := limits.MaxImportsOrDefault()
	if len(m.Imports) > int(limit) {
		return types.NewStaticValidationError("Import count exceeds limit. Imports: %d. Limit: %d.", len(m.Imports), limit)
	}

	supported := constants.SupportedImports()
	isSupported := make(map[string]struct{}, len(supported))
	for _, name := range supported {
		isSupported[name] = struct{}{}
	}

	required := make(map[string]struct{}, len(m.Imports))
	for _, imp := range m.Imports {
		required[imp.FullName()] = struct{}{}
	}
	requiredNames := make([]string, 0, len(required))
	for name := range required {
		requiredNames = append(requiredNames, name)
	}

	for _, imp := range m.Imports {
		name := imp.FullName()
		if _, ok := isSupported[name]; !ok {
			return types.NewStaticValidationError(
				"Wasm contract requires unsupported import: %q. Required imports: %s. Available imports: %s.",
				name, LimitedDisplay(requiredNames, maxDisplayLength), quoted(supported))
		}
		if imp.Kind != wasmbin.ExternalFunc {
			return types.NewStaticValidationError(
				"Wasm contract requires non-function import: %q. Right now, all supported imports are functions.", name)
		}
	}
	return nil
}

func checkFunctions(m *wasmbin.Module, _ types.Capabilities, limits types.WasmLimits) error {
	if maxFuncs := limits.MaxFunctionsOrDefault(); m.FunctionCount() > int(maxFuncs) {
		return types.NewStaticValidationError("Wasm contract contains more than %d functions", maxFuncs)
	}
	if maxParams := limits.MaxFunctionParamsOrDefault(); m.MaxFunctionParams > int(maxParams) {
		return types.NewStaticValidationError("Wasm contract contains function with more than %d parameters", maxParams)
	}
	if maxTotal := limits.MaxTotalFunctionParamsOrDefault(); m.TotalFunctionParams > int(maxTotal) {
		return types.NewStaticValidationError(
			"Wasm contract requires %d function parameters in total, which exceeds the limit of %d",
			m.TotalFunctionParams, maxTotal)
	}
	if maxResults := limits.MaxFunctionResultsOrDefault(); m.MaxFunctionResults > int(maxResults) {
		return types.NewStaticValidationError("Wasm contract contains function with more than %d results", maxResults)
	}
	return nil
}

func checkCapabilities(m *wasmbin.Module, available types.Capabilities, _ types.WasmLimits) error {
	required := RequiredCapabilitiesFromModule(m)
	missing := required.Difference(available)
	if len(missing) == 0 {
		return nil
	}
	return types.NewStaticValidationError(
		"Wasm contract requires unsupported capabilities: %s", LimitedDisplay(missing, maxDisplayLength))
}

// RequiredCapabilitiesFromModule collects the capabilities declared by
// requires_<name> function exports. The prefix is case sensitive and an
// empty name is ignored.
func RequiredCapabilitiesFromModule(m *wasmbin.Module) types.Capabilities {
	out := make(types.Capabilities)
	for name := range m.ExportedFunctionNames() {
		if capability, ok := strings.CutPrefix(name, constants.RequiresPrefix); ok && capability != "" {
			out[capability] = struct{}{}
		}
	}
	return out
}

func quoted(list []string) string {
	parts := make([]string, len(list))
	for i, s := range list {
		parts[i] = `"` + s + `"`
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
