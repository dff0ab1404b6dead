// Package cosmwasm runs untrusted contract modules in a deterministic,
// gas metered sandbox.
//
// A module goes through static validation, the instruction gatekeeper and
// the metering rewrite before it is compiled. Compiled modules are
// instantiated against a Backend and called through their entry points.
package cosmwasm

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/gas"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/gatekeeper"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/host"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/metrics"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/validation"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin"
	"github.com/CosmWasm/wasmsandbox/types"
)

type options struct {
	registerer  prometheus.Registerer
	featureGate bool
}

// Option configures a VM.
type Option func(*options)

// WithMetrics registers the VM collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithFeatureGate admits modules through the proposal toggles of
// Config.Gatekeeper instead of the deterministic policy. Floats are allowed
// under this gate, so it must not be used for on-chain uploads.
func WithFeatureGate() Option {
	return func(o *options) { o.featureGate = true }
}

// VM compiles and instantiates contract modules on one wazero runtime.
type VM struct {
	cfg       types.Config
	runtime   wazero.Runtime
	policy    *gatekeeper.Policy
	gasConfig *gas.Config
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewVM creates a VM whose instances are bounded by cfg.
func NewVM(cfg types.Config, logger zerolog.Logger, opts ...Option) (*VM, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	vm := &VM{
		cfg:       cfg,
		policy:    gatekeeper.Deterministic(),
		gasConfig: gas.DefaultConfig(),
		logger:    logger,
	}
	if o.featureGate {
		vm.policy = gatekeeper.New(cfg.Gatekeeper)
	}
	if o.registerer != nil {
		m, err := metrics.New(o.registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		vm.metrics = m
	}

	ctx := context.Background()
	vm.runtime = wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithMemoryLimitPages(cfg.MemoryLimitPages()).
		WithCloseOnContextDone(true))
	if _, err := host.RegisterEnv(ctx, vm.runtime); err != nil {
		_ = vm.runtime.Close(ctx)
		return nil, fmt.Errorf("failed to register env module: %w", err)
	}

	logger.Debug().
		Str("policy", vm.policy.String()).
		Uint32("memory_limit_pages", cfg.MemoryLimitPages()).
		Msg("vm created")
	return vm, nil
}

// Close releases the runtime and every module compiled or instantiated on it.
func (vm *VM) Close(ctx context.Context) error {
	return vm.runtime.Close(ctx)
}

// Module is a compiled contract ready to be instantiated.
type Module struct {
	Checksum             types.Checksum
	RequiredCapabilities types.Capabilities
	compiled             wazero.CompiledModule
}

// Close releases the compiled code.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// StaticCheck runs static validation and the instruction gatekeeper on code
// without compiling it.
func (vm *VM) StaticCheck(code []byte) error {
	_, err := vm.check(code)
	return err
}

func (vm *VM) check(code []byte) (*wasmbin.Module, error) {
	parsed, err := wasmbin.Parse(code)
	if err != nil {
		vm.metrics.Rejected(metrics.StageParse)
		vm.logger.Warn().Err(err).Msg("rejecting undecodable wasm")
		return nil, types.NewStaticValidationError("Wasm bytecode error: %s", err)
	}
	if err := validation.CheckModule(parsed, vm.cfg.Capabilities(), vm.cfg.WasmLimits, vm.logger); err != nil {
		vm.metrics.Rejected(metrics.StageValidation)
		return nil, err
	}
	if err := vm.policy.Check(parsed); err != nil {
		vm.metrics.Rejected(metrics.StageGatekeeper)
		vm.logger.Warn().Str("policy", vm.policy.String()).Err(err).Msg("gatekeeper rejected module")
		return nil, err
	}
	return parsed, nil
}

// Compile admits code and compiles the metered module.
func (vm *VM) Compile(ctx context.Context, code []byte) (*Module, error) {
	parsed, err := vm.check(code)
	if err != nil {
		return nil, err
	}
	checksum := types.ChecksumOf(code)

	instrumented, err := gas.Instrument(parsed, gas.DefaultCost, 0)
	if err != nil {
		vm.metrics.Rejected(metrics.StageInstrument)
		return nil, types.CompileError{Msg: fmt.Sprintf("metering rewrite failed: %v", err)}
	}
	compiled, err := vm.runtime.CompileModule(ctx, instrumented)
	if err != nil {
		vm.metrics.Rejected(metrics.StageCompile)
		vm.logger.Warn().Str("checksum", checksum.String()).Err(err).Msg("compilation failed")
		return nil, types.CompileError{Msg: err.Error()}
	}

	vm.metrics.Admitted()
	vm.logger.Info().
		Str("checksum", checksum.String()).
		Int("functions", parsed.FunctionCount()).
		Msg("module admitted")
	return &Module{
		Checksum:             checksum,
		RequiredCapabilities: validation.RequiredCapabilitiesFromModule(parsed),
		compiled:             compiled,
	}, nil
}
