package cosmwasm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/constants"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/host"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/memory"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/metrics"
	"github.com/CosmWasm/wasmsandbox/types"
)

// InstanceOptions are the per instance settings of Instantiate.
type InstanceOptions struct {
	GasLimit uint64
	// PrintDebug forwards messages of the debug import to the VM logger.
	// Leave it off in production.
	PrintDebug bool
}

// Instance is a contract instance bound to a backend. It is not safe for
// concurrent calls.
type Instance struct {
	env     *host.Environment
	mod     api.Module
	metrics *metrics.Metrics
	logger  zerolog.Logger
	// total of the last GasReport
	gasUsed uint64
}

// Instantiate creates an instance of module and moves the storage and
// querier of backend into it.
func (vm *VM) Instantiate(ctx context.Context, module *Module, backend types.Backend, opts InstanceOptions) (*Instance, error) {
	if backend.API == nil {
		return nil, errors.New("backend API must be set")
	}
	logger := vm.logger.With().Str("checksum", module.Checksum.String()).Logger()
	env := host.NewEnvironment(backend.API, vm.gasConfig, opts.GasLimit, logger)
	if opts.PrintDebug {
		env.SetDebugHandler(host.LogDebugHandler(logger))
	}

	// Instances are anonymous so one runtime can hold several of the same code.
	mod, err := vm.runtime.InstantiateModule(host.WithEnvironment(ctx, env), module.compiled,
		wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		if types.IsGasDepletion(err) {
			return nil, types.GasDepletionError{}
		}
		return nil, types.InstantiationError{Msg: err.Error()}
	}

	env.SetInstance(mod)
	if err := env.SetGasLeft(opts.GasLimit); err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	env.MoveIn(backend.Storage, backend.Querier)

	logger.Debug().Uint64("gas_limit", opts.GasLimit).Msg("instance created")
	return &Instance{env: env, mod: mod, metrics: vm.metrics, logger: logger}, nil
}

// Call copies args into guest memory, invokes entryPoint with pointers to
// them and returns the content of the Region it answers with. Storage
// writes fail while readonly is set.
func (i *Instance) Call(ctx context.Context, entryPoint string, readonly bool, args ...[]byte) ([]byte, error) {
	i.env.SetStorageReadonly(readonly)

	result, err := i.call(ctx, entryPoint, args)
	report, reportErr := i.env.GasReport()
	if reportErr == nil {
		total := report.UsedInternally + report.UsedExternally
		used := total - i.gasUsed
		i.gasUsed = total
		i.metrics.Called(entryPoint, outcome(err), used)
		i.logger.Debug().
			Str("entry_point", entryPoint).
			Uint64("gas_used", used).
			Err(err).
			Msg("call finished")
	}
	return result, err
}

func (i *Instance) call(ctx context.Context, entryPoint string, args [][]byte) ([]byte, error) {
	ptrs := make([]uint64, len(args))
	for n, arg := range args {
		ptr, err := memory.WriteToContract(ctx, i.mod.Memory(), i.env, arg)
		if err != nil {
			return nil, fmt.Errorf("failed to write argument %d: %w", n, err)
		}
		ptrs[n] = uint64(ptr)
	}

	res, err := i.env.CallFunction1(ctx, entryPoint, ptrs...)
	if err != nil {
		return nil, err
	}
	data, err := memory.ReadRegion(i.mod.Memory(), uint32(res), constants.MaxLengthResult)
	if err != nil {
		return nil, types.CommunicationError{Msg: err.Error()}
	}
	if err := i.env.CallFunction0(ctx, "deallocate", res); err != nil {
		return nil, err
	}
	return data, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case types.IsGasDepletion(err):
		return metrics.OutcomeOutOfGas
	case errors.As(err, &types.WriteAccessDeniedError{}):
		return metrics.OutcomeDenied
	case errors.As(err, &types.AbortedError{}):
		return metrics.OutcomeAborted
	case errors.As(err, &types.MaxCallDepthExceededError{}):
		return metrics.OutcomeDepthLimit
	default:
		return metrics.OutcomeError
	}
}

// GasReport summarises the gas used since the instance was created.
func (i *Instance) GasReport() (types.GasReport, error) {
	return i.env.GasReport()
}

// GasLeft returns the guest visible gas counter.
func (i *Instance) GasLeft() (uint64, error) {
	return i.env.GasLeft()
}

// Recycle hands storage and querier back to the caller and makes storage
// readonly again. Calls touching them fail until a later Rebind.
func (i *Instance) Recycle() (types.Storage, types.Querier) {
	return i.env.MoveOut()
}

// Rebind moves new storage and querier handles in for the next call.
func (i *Instance) Rebind(storage types.Storage, querier types.Querier) {
	i.env.MoveIn(storage, querier)
}

// Close tears the instance down and clears the back-reference of its
// environment.
func (i *Instance) Close(ctx context.Context) error {
	i.env.SetInstance(nil)
	return i.mod.Close(ctx)
}
