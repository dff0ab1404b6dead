package host

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/constants"
	"github.com/CosmWasm/wasmsandbox/types"
)

// CallFunction0 calls an export returning nothing.
func (e *Environment) CallFunction0(ctx context.Context, name string, args ...uint64) error {
	_, err := e.callFunction(ctx, name, 0, args)
	return err
}

// CallFunction1 calls an export returning exactly one value.
func (e *Environment) CallFunction1(ctx context.Context, name string, args ...uint64) (uint64, error) {
	res, err := e.callFunction(ctx, name, 1, args)
	if err != nil {
		return 0, err
	}
	return res[0], nil
}

// Allocate calls the guest allocator for a Region of size bytes.
func (e *Environment) Allocate(ctx context.Context, size uint32) (uint32, error) {
	ptr, err := e.CallFunction1(ctx, "allocate", uint64(size))
	if err != nil {
		return 0, err
	}
	if uint32(ptr) == 0 {
		return 0, types.CommunicationError{Msg: "allocate returned a zero address"}
	}
	return uint32(ptr), nil
}

// function resolves an export under the read lock. The returned function is
// invoked without holding the lock since host functions re-enter the
// environment.
func (e *Environment) function(name string) (api.Function, error) {
	var fn api.Function
	err := e.WithInstance(func(mod api.Module) error {
		fn = mod.ExportedFunction(name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, types.ResolveError{Msg: fmt.Sprintf("Could not get export: Missing export %s", name)}
	}
	return fn, nil
}

func (e *Environment) enter() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.data.callDepth >= constants.MaxCallDepth {
		return types.MaxCallDepthExceededError{}
	}
	e.data.callDepth++
	return nil
}

func (e *Environment) leave() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data.callDepth--
}

func (e *Environment) callFunction(ctx context.Context, name string, expectedResults int, args []uint64) ([]uint64, error) {
	fn, err := e.function(name)
	if err != nil {
		return nil, err
	}
	if actual := len(fn.Definition().ResultTypes()); actual != expectedResults {
		return nil, types.ResultMismatchError{FunctionName: name, Expected: expectedResults, Actual: actual}
	}

	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	e.logger.Debug().Str("function", name).Msg("calling export")
	res, err := fn.Call(WithEnvironment(ctx, e), args...)
	if err != nil {
		return nil, e.callError(err)
	}
	return res, nil
}

// callError tells gas depletion apart from other traps. A depletion raised
// by a host function wins, then the metering state of the instance decides.
func (e *Environment) callError(err error) error {
	if types.IsGasDepletion(err) || e.guestOutOfGas() {
		return types.GasDepletionError{}
	}
	return types.RuntimeError{Msg: err.Error(), Err: err}
}
