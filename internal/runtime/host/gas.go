package host

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/gas"
	"github.com/CosmWasm/wasmsandbox/types"
)

// GasLeft reads the guest visible gas counter.
func (e *Environment) GasLeft() (uint64, error) {
	var left uint64
	err := e.WithInstance(func(mod api.Module) error {
		var err error
		left, err = gas.RemainingPoints(mod)
		return err
	})
	return left, err
}

// SetGasLeft overwrites the guest visible gas counter.
func (e *Environment) SetGasLeft(left uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.data.instance == nil {
		return types.UninitializedContextDataError{Kind: KindInstance}
	}
	return gas.SetRemainingPoints(e.data.instance, left)
}

// DecreaseGasLeft subtracts amount from the guest visible gas counter. When
// amount exceeds what is left, the counter is set to 0 and a
// GasDepletionError is returned.
func (e *Environment) DecreaseGasLeft(amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.data.instance == nil {
		return types.UninitializedContextDataError{Kind: KindInstance}
	}
	left, err := gas.RemainingPoints(e.data.instance)
	if err != nil {
		return err
	}
	if amount > left {
		if err := gas.SetRemainingPoints(e.data.instance, 0); err != nil {
			return err
		}
		return types.GasDepletionError{}
	}
	return gas.SetRemainingPoints(e.data.instance, left-amount)
}

// guestOutOfGas reports whether the instance stopped because its metering
// ran out.
func (e *Environment) guestOutOfGas() bool {
	depleted := false
	_ = e.WithInstance(func(mod api.Module) error {
		exhausted, err := gas.PointsExhausted(mod)
		if err != nil {
			return err
		}
		left, err := gas.RemainingPoints(mod)
		if err != nil {
			return err
		}
		depleted = exhausted || left == 0
		return nil
	})
	return depleted
}

// ProcessGasInfo charges gas consumed by host side work. The externally used
// part is recorded in the gas state, both parts are removed from the guest
// visible counter. The counters are committed even when the charge exceeds
// what was left; the caller then gets a GasDepletionError and must abort the
// host call.
func ProcessGasInfo(env *Environment, info types.GasInfo) error {
	gasLeft, err := env.GasLeft()
	if err != nil {
		return err
	}

	var newLimit uint64
	env.WithGasStateMut(func(state *GasState) {
		state.ExternallyUsedGas = saturatingAdd(state.ExternallyUsedGas, info.ExternallyUsed)
		newLimit = saturatingSub(saturatingSub(gasLeft, info.ExternallyUsed), info.Cost)
	})
	if err := env.SetGasLeft(newLimit); err != nil {
		return err
	}

	if saturatingAdd(info.ExternallyUsed, info.Cost) > gasLeft {
		return types.GasDepletionError{}
	}
	return nil
}

// GasReport summarises the gas usage of the current call.
func (e *Environment) GasReport() (types.GasReport, error) {
	var state GasState
	e.WithGasState(func(s GasState) { state = s })
	left, err := e.GasLeft()
	if err != nil {
		return types.GasReport{}, err
	}
	return types.GasReport{
		Limit:          state.GasLimit,
		Remaining:      left,
		UsedExternally: state.ExternallyUsedGas,
		UsedInternally: saturatingSub(saturatingSub(state.GasLimit, state.ExternallyUsedGas), left),
	}, nil
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func saturatingAdd(a, b uint64) uint64 {
	if s := a + b; s >= a {
		return s
	}
	return ^uint64(0)
}
