package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/constants"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/memory"
	"github.com/CosmWasm/wasmsandbox/types"
)

// RegisterEnv instantiates the env module on r. Host functions look up their
// Environment in the context of the guest call, so one env module serves
// every instance of the runtime.
func RegisterEnv(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	b := r.NewHostModuleBuilder(constants.EnvModule)

	b.NewFunctionBuilder().
		WithFunc(dbRead).
		WithParameterNames("key_ptr").
		WithResultNames("value_ptr").
		Export(constants.DBRead)
	b.NewFunctionBuilder().
		WithFunc(dbWrite).
		WithParameterNames("key_ptr", "value_ptr").
		Export(constants.DBWrite)
	b.NewFunctionBuilder().
		WithFunc(dbRemove).
		WithParameterNames("key_ptr").
		Export(constants.DBRemove)
	b.NewFunctionBuilder().
		WithFunc(dbScan).
		WithParameterNames("start_ptr", "end_ptr", "order").
		WithResultNames("iterator_id").
		Export(constants.DBScan)
	b.NewFunctionBuilder().
		WithFunc(dbNext).
		WithParameterNames("iterator_id").
		WithResultNames("kv_ptr").
		Export(constants.DBNext)
	b.NewFunctionBuilder().
		WithFunc(dbNextKey).
		WithParameterNames("iterator_id").
		WithResultNames("key_ptr").
		Export(constants.DBNextKey)
	b.NewFunctionBuilder().
		WithFunc(dbNextValue).
		WithParameterNames("iterator_id").
		WithResultNames("value_ptr").
		Export(constants.DBNextValue)

	b.NewFunctionBuilder().
		WithFunc(addrValidate).
		WithParameterNames("source_ptr").
		WithResultNames("error_ptr").
		Export(constants.AddrValidate)
	b.NewFunctionBuilder().
		WithFunc(addrCanonicalize).
		WithParameterNames("source_ptr", "destination_ptr").
		WithResultNames("error_ptr").
		Export(constants.AddrCanonicalize)
	b.NewFunctionBuilder().
		WithFunc(addrHumanize).
		WithParameterNames("source_ptr", "destination_ptr").
		WithResultNames("error_ptr").
		Export(constants.AddrHumanize)

	registerCrypto(b)

	b.NewFunctionBuilder().
		WithFunc(debug).
		WithParameterNames("source_ptr").
		Export(constants.Debug)
	b.NewFunctionBuilder().
		WithFunc(abort).
		WithParameterNames("source_ptr").
		Export(constants.Abort)
	b.NewFunctionBuilder().
		WithFunc(queryChain).
		WithParameterNames("request_ptr").
		WithResultNames("response_ptr").
		Export(constants.QueryChain)

	return b.Instantiate(ctx)
}

// Host functions report failures by panicking; wazero turns the panic into
// an error of the guest call that wraps the panic value.
func abortOn(err error) {
	if err != nil {
		panic(err)
	}
}

func environment(ctx context.Context) *Environment {
	env, err := EnvironmentFromContext(ctx)
	abortOn(err)
	return env
}

func communicationErr(err error) error {
	if err == nil {
		return nil
	}
	return types.CommunicationError{Msg: err.Error()}
}

func readRegion(mod api.Module, ptr uint32, maxLength int) []byte {
	data, err := memory.ReadRegion(mod.Memory(), ptr, maxLength)
	abortOn(communicationErr(err))
	return data
}

func maybeReadRegion(mod api.Module, ptr uint32, maxLength int) []byte {
	data, err := memory.MaybeReadRegion(mod.Memory(), ptr, maxLength)
	abortOn(communicationErr(err))
	return data
}

func chargeWrite(env *Environment, data []byte) {
	cost := env.GasConfig().WriteRegionCostPerByte * uint64(len(data))
	abortOn(ProcessGasInfo(env, types.GasInfoWithCost(cost)))
}

// writeRegion fills the guest Region at ptr with data.
func writeRegion(env *Environment, mod api.Module, ptr uint32, data []byte) {
	chargeWrite(env, data)
	abortOn(communicationErr(memory.WriteRegion(mod.Memory(), ptr, data)))
}

// writeToContract allocates a new Region in the guest, fills it with data
// and returns its pointer.
func writeToContract(ctx context.Context, env *Environment, mod api.Module, data []byte) uint32 {
	chargeWrite(env, data)
	ptr, err := memory.WriteToContract(ctx, mod.Memory(), env, data)
	if err != nil && (errors.Is(err, memory.ErrRegionTooSmall) || errors.Is(err, memory.ErrInvalidRegion) ||
		errors.Is(err, memory.ErrZeroAddress) || errors.Is(err, memory.ErrInvalidMemoryAccess)) {
		err = communicationErr(err)
	}
	abortOn(err)
	return ptr
}

func dbRead(ctx context.Context, mod api.Module, keyPtr uint32) uint32 {
	env := environment(ctx)
	key := readRegion(mod, keyPtr, constants.MaxLengthDBKey)

	var (
		value   []byte
		gasInfo types.GasInfo
		result  error
	)
	abortOn(env.WithStorageFromContext(func(s types.Storage) error {
		value, gasInfo, result = s.Get(key)
		return nil
	}))
	abortOn(ProcessGasInfo(env, gasInfo))
	abortOn(result)

	if value == nil {
		return 0
	}
	return writeToContract(ctx, env, mod, value)
}

func dbWrite(ctx context.Context, mod api.Module, keyPtr, valuePtr uint32) {
	env := environment(ctx)
	if env.IsStorageReadonly() {
		panic(types.WriteAccessDeniedError{})
	}
	key := readRegion(mod, keyPtr, constants.MaxLengthDBKey)
	value := readRegion(mod, valuePtr, constants.MaxLengthDBValue)

	var (
		gasInfo types.GasInfo
		result  error
	)
	abortOn(env.WithStorageFromContext(func(s types.Storage) error {
		gasInfo, result = s.Set(key, value)
		return nil
	}))
	abortOn(ProcessGasInfo(env, gasInfo))
	abortOn(result)
}

func dbRemove(ctx context.Context, mod api.Module, keyPtr uint32) {
	env := environment(ctx)
	if env.IsStorageReadonly() {
		panic(types.WriteAccessDeniedError{})
	}
	key := readRegion(mod, keyPtr, constants.MaxLengthDBKey)

	var (
		gasInfo types.GasInfo
		result  error
	)
	abortOn(env.WithStorageFromContext(func(s types.Storage) error {
		gasInfo, result = s.Remove(key)
		return nil
	}))
	abortOn(ProcessGasInfo(env, gasInfo))
	abortOn(result)
}

func dbScan(ctx context.Context, mod api.Module, startPtr, endPtr uint32, rawOrder int32) uint32 {
	env := environment(ctx)
	start := maybeReadRegion(mod, startPtr, constants.MaxLengthDBKey)
	end := maybeReadRegion(mod, endPtr, constants.MaxLengthDBKey)
	order, err := types.OrderFromInt(rawOrder)
	if err != nil {
		panic(types.CommunicationError{Msg: fmt.Sprintf("Invalid order value %d", rawOrder)})
	}

	var (
		id      uint32
		gasInfo types.GasInfo
		result  error
	)
	abortOn(env.WithStorageFromContext(func(s types.Storage) error {
		id, gasInfo, result = s.Scan(start, end, order)
		return nil
	}))
	abortOn(ProcessGasInfo(env, gasInfo))
	abortOn(result)
	return id
}

// dbNext returns key and value as sections. An exhausted iterator yields an
// empty key and value.
func dbNext(ctx context.Context, mod api.Module, iteratorID uint32) uint32 {
	env := environment(ctx)

	var (
		rec     *types.Record
		gasInfo types.GasInfo
		result  error
	)
	abortOn(env.WithStorageFromContext(func(s types.Storage) error {
		rec, gasInfo, result = s.Next(iteratorID)
		return nil
	}))
	abortOn(ProcessGasInfo(env, gasInfo))
	abortOn(result)

	if rec == nil {
		rec = &types.Record{}
	}
	out, err := EncodeSections(rec.Key, rec.Value)
	abortOn(err)
	return writeToContract(ctx, env, mod, out)
}

func dbNextKey(ctx context.Context, mod api.Module, iteratorID uint32) uint32 {
	return dbNextPart(ctx, mod, iteratorID, types.Storage.NextKey)
}

func dbNextValue(ctx context.Context, mod api.Module, iteratorID uint32) uint32 {
	return dbNextPart(ctx, mod, iteratorID, types.Storage.NextValue)
}

func dbNextPart(ctx context.Context, mod api.Module, iteratorID uint32, next func(types.Storage, uint32) ([]byte, types.GasInfo, error)) uint32 {
	env := environment(ctx)

	var (
		data    []byte
		gasInfo types.GasInfo
		result  error
	)
	abortOn(env.WithStorageFromContext(func(s types.Storage) error {
		data, gasInfo, result = next(s, iteratorID)
		return nil
	}))
	abortOn(ProcessGasInfo(env, gasInfo))
	abortOn(result)

	if data == nil {
		return 0
	}
	return writeToContract(ctx, env, mod, data)
}

// readHumanAddress returns the source address or, when it is unusable, the
// message to hand back to the contract.
func readHumanAddress(mod api.Module, sourcePtr uint32) (string, string) {
	source := readRegion(mod, sourcePtr, constants.MaxLengthHumanAddr)
	if len(source) == 0 {
		return "", "Input is empty"
	}
	if !utf8.Valid(source) {
		return "", "Input is not valid UTF-8"
	}
	return string(source), ""
}

// userErrorMessage extracts the message of an error the contract may
// handle. Any other backend error aborts the call.
func userErrorMessage(err error) string {
	var backendErr types.BackendError
	if errors.As(err, &backendErr) && backendErr.Kind == types.BackendErrUser {
		return backendErr.Msg
	}
	panic(err)
}

func addrValidate(ctx context.Context, mod api.Module, sourcePtr uint32) uint32 {
	env := environment(ctx)
	human, msg := readHumanAddress(mod, sourcePtr)
	if msg != "" {
		return writeToContract(ctx, env, mod, []byte(msg))
	}

	gasInfo, err := env.API().AddrValidate(human)
	abortOn(ProcessGasInfo(env, gasInfo))
	if err != nil {
		return writeToContract(ctx, env, mod, []byte(userErrorMessage(err)))
	}
	return 0
}

func addrCanonicalize(ctx context.Context, mod api.Module, sourcePtr, destinationPtr uint32) uint32 {
	env := environment(ctx)
	human, msg := readHumanAddress(mod, sourcePtr)
	if msg != "" {
		return writeToContract(ctx, env, mod, []byte(msg))
	}

	canonical, gasInfo, err := env.API().AddrCanonicalize(human)
	abortOn(ProcessGasInfo(env, gasInfo))
	if err != nil {
		return writeToContract(ctx, env, mod, []byte(userErrorMessage(err)))
	}
	writeRegion(env, mod, destinationPtr, canonical)
	return 0
}

func addrHumanize(ctx context.Context, mod api.Module, sourcePtr, destinationPtr uint32) uint32 {
	env := environment(ctx)
	canonical := readRegion(mod, sourcePtr, constants.MaxLengthCanonicalAddr)
	if len(canonical) == 0 {
		return writeToContract(ctx, env, mod, []byte("Input is empty"))
	}

	human, gasInfo, err := env.API().AddrHumanize(canonical)
	abortOn(ProcessGasInfo(env, gasInfo))
	if err != nil {
		return writeToContract(ctx, env, mod, []byte(userErrorMessage(err)))
	}
	writeRegion(env, mod, destinationPtr, []byte(human))
	return 0
}

// debug is free of charge; hosts should not install a handler on chain.
func debug(ctx context.Context, mod api.Module, sourcePtr uint32) {
	env := environment(ctx)
	message := readRegion(mod, sourcePtr, constants.MaxLengthDebug)
	handler := env.debugHandler()
	if handler == nil {
		return
	}
	left, err := env.GasLeft()
	abortOn(err)
	handler(strings.ToValidUTF8(string(message), "�"), DebugInfo{GasRemaining: left})
}

func abort(ctx context.Context, mod api.Module, sourcePtr uint32) {
	message := readRegion(mod, sourcePtr, constants.MaxLengthAbort)
	panic(types.AbortedError{Msg: strings.ToValidUTF8(string(message), "�")})
}

func queryChain(ctx context.Context, mod api.Module, requestPtr uint32) uint32 {
	env := environment(ctx)
	request := readRegion(mod, requestPtr, constants.MaxLengthQueryChain)
	gasRemaining, err := env.GasLeft()
	abortOn(err)

	var (
		response types.SystemResult
		gasInfo  types.GasInfo
		result   error
	)
	abortOn(env.WithQuerierFromContext(func(q types.Querier) error {
		response, gasInfo, result = q.QueryRaw(request, gasRemaining)
		return nil
	}))
	abortOn(ProcessGasInfo(env, gasInfo))
	abortOn(result)

	serialized, err := json.Marshal(response)
	abortOn(err)
	return writeToContract(ctx, env, mod, serialized)
}
