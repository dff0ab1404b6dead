// Package host mediates every call between a contract instance and the
// resources of the host: storage, querier, backend API and gas.
package host

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero/api"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/gas"
	"github.com/CosmWasm/wasmsandbox/types"
)

// Kinds reported by UninitializedContextDataError.
const (
	KindStorage  = "storage"
	KindQuerier  = "querier"
	KindInstance = "instance"
)

// GasState tracks the gas of one call that the guest does not meter itself.
type GasState struct {
	// GasLimit is fixed for the life of the call.
	GasLimit uint64
	// ExternallyUsedGas only grows. It may exceed GasLimit once depletion
	// was reported.
	ExternallyUsedGas uint64
}

func NewGasState(limit uint64) GasState {
	return GasState{GasLimit: limit}
}

type contextData struct {
	gasState        GasState
	storage         types.Storage
	storageReadonly bool
	querier         types.Querier
	callDepth       int
	debugHandler    DebugHandler
	// instance is not owned; it is set after instantiation and cleared at teardown
	instance api.Module
}

// Environment is the per instance context host functions operate on. All
// state lives behind one read/write lock. Callbacks passed to the With...
// methods run while the lock is held and must not call back into the
// Environment.
type Environment struct {
	api       types.BackendAPI
	gasConfig *gas.Config
	logger    zerolog.Logger

	mu   sync.RWMutex
	data contextData
}

// NewEnvironment creates an unbound environment for a call with the given gas limit.
func NewEnvironment(backendAPI types.BackendAPI, gasConfig *gas.Config, gasLimit uint64, logger zerolog.Logger) *Environment {
	if gasConfig == nil {
		gasConfig = gas.DefaultConfig()
	}
	return &Environment{
		api:       backendAPI,
		gasConfig: gasConfig,
		logger:    logger,
		data: contextData{
			gasState:        NewGasState(gasLimit),
			storageReadonly: true,
		},
	}
}

func (e *Environment) API() types.BackendAPI {
	return e.api
}

func (e *Environment) GasConfig() *gas.Config {
	return e.gasConfig
}

func (e *Environment) Logger() zerolog.Logger {
	return e.logger
}

// SetDebugHandler installs the receiver of the debug import. A nil handler
// silences it.
func (e *Environment) SetDebugHandler(h DebugHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data.debugHandler = h
}

func (e *Environment) debugHandler() DebugHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.data.debugHandler
}

func (e *Environment) IsStorageReadonly() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.data.storageReadonly
}

func (e *Environment) SetStorageReadonly(readonly bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data.storageReadonly = readonly
}

// MoveIn hands storage and querier to the environment for the next call.
func (e *Environment) MoveIn(storage types.Storage, querier types.Querier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data.storage = storage
	e.data.querier = querier
}

// MoveOut takes storage and querier back. The slots are empty afterwards
// and storage is readonly again, so a recycled instance starts as a query
// context and cannot observe resources of a previous call.
func (e *Environment) MoveOut() (types.Storage, types.Querier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	storage, querier := e.data.storage, e.data.querier
	e.data.storage = nil
	e.data.querier = nil
	e.data.storageReadonly = true
	return storage, querier
}

// SetInstance installs the back-reference to the running instance. Passing
// nil clears it at teardown.
func (e *Environment) SetInstance(instance api.Module) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data.instance = instance
}

// WithInstance runs fn with the instance under the read lock.
func (e *Environment) WithInstance(fn func(api.Module) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.data.instance == nil {
		return types.UninitializedContextDataError{Kind: KindInstance}
	}
	return fn(e.data.instance)
}

// WithStorageFromContext gives fn exclusive access to the storage of the
// call in flight.
func (e *Environment) WithStorageFromContext(fn func(types.Storage) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.data.storage == nil {
		return types.UninitializedContextDataError{Kind: KindStorage}
	}
	return fn(e.data.storage)
}

// WithQuerierFromContext gives fn exclusive access to the querier of the
// call in flight.
func (e *Environment) WithQuerierFromContext(fn func(types.Querier) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.data.querier == nil {
		return types.UninitializedContextDataError{Kind: KindQuerier}
	}
	return fn(e.data.querier)
}

// WithGasState runs fn on a copy of the gas state.
func (e *Environment) WithGasState(fn func(GasState)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.data.gasState)
}

func (e *Environment) WithGasStateMut(fn func(*GasState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.data.gasState)
}

type envKey struct{}

// WithEnvironment returns a context carrying env to the host functions of
// the env module.
func WithEnvironment(ctx context.Context, env *Environment) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

var errNoEnvironment = errors.New("no environment in context")

// EnvironmentFromContext returns the environment installed by WithEnvironment.
func EnvironmentFromContext(ctx context.Context) (*Environment, error) {
	env, ok := ctx.Value(envKey{}).(*Environment)
	if !ok || env == nil {
		return nil, errNoEnvironment
	}
	return env, nil
}
