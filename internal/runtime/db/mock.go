package db

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/CosmWasm/wasmsandbox/types"
)

// Gas charged by MockAPI.
const (
	GasCostHumanize     = 44
	GasCostCanonicalize = 55
)

// Address length bounds of MockAPI.
const (
	mockAddrMinLength = 3
	mockAddrMaxLength = 64
)

// MockAPI is a BackendAPI whose canonical form of an address is its lower
// case UTF-8 encoding.
type MockAPI struct{}

var _ types.BackendAPI = MockAPI{}

func userErr(msg string) error {
	return types.NewBackendError(types.BackendErrUser, msg)
}

func (MockAPI) AddrCanonicalize(human string) ([]byte, types.GasInfo, error) {
	gas := types.GasInfoWithCost(GasCostCanonicalize)
	switch {
	case len(human) < mockAddrMinLength:
		return nil, gas, userErr("Invalid input: human address too short for this mock implementation (must be >= 3).")
	case len(human) > mockAddrMaxLength:
		return nil, gas, userErr("Invalid input: human address too long for this mock implementation (must be <= 64).")
	case strings.ToLower(human) != human:
		return nil, gas, userErr("Invalid input: address not normalized")
	}
	return []byte(human), gas, nil
}

func (MockAPI) AddrHumanize(canonical []byte) (string, types.GasInfo, error) {
	gas := types.GasInfoWithCost(GasCostHumanize)
	if len(canonical) < mockAddrMinLength || len(canonical) > mockAddrMaxLength {
		return "", gas, userErr("Invalid input: canonical address length not correct")
	}
	if !utf8.Valid(canonical) {
		return "", gas, types.NewBackendError(types.BackendErrInvalidUtf8, "")
	}
	return string(canonical), gas, nil
}

// AddrValidate round trips the address through canonicalize and humanize.
func (a MockAPI) AddrValidate(human string) (types.GasInfo, error) {
	canonical, gas, err := a.AddrCanonicalize(human)
	if err != nil {
		return gas, err
	}
	normalized, humanizeGas, err := a.AddrHumanize(canonical)
	gas = gas.Add(humanizeGas)
	if err != nil {
		return gas, err
	}
	if normalized != human {
		return gas, userErr("Address is not normalized")
	}
	return gas, nil
}

// MockQuerier answers queries from a table of raw request to response.
type MockQuerier struct {
	mu        sync.RWMutex
	responses map[string]types.SystemResult
	// GasPerQuery is reported as externally used for every query.
	GasPerQuery uint64
}

var _ types.Querier = (*MockQuerier)(nil)

func NewMockQuerier() *MockQuerier {
	return &MockQuerier{responses: make(map[string]types.SystemResult)}
}

// Register makes request answer with result.
func (q *MockQuerier) Register(request []byte, result types.SystemResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.responses[string(request)] = result
}

// QueryRaw answers with the registered result or an unsupported request
// system error. It fails with an out of gas backend error when the query
// costs more than gasLimit.
func (q *MockQuerier) QueryRaw(request []byte, gasLimit uint64) (types.SystemResult, types.GasInfo, error) {
	gas := types.GasInfoWithExternallyUsed(q.GasPerQuery)
	if q.GasPerQuery > gasLimit {
		return types.SystemResult{}, gas, types.NewBackendError(types.BackendErrOutOfGas, "")
	}
	q.mu.RLock()
	result, ok := q.responses[string(request)]
	q.mu.RUnlock()
	if !ok {
		return types.SystemResultErr(types.SystemError{
			UnsupportedRequest: &types.UnsupportedRequest{Kind: "raw"},
		}), gas, nil
	}
	return result, gas, nil
}
