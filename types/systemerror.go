package types

import (
	"encoding/json"
	"fmt"
)

// SystemResult is what a querier returns to the contract: either a
// contract-level result or a system error (unknown contract, bad request...).
type SystemResult struct {
	Ok  *ContractResult `json:"ok,omitempty"`
	Err *SystemError    `json:"error,omitempty"`
}

// ContractResult is the outcome of the queried contract itself.
type ContractResult struct {
	Ok  []byte `json:"ok,omitempty"`
	Err string `json:"error,omitempty"`
}

func SystemResultOk(data []byte) SystemResult {
	return SystemResult{Ok: &ContractResult{Ok: data}}
}

func SystemResultErr(err SystemError) SystemResult {
	return SystemResult{Err: &err}
}

// MarshalJSON always emits exactly one variant; an empty ok is "ok":{"ok":""}.
func (r SystemResult) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Err *SystemError `json:"error"`
		}{r.Err})
	}
	ok := r.Ok
	if ok == nil {
		ok = &ContractResult{}
	}
	return json.Marshal(struct {
		Ok *ContractResult `json:"ok"`
	}{ok})
}

func (r ContractResult) MarshalJSON() ([]byte, error) {
	if r.Err != "" {
		return json.Marshal(struct {
			Err string `json:"error"`
		}{r.Err})
	}
	data := r.Ok
	if data == nil {
		data = []byte{}
	}
	return json.Marshal(struct {
		Ok []byte `json:"ok"`
	}{data})
}

// SystemError captures query failures outside of the queried contract.
// Exactly one of the fields should be set.
type SystemError struct {
	InvalidRequest     *InvalidRequest     `json:"invalid_request,omitempty"`
	NoSuchContract     *NoSuchContract     `json:"no_such_contract,omitempty"`
	Unknown            *Unknown            `json:"unknown,omitempty"`
	UnsupportedRequest *UnsupportedRequest `json:"unsupported_request,omitempty"`
}

var (
	_ error = SystemError{}
	_ error = InvalidRequest{}
	_ error = NoSuchContract{}
	_ error = Unknown{}
	_ error = UnsupportedRequest{}
)

func (a SystemError) Error() string {
	switch {
	case a.InvalidRequest != nil:
		return a.InvalidRequest.Error()
	case a.NoSuchContract != nil:
		return a.NoSuchContract.Error()
	case a.Unknown != nil:
		return a.Unknown.Error()
	case a.UnsupportedRequest != nil:
		return a.UnsupportedRequest.Error()
	default:
		return "unknown system error"
	}
}

type InvalidRequest struct {
	Err     string `json:"error"`
	Request []byte `json:"request"`
}

func (e InvalidRequest) Error() string {
	return fmt.Sprintf("invalid request: %s - original request: %s", e.Err, string(e.Request))
}

type NoSuchContract struct {
	Addr string `json:"addr,omitempty"`
}

func (e NoSuchContract) Error() string {
	return fmt.Sprintf("no such contract: %s", e.Addr)
}

type Unknown struct{}

func (e Unknown) Error() string {
	return "unknown system error"
}

type UnsupportedRequest struct {
	Kind string `json:"kind,omitempty"`
}

func (e UnsupportedRequest) Error() string {
	return fmt.Sprintf("unsupported request: %s", e.Kind)
}
