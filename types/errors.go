package types

import (
	"errors"
	"fmt"
)

var (
	_ error = StaticValidationError{}
	_ error = CompileError{}
	_ error = GasDepletionError{}
	_ error = UninitializedContextDataError{}
	_ error = ResultMismatchError{}
	_ error = ResolveError{}
	_ error = RuntimeError{}
	_ error = WriteAccessDeniedError{}
	_ error = MaxCallDepthExceededError{}
	_ error = InstantiationError{}
	_ error = CommunicationError{}
	_ error = AbortedError{}
)

// StaticValidationError is returned when a module is rejected before compilation.
type StaticValidationError struct {
	Msg string
}

func NewStaticValidationError(format string, args ...any) StaticValidationError {
	return StaticValidationError{Msg: fmt.Sprintf(format, args...)}
}

func (e StaticValidationError) Error() string {
	return fmt.Sprintf("Error during static Wasm validation: %s", e.Msg)
}

// CompileError is returned when the instruction filter rejects an operator
// or the runtime fails to compile the instrumented module.
type CompileError struct {
	Msg string
	// Operator and Family are set when a single instruction caused the rejection.
	Operator      string
	Family        string
	FunctionIndex int
}

func (e CompileError) Error() string {
	return fmt.Sprintf("Error compiling Wasm: %s", e.Msg)
}

// GasDepletionError is terminal for the current call and must not be retried with the same limit.
type GasDepletionError struct{}

func (GasDepletionError) Error() string {
	return "Ran out of gas during contract execution"
}

// UninitializedContextDataError signals a lifecycle bug in the embedder: an
// operation ran while the named piece of context was absent.
type UninitializedContextDataError struct {
	Kind string
}

func (e UninitializedContextDataError) Error() string {
	return fmt.Sprintf("Uninitialized Context Data: %s", e.Kind)
}

type ResultMismatchError struct {
	FunctionName string
	Expected     int
	Actual       int
}

func (e ResultMismatchError) Error() string {
	return fmt.Sprintf("Unexpected number of result values when calling '%s'. Expected: %d, actual: %d.",
		e.FunctionName, e.Expected, e.Actual)
}

type ResolveError struct {
	Msg string
}

func (e ResolveError) Error() string {
	return fmt.Sprintf("Error resolving Wasm function: %s", e.Msg)
}

// RuntimeError is a guest trap that was not caused by gas exhaustion. Err
// holds the error raised by a host function, if any.
type RuntimeError struct {
	Msg string
	Err error
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("Error executing Wasm: %s", e.Msg)
}

func (e RuntimeError) Unwrap() error {
	return e.Err
}

// AbortedError is raised when the contract calls abort.
type AbortedError struct {
	Msg string
}

func (e AbortedError) Error() string {
	return fmt.Sprintf("Aborted: %s", e.Msg)
}

type WriteAccessDeniedError struct{}

func (WriteAccessDeniedError) Error() string {
	return "Must not call a writing storage function in this context."
}

type MaxCallDepthExceededError struct{}

func (MaxCallDepthExceededError) Error() string {
	return "Maximum call depth exceeded."
}

type InstantiationError struct {
	Msg string
}

func (e InstantiationError) Error() string {
	return fmt.Sprintf("Error instantiating a Wasm module: %s", e.Msg)
}

// CommunicationError covers malformed data crossing the guest/host boundary.
type CommunicationError struct {
	Msg string
}

func (e CommunicationError) Error() string {
	return fmt.Sprintf("Error in guest/host communication: %s", e.Msg)
}

// IsGasDepletion reports whether err is, or wraps, a GasDepletionError.
func IsGasDepletion(err error) bool {
	var gasErr GasDepletionError
	if errors.As(err, &gasErr) {
		return true
	}
	var backendErr BackendError
	return errors.As(err, &backendErr) && backendErr.Kind == BackendErrOutOfGas
}
