// Package gatekeeper filters the instruction stream of every defined
// function before a module is compiled.
package gatekeeper

import (
	"fmt"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/opcode"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin"
	"github.com/CosmWasm/wasmsandbox/types"
)

var rejections = map[opcode.Family]string{
	opcode.BulkMemory:         "Bulk memory operation detected: %s. Bulk memory operations are not supported.",
	opcode.ReferenceTypes:     "Reference type operation detected: %s. Reference types are not supported.",
	opcode.TailCall:           "Tail call operation detected: %s. Tail calls are not supported.",
	opcode.FunctionReferences: "Typed function reference operation detected: %s. Typed function references are not supported.",
	opcode.Threads:            "Threads operator detected: %s. The Wasm Threads extension is not supported.",
	opcode.SIMD:               "SIMD operator detected: %s. The Wasm SIMD extension is not supported.",
	opcode.RelaxedSIMD:        "Relaxed SIMD operator detected: %s. The Wasm Relaxed SIMD extension is not supported.",
	opcode.LegacyExceptions:   "Exception handling operation detected: %s. Exception handling is not supported.",
	opcode.Exceptions:         "Exception handling operation detected: %s. Exception handling is not supported.",
	opcode.GC:                 "GC operation detected: %s. GC Proposal is not supported.",
	opcode.MemoryControl:      "Memory control operation detected: %s. Memory control is not supported.",
}

const nonDeterministicFloat = "Non-deterministic operator detected: %s. The use of floats is not supported."

// Policy decides which operator families a module may use.
type Policy struct {
	name    string
	allowed map[opcode.Family]bool
	// rejectFloats rejects every operator touching floating point values,
	// including float lanes of otherwise allowed families.
	rejectFloats bool
}

// Deterministic returns the policy used for contract uploads: MVP integer
// code plus sign extension. Floats and every post-MVP proposal are rejected.
func Deterministic() *Policy {
	return &Policy{
		name: "deterministic",
		allowed: map[opcode.Family]bool{
			opcode.Core:          true,
			opcode.SignExtension: true,
		},
		rejectFloats: true,
	}
}

// New returns a feature gate. Floats are allowed; proposals are enabled
// through cfg. Relaxed SIMD, GC and memory control have no toggle.
func New(cfg types.GatekeeperConfig) *Policy {
	allowed := map[opcode.Family]bool{
		opcode.Core:                 true,
		opcode.Float:                true,
		opcode.SaturatingFloatToInt: true,
		opcode.SignExtension:        true,
		opcode.BulkMemory:           cfg.AllowBulkMemory,
		opcode.ReferenceTypes:       cfg.AllowReferenceTypes,
		opcode.TailCall:             cfg.AllowReferenceTypes,
		opcode.FunctionReferences:   cfg.AllowReferenceTypes,
		opcode.Threads:              cfg.AllowThreads,
		opcode.SIMD:                 cfg.AllowSIMD,
		opcode.LegacyExceptions:     cfg.AllowExceptions,
		opcode.Exceptions:           cfg.AllowExceptions,
	}
	return &Policy{name: "gatekeeper", allowed: allowed}
}

func (p *Policy) String() string {
	return p.name
}

// Allows reports whether op passes the policy.
func (p *Policy) Allows(op *opcode.Operator) bool {
	return p.reject(op) == ""
}

// reject returns the message template for a rejected operator, or "" if it is allowed.
func (p *Policy) reject(op *opcode.Operator) string {
	if p.rejectFloats && op.IsFloat() {
		return nonDeterministicFloat
	}
	if p.allowed[op.Family] {
		return ""
	}
	if msg, ok := rejections[op.Family]; ok {
		return msg
	}
	return "Unsupported operator detected: %s."
}

// CheckFunction walks one function body. index is the function index in
// the module's function index space and only used for error reporting.
func (p *Policy) CheckFunction(index int, code []byte) error {
	r := opcode.NewReader(code)
	for r.More() {
		ins, err := r.Next()
		if err != nil {
			return types.CompileError{
				Msg:           fmt.Sprintf("Invalid instruction in function %d: %v", index, err),
				FunctionIndex: index,
			}
		}
		if msg := p.reject(ins.Op); msg != "" {
			return types.CompileError{
				Msg:           fmt.Sprintf(msg, ins.Op),
				Operator:      ins.Op.Name,
				Family:        ins.Op.Family.String(),
				FunctionIndex: index,
			}
		}
	}
	return nil
}

// Check runs CheckFunction over every defined function and stops at the first rejection.
func (p *Policy) Check(m *wasmbin.Module) error {
	imported := int(m.NumImported(wasmbin.ExternalFunc))
	for i, body := range m.Code {
		if err := p.CheckFunction(imported+i, body.Code); err != nil {
			return err
		}
	}
	return nil
}

// Chain applies several policies in order.
type Chain []*Policy

func (c Chain) Check(m *wasmbin.Module) error {
	for _, p := range c {
		if err := p.Check(m); err != nil {
			return err
		}
	}
	return nil
}
