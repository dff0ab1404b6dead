package gas

import (
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/opcode"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin"
)

// Exported globals added by Instrument.
const (
	RemainingPointsExport = "metering_remaining_points"
	PointsExhaustedExport = "metering_points_exhausted"
)

// CostPerOperation is the flat fee of one guest instruction.
const CostPerOperation uint64 = 115

// ErrNotInstrumented is returned when a module lacks the metering globals.
var ErrNotInstrumented = errors.New("module is not instrumented for metering")

// CostFunction returns the points charged for one operator.
type CostFunction func(op *opcode.Operator) uint64

// DefaultCost charges a flat fee per operator and 14 times that for
// accounting operators, which additionally pay for the injected check.
func DefaultCost(op *opcode.Operator) uint64 {
	if IsAccounting(op) {
		return CostPerOperation * 14
	}
	return CostPerOperation
}

// accounting operators are the sources and targets of branches. The cost of
// a basic block is charged right before them.
var accounting = map[string]bool{
	"loop":                 true,
	"end":                  true,
	"if":                   true,
	"else":                 true,
	"br":                   true,
	"br_table":             true,
	"br_if":                true,
	"call":                 true,
	"call_indirect":        true,
	"return":               true,
	"throw":                true,
	"throw_ref":            true,
	"rethrow":              true,
	"delegate":             true,
	"catch":                true,
	"return_call":          true,
	"return_call_indirect": true,
	"br_on_cast":           true,
	"br_on_cast_fail":      true,
	"call_ref":             true,
	"return_call_ref":      true,
	"br_on_null":           true,
	"br_on_non_null":       true,
}

// IsAccounting reports whether op ends a basic block for metering purposes.
func IsAccounting(op *opcode.Operator) bool {
	return accounting[op.Name]
}

// Instrument rewrites a module so that every function charges its cost
// against an exported i64 global before each accounting operator. When the
// remaining points do not cover a charge, the exported i32 exhausted flag is
// set and the guest traps. The remaining points global starts at initialLimit.
func Instrument(m *wasmbin.Module, cost CostFunction, initialLimit uint64) ([]byte, error) {
	if cost == nil {
		cost = DefaultCost
	}
	for _, e := range m.Exports {
		if e.Name == RemainingPointsExport || e.Name == PointsExhaustedExport {
			return nil, fmt.Errorf("export name %q is reserved for metering", e.Name)
		}
	}

	remaining := m.NumImported(wasmbin.ExternalGlobal) + m.GlobalCount
	exhausted := remaining + 1

	code := wasmbin.AppendU32(nil, uint32(len(m.Code)))
	for i, body := range m.Code {
		instrumented, err := instrumentFunction(body.Code, cost, remaining, exhausted)
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		code = wasmbin.AppendU32(code, uint32(len(body.Locals)+len(instrumented)))
		code = append(code, body.Locals...)
		code = append(code, instrumented...)
	}

	globals := wasmbin.AppendU32(nil, m.GlobalCount+2)
	globals = append(globals, m.GlobalEntries...)
	// mutable i64 remaining points
	globals = append(globals, byte(wasmbin.ValueTypeI64), 1, 0x42)
	globals = wasmbin.AppendS64(globals, int64(initialLimit))
	globals = append(globals, 0x0b)
	// mutable i32 exhausted flag
	globals = append(globals, byte(wasmbin.ValueTypeI32), 1, 0x41, 0x00, 0x0b)

	exports := wasmbin.AppendU32(nil, uint32(len(m.Exports)+2))
	for _, e := range m.Exports {
		exports = appendExport(exports, e)
	}
	exports = appendExport(exports, wasmbin.Export{Name: RemainingPointsExport, Kind: wasmbin.ExternalGlobal, Index: remaining})
	exports = appendExport(exports, wasmbin.Export{Name: PointsExhaustedExport, Kind: wasmbin.ExternalGlobal, Index: exhausted})

	replaced := map[wasmbin.SectionID][]byte{
		wasmbin.SectionGlobal: globals,
		wasmbin.SectionExport: exports,
		wasmbin.SectionCode:   code,
	}
	sections := make([]wasmbin.Section, 0, len(m.Sections))
	for _, s := range m.Sections {
		if payload, ok := replaced[s.ID]; ok && s.ID != wasmbin.SectionCustom {
			s.Payload = payload
			delete(replaced, s.ID)
		}
		sections = append(sections, s)
	}
	var extra []wasmbin.Section
	for _, id := range []wasmbin.SectionID{wasmbin.SectionGlobal, wasmbin.SectionExport, wasmbin.SectionCode} {
		payload, ok := replaced[id]
		if !ok {
			continue
		}
		// a missing code section has no functions to meter
		if id == wasmbin.SectionCode && len(m.Code) == 0 {
			continue
		}
		extra = append(extra, wasmbin.Section{ID: id, Payload: payload})
	}
	return wasmbin.Assemble(sections, extra...), nil
}

func instrumentFunction(code []byte, cost CostFunction, remaining, exhausted uint32) ([]byte, error) {
	out := make([]byte, 0, len(code)+len(code)/2)
	var accumulated uint64
	r := opcode.NewReader(code)
	for r.More() {
		ins, err := r.Next()
		if err != nil {
			return nil, err
		}
		// charged before the check so calls cannot escape metering
		accumulated += cost(ins.Op)
		if IsAccounting(ins.Op) && accumulated > 0 {
			out = appendCharge(out, accumulated, remaining, exhausted)
			accumulated = 0
		}
		out = append(out, code[ins.Start:ins.End]...)
	}
	return out, nil
}

// appendCharge emits:
//
//	if remaining < amount { exhausted = 1; unreachable }
//	remaining -= amount
func appendCharge(out []byte, amount uint64, remaining, exhausted uint32) []byte {
	out = append(out, 0x23) // global.get
	out = wasmbin.AppendU32(out, remaining)
	out = append(out, 0x42) // i64.const
	out = wasmbin.AppendS64(out, int64(amount))
	out = append(out, 0x54, 0x04, 0x40) // i64.lt_u; if (empty)
	out = append(out, 0x41, 0x01, 0x24) // i32.const 1; global.set
	out = wasmbin.AppendU32(out, exhausted)
	out = append(out, 0x00, 0x0b) // unreachable; end
	out = append(out, 0x23)
	out = wasmbin.AppendU32(out, remaining)
	out = append(out, 0x42)
	out = wasmbin.AppendS64(out, int64(amount))
	out = append(out, 0x7d, 0x24) // i64.sub; global.set
	return wasmbin.AppendU32(out, remaining)
}

func appendExport(buf []byte, e wasmbin.Export) []byte {
	buf = wasmbin.AppendName(buf, e.Name)
	buf = append(buf, byte(e.Kind))
	return wasmbin.AppendU32(buf, e.Index)
}

// RemainingPoints reads the points left in an instrumented instance.
func RemainingPoints(mod api.Module) (uint64, error) {
	g := mod.ExportedGlobal(RemainingPointsExport)
	if g == nil {
		return 0, ErrNotInstrumented
	}
	return g.Get(), nil
}

// SetRemainingPoints sets the points left and clears the exhausted flag.
func SetRemainingPoints(mod api.Module, points uint64) error {
	remaining, ok := mod.ExportedGlobal(RemainingPointsExport).(api.MutableGlobal)
	if !ok {
		return ErrNotInstrumented
	}
	exhausted, ok := mod.ExportedGlobal(PointsExhaustedExport).(api.MutableGlobal)
	if !ok {
		return ErrNotInstrumented
	}
	remaining.Set(points)
	exhausted.Set(0)
	return nil
}

// PointsExhausted reports whether a charge failed since the points were last set.
func PointsExhausted(mod api.Module) (bool, error) {
	g := mod.ExportedGlobal(PointsExhaustedExport)
	if g == nil {
		return false, ErrNotInstrumented
	}
	return uint32(g.Get()) != 0, nil
}
