// Package opcode decodes Wasm instruction streams and tags every operator
// with the proposal it belongs to.
package opcode

// Family is the feature family an operator belongs to.
type Family uint8

const (
	// Core is MVP control flow, variable access, integer arithmetic and memory access.
	Core Family = iota
	Float
	SaturatingFloatToInt
	SignExtension
	BulkMemory
	ReferenceTypes
	TailCall
	FunctionReferences
	Threads
	SIMD
	RelaxedSIMD
	LegacyExceptions
	Exceptions
	GC
	MemoryControl
)

var familyNames = [...]string{
	Core:                 "core",
	Float:                "float",
	SaturatingFloatToInt: "saturating_float_to_int",
	SignExtension:        "sign_extension",
	BulkMemory:           "bulk_memory",
	ReferenceTypes:       "reference_types",
	TailCall:             "tail_call",
	FunctionReferences:   "function_references",
	Threads:              "threads",
	SIMD:                 "simd",
	RelaxedSIMD:          "relaxed_simd",
	LegacyExceptions:     "legacy_exceptions",
	Exceptions:           "exceptions",
	GC:                   "gc",
	MemoryControl:        "memory_control",
}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return "unknown"
}

// Families lists every family in declaration order.
func Families() []Family {
	out := make([]Family, len(familyNames))
	for i := range out {
		out[i] = Family(i)
	}
	return out
}
