package types

import (
	"sort"
	"strings"
)

// Capability is a named host feature a contract can require through a
// requires_<name> export.
type Capability = string

const (
	CapIterator     Capability = "iterator"
	CapStaking      Capability = "staking"
	CapStargate     Capability = "stargate"
	CapCosmwasmV1_1 Capability = "cosmwasm_1_1"
	CapCosmwasmV1_2 Capability = "cosmwasm_1_2"
	CapCosmwasmV1_3 Capability = "cosmwasm_1_3"
	CapCosmwasmV1_4 Capability = "cosmwasm_1_4"
	CapCosmwasmV2_0 Capability = "cosmwasm_2_0"
	CapCosmwasmV2_1 Capability = "cosmwasm_2_1"
	CapCosmwasmV2_2 Capability = "cosmwasm_2_2"
)

// DefaultCapabilities returns the capabilities a chain without custom
// extensions advertises.
func DefaultCapabilities() Capabilities {
	return NewCapabilities(
		CapIterator,
		CapStaking,
		CapStargate,
		CapCosmwasmV1_1,
		CapCosmwasmV1_2,
		CapCosmwasmV1_3,
		CapCosmwasmV1_4,
		CapCosmwasmV2_0,
		CapCosmwasmV2_1,
		CapCosmwasmV2_2,
	)
}

// Capabilities is a set of capability names.
type Capabilities map[Capability]struct{}

func NewCapabilities(caps ...Capability) Capabilities {
	c := make(Capabilities, len(caps))
	for _, v := range caps {
		c[v] = struct{}{}
	}
	return c
}

// CapabilitiesFromCSV parses a comma separated list. Entries are trimmed and
// empty entries are ignored.
func CapabilitiesFromCSV(csv string) Capabilities {
	c := make(Capabilities)
	for _, part := range strings.Split(csv, ",") {
		if v := strings.TrimSpace(part); v != "" {
			c[v] = struct{}{}
		}
	}
	return c
}

func (c Capabilities) Contains(capability Capability) bool {
	_, ok := c[capability]
	return ok
}

// Difference returns the sorted elements of c that are not in other.
func (c Capabilities) Difference(other Capabilities) []Capability {
	var out []Capability
	for v := range c {
		if !other.Contains(v) {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Sorted returns the capabilities in lexicographic order.
func (c Capabilities) Sorted() []Capability {
	out := make([]Capability, 0, len(c))
	for v := range c {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Serialize converts the capabilities into a comma separated string representation
func (c Capabilities) Serialize() string {
	return strings.Join(c.Sorted(), ",")
}
