// Package gas holds the host function cost table and the instrumentation
// pass that meters guest instructions.
package gas

import "math/bits"

// GasPerUS is the amount of gas charged per microsecond of host computation.
const GasPerUS uint64 = 1_000_000

// LinearGasCost is a cost of Base plus PerItem for every processed item.
type LinearGasCost struct {
	Base    uint64
	PerItem uint64
}

// TotalCost returns Base + PerItem*items, saturating at the maximum uint64.
func (c LinearGasCost) TotalCost(items uint64) uint64 {
	hi, perItems := bits.Mul64(c.PerItem, items)
	if hi != 0 {
		return ^uint64(0)
	}
	sum, carry := bits.Add64(c.Base, perItems, 0)
	if carry != 0 {
		return ^uint64(0)
	}
	return sum
}

// Config maps host operations to gas costs. It is built once and shared read-only.
type Config struct {
	Secp256k1VerifyCost        uint64
	Secp256k1RecoverPubkeyCost uint64
	Secp256r1VerifyCost        uint64
	Secp256r1RecoverPubkeyCost uint64
	Ed25519VerifyCost          uint64

	Ed25519BatchVerifyCost          LinearGasCost
	Ed25519BatchVerifyOnePubkeyCost LinearGasCost

	Bls12381AggregateG1Cost     LinearGasCost
	Bls12381AggregateG2Cost     LinearGasCost
	Bls12381HashToG1Cost        uint64
	Bls12381HashToG2Cost        uint64
	Bls12381PairingEqualityCost LinearGasCost

	// WriteRegionCostPerByte is charged for every byte copied into guest memory.
	WriteRegionCostPerByte uint64
}

// DefaultConfig returns costs derived from benchmarked host function timings.
func DefaultConfig() *Config {
	return &Config{
		Secp256k1VerifyCost:        96 * GasPerUS,
		Secp256k1RecoverPubkeyCost: 194 * GasPerUS,
		Secp256r1VerifyCost:        279 * GasPerUS,
		Secp256r1RecoverPubkeyCost: 592 * GasPerUS,
		Ed25519VerifyCost:          35 * GasPerUS,
		Ed25519BatchVerifyCost: LinearGasCost{
			Base:    24 * GasPerUS,
			PerItem: 21 * GasPerUS,
		},
		Ed25519BatchVerifyOnePubkeyCost: LinearGasCost{
			Base:    36 * GasPerUS,
			PerItem: 10 * GasPerUS,
		},
		Bls12381AggregateG1Cost: LinearGasCost{
			Base:    68 * GasPerUS,
			PerItem: 12 * GasPerUS,
		},
		Bls12381AggregateG2Cost: LinearGasCost{
			Base:    103 * GasPerUS,
			PerItem: 24 * GasPerUS,
		},
		Bls12381HashToG1Cost: 563 * GasPerUS,
		Bls12381HashToG2Cost: 871 * GasPerUS,
		Bls12381PairingEqualityCost: LinearGasCost{
			Base:    2112 * GasPerUS,
			PerItem: 163 * GasPerUS,
		},
		WriteRegionCostPerByte: 1,
	}
}
