// Package types provides core types used throughout the sandbox.
package types

// Gas represents the amount of computational resources consumed during execution.
type Gas = uint64

// GasInfo is the cost a backend call reports to the environment.
type GasInfo struct {
	// Cost is gas the host charges for work it performed itself.
	Cost uint64
	// ExternallyUsed is gas consumed by a nested system, e.g. a querier
	// running another contract with its own metering.
	ExternallyUsed uint64
}

func GasInfoWithCost(cost uint64) GasInfo {
	return GasInfo{Cost: cost}
}

func GasInfoWithExternallyUsed(amount uint64) GasInfo {
	return GasInfo{ExternallyUsed: amount}
}

func FreeGasInfo() GasInfo {
	return GasInfo{}
}

// Add sums two infos, as done when one host call hits the backend more than once.
func (g GasInfo) Add(other GasInfo) GasInfo {
	return GasInfo{
		Cost:           g.Cost + other.Cost,
		ExternallyUsed: g.ExternallyUsed + other.ExternallyUsed,
	}
}

// GasReport summarises gas usage of one call.
type GasReport struct {
	Limit          uint64
	Remaining      uint64
	UsedExternally uint64
	UsedInternally uint64
}
