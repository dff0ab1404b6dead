// Package constants holds the fixed names and size limits of the guest
// interface.
package constants

const (
	// EnvModule is the import module every host function lives in.
	EnvModule = "env"

	InterfaceVersionPrefix = "interface_version_"
	InterfaceVersion       = "interface_version_8"

	// RequiresPrefix marks exports declaring a required capability.
	RequiresPrefix = "requires_"

	// ReadmeURL is referenced by interface version errors.
	ReadmeURL = "https://github.com/CosmWasm/cosmwasm/blob/main/packages/vm/README.md"
)

// RequiredExports are the exports every contract must provide.
var RequiredExports = []string{"allocate", "deallocate", "instantiate"}

// Host function names of the env module.
const (
	DBRead                  = "db_read"
	DBWrite                 = "db_write"
	DBRemove                = "db_remove"
	DBScan                  = "db_scan"
	DBNext                  = "db_next"
	DBNextKey               = "db_next_key"
	DBNextValue             = "db_next_value"
	AddrValidate            = "addr_validate"
	AddrCanonicalize        = "addr_canonicalize"
	AddrHumanize            = "addr_humanize"
	Secp256k1Verify         = "secp256k1_verify"
	Secp256k1RecoverPubkey  = "secp256k1_recover_pubkey"
	Secp256r1Verify         = "secp256r1_verify"
	Secp256r1RecoverPubkey  = "secp256r1_recover_pubkey"
	Ed25519Verify           = "ed25519_verify"
	Ed25519BatchVerify      = "ed25519_batch_verify"
	BLS12381AggregateG1     = "bls12_381_aggregate_g1"
	BLS12381AggregateG2     = "bls12_381_aggregate_g2"
	BLS12381PairingEquality = "bls12_381_pairing_equality"
	BLS12381HashToG1        = "bls12_381_hash_to_g1"
	BLS12381HashToG2        = "bls12_381_hash_to_g2"
	Debug                   = "debug"
	Abort                   = "abort"
	QueryChain              = "query_chain"
)

// HostFunctions lists the env functions in registration order.
var HostFunctions = []string{
	DBRead, DBWrite, DBRemove,
	DBScan, DBNext, DBNextKey, DBNextValue,
	AddrValidate, AddrCanonicalize, AddrHumanize,
	Secp256k1Verify, Secp256k1RecoverPubkey,
	Secp256r1Verify, Secp256r1RecoverPubkey,
	Ed25519Verify, Ed25519BatchVerify,
	BLS12381AggregateG1, BLS12381AggregateG2, BLS12381PairingEquality,
	BLS12381HashToG1, BLS12381HashToG2,
	Debug, Abort, QueryChain,
}

// SupportedImports returns the fully qualified names (env.<name>) a
// contract may import.
func SupportedImports() []string {
	out := make([]string, len(HostFunctions))
	for i, name := range HostFunctions {
		out[i] = EnvModule + "." + name
	}
	return out
}

// Length limits for data read from guest memory.
const (
	MaxLengthDBKey           = 64 * 1024
	MaxLengthDBValue         = 128 * 1024
	MaxLengthCanonicalAddr   = 64
	MaxLengthHumanAddr       = 256
	MaxLengthQueryChain      = 64 * 1024
	MaxLengthDebug           = 2 * 1024 * 1024
	MaxLengthAbort           = 2 * 1024 * 1024
	MaxLengthMessageHash     = 32
	MaxLengthSignature       = 64
	MaxLengthPubkey          = 65
	MaxLengthEd25519Message  = 128 * 1024
	MaxLengthEd25519Batch    = 256 * 1024
	MaxCountEd25519Batch     = 256
	MaxLengthBLSAggregate    = 2 * 1024 * 1024
	MaxLengthBLSMessage      = 5 * 1024 * 1024
	MaxLengthBLSDST          = 5 * 1024
	MaxLengthBLSPairingInput = 2 * 1024 * 1024
	// MaxLengthResult bounds the Region an entry point returns.
	MaxLengthResult          = 64 * 1024 * 1024
)

// RegionSize is the encoded size of a Region: offset, capacity and length as little-endian u32.
const RegionSize = 12

// MaxCallDepth bounds nested guest calls through one environment.
const MaxCallDepth = 2
