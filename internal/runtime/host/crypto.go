package host

import (
	"context"
	"errors"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/constants"
	"github.com/CosmWasm/wasmsandbox/internal/runtime/crypto"
	"github.com/CosmWasm/wasmsandbox/types"
)

func registerCrypto(b wazero.HostModuleBuilder) {
	b.NewFunctionBuilder().
		WithFunc(secp256k1Verify).
		WithParameterNames("hash_ptr", "signature_ptr", "pubkey_ptr").
		WithResultNames("result").
		Export(constants.Secp256k1Verify)
	b.NewFunctionBuilder().
		WithFunc(secp256k1RecoverPubkey).
		WithParameterNames("hash_ptr", "signature_ptr", "recovery_param").
		WithResultNames("result").
		Export(constants.Secp256k1RecoverPubkey)
	b.NewFunctionBuilder().
		WithFunc(secp256r1Verify).
		WithParameterNames("hash_ptr", "signature_ptr", "pubkey_ptr").
		WithResultNames("result").
		Export(constants.Secp256r1Verify)
	b.NewFunctionBuilder().
		WithFunc(secp256r1RecoverPubkey).
		WithParameterNames("hash_ptr", "signature_ptr", "recovery_param").
		WithResultNames("result").
		Export(constants.Secp256r1RecoverPubkey)
	b.NewFunctionBuilder().
		WithFunc(ed25519Verify).
		WithParameterNames("message_ptr", "signature_ptr", "pubkey_ptr").
		WithResultNames("result").
		Export(constants.Ed25519Verify)
	b.NewFunctionBuilder().
		WithFunc(ed25519BatchVerify).
		WithParameterNames("messages_ptr", "signatures_ptr", "pubkeys_ptr").
		WithResultNames("result").
		Export(constants.Ed25519BatchVerify)
	b.NewFunctionBuilder().
		WithFunc(bls12381AggregateG1).
		WithParameterNames("g1s_ptr", "out_ptr").
		WithResultNames("result").
		Export(constants.BLS12381AggregateG1)
	b.NewFunctionBuilder().
		WithFunc(bls12381AggregateG2).
		WithParameterNames("g2s_ptr", "out_ptr").
		WithResultNames("result").
		Export(constants.BLS12381AggregateG2)
	b.NewFunctionBuilder().
		WithFunc(bls12381PairingEquality).
		WithParameterNames("ps_ptr", "qs_ptr", "r_ptr", "s_ptr").
		WithResultNames("result").
		Export(constants.BLS12381PairingEquality)
	b.NewFunctionBuilder().
		WithFunc(bls12381HashToG1).
		WithParameterNames("hash_function", "msg_ptr", "dst_ptr", "out_ptr").
		WithResultNames("result").
		Export(constants.BLS12381HashToG1)
	b.NewFunctionBuilder().
		WithFunc(bls12381HashToG2).
		WithParameterNames("hash_function", "msg_ptr", "dst_ptr", "out_ptr").
		WithResultNames("result").
		Export(constants.BLS12381HashToG2)
}

// errorCode maps a crypto failure to the code handed to the guest. Anything
// that is not a crypto.Error aborts the call.
func errorCode(err error) uint32 {
	var cryptoErr crypto.Error
	if errors.As(err, &cryptoErr) {
		return cryptoErr.Code
	}
	panic(err)
}

// verifyResult encodes a verification outcome: 0 valid, 1 invalid, or an
// error code.
func verifyResult(valid bool, err error) uint32 {
	if err != nil {
		return errorCode(err)
	}
	if valid {
		return 0
	}
	return 1
}

func charge(env *Environment, cost uint64) {
	abortOn(ProcessGasInfo(env, types.GasInfoWithCost(cost)))
}

func secp256k1Verify(ctx context.Context, mod api.Module, hashPtr, signaturePtr, pubkeyPtr uint32) uint32 {
	env := environment(ctx)
	hash := readRegion(mod, hashPtr, constants.MaxLengthMessageHash)
	signature := readRegion(mod, signaturePtr, constants.MaxLengthSignature)
	pubkey := readRegion(mod, pubkeyPtr, constants.MaxLengthPubkey)

	charge(env, env.GasConfig().Secp256k1VerifyCost)
	return verifyResult(crypto.Secp256k1Verify(hash, signature, pubkey))
}

func secp256r1Verify(ctx context.Context, mod api.Module, hashPtr, signaturePtr, pubkeyPtr uint32) uint32 {
	env := environment(ctx)
	hash := readRegion(mod, hashPtr, constants.MaxLengthMessageHash)
	signature := readRegion(mod, signaturePtr, constants.MaxLengthSignature)
	pubkey := readRegion(mod, pubkeyPtr, constants.MaxLengthPubkey)

	charge(env, env.GasConfig().Secp256r1VerifyCost)
	return verifyResult(crypto.Secp256r1Verify(hash, signature, pubkey))
}

type recoverFunc func(hash, signature []byte, recoveryParam uint8) ([]byte, error)

// recoverPubkey packs its outcome into a u64: the pointer to the recovered
// key in the low half on success, the error code in the high half otherwise.
func recoverPubkey(ctx context.Context, mod api.Module, hashPtr, signaturePtr, recoveryParam uint32, cost uint64, recoverFn recoverFunc) uint64 {
	env := environment(ctx)
	hash := readRegion(mod, hashPtr, constants.MaxLengthMessageHash)
	signature := readRegion(mod, signaturePtr, constants.MaxLengthSignature)

	charge(env, cost)
	if recoveryParam > math.MaxUint8 {
		return uint64(crypto.CodeInvalidRecoveryParam) << 32
	}
	pubkey, err := recoverFn(hash, signature, uint8(recoveryParam))
	if err != nil {
		return uint64(errorCode(err)) << 32
	}
	return uint64(writeToContract(ctx, env, mod, pubkey))
}

func secp256k1RecoverPubkey(ctx context.Context, mod api.Module, hashPtr, signaturePtr, recoveryParam uint32) uint64 {
	cost := environment(ctx).GasConfig().Secp256k1RecoverPubkeyCost
	return recoverPubkey(ctx, mod, hashPtr, signaturePtr, recoveryParam, cost, crypto.Secp256k1RecoverPubkey)
}

func secp256r1RecoverPubkey(ctx context.Context, mod api.Module, hashPtr, signaturePtr, recoveryParam uint32) uint64 {
	cost := environment(ctx).GasConfig().Secp256r1RecoverPubkeyCost
	return recoverPubkey(ctx, mod, hashPtr, signaturePtr, recoveryParam, cost, crypto.Secp256r1RecoverPubkey)
}

func ed25519Verify(ctx context.Context, mod api.Module, messagePtr, signaturePtr, pubkeyPtr uint32) uint32 {
	env := environment(ctx)
	message := readRegion(mod, messagePtr, constants.MaxLengthEd25519Message)
	signature := readRegion(mod, signaturePtr, constants.MaxLengthSignature)
	pubkey := readRegion(mod, pubkeyPtr, constants.MaxLengthPubkey)

	charge(env, env.GasConfig().Ed25519VerifyCost)
	return verifyResult(crypto.Ed25519Verify(message, signature, pubkey))
}

func readBatch(mod api.Module, ptr uint32) [][]byte {
	data := readRegion(mod, ptr, constants.MaxLengthEd25519Batch)
	sections, err := DecodeSections(data)
	abortOn(communicationErr(err))
	if len(sections) > constants.MaxCountEd25519Batch {
		panic(types.CommunicationError{Msg: "too many items in ed25519 batch"})
	}
	return sections
}

func ed25519BatchVerify(ctx context.Context, mod api.Module, messagesPtr, signaturesPtr, pubkeysPtr uint32) uint32 {
	env := environment(ctx)
	messages := readBatch(mod, messagesPtr)
	signatures := readBatch(mod, signaturesPtr)
	pubkeys := readBatch(mod, pubkeysPtr)

	cost := env.GasConfig().Ed25519BatchVerifyCost
	if len(pubkeys) == 1 {
		cost = env.GasConfig().Ed25519BatchVerifyOnePubkeyCost
	}
	charge(env, cost.TotalCost(uint64(len(signatures))))
	return verifyResult(crypto.Ed25519BatchVerify(messages, signatures, pubkeys))
}

func bls12381AggregateG1(ctx context.Context, mod api.Module, g1sPtr, outPtr uint32) uint32 {
	env := environment(ctx)
	g1s := readRegion(mod, g1sPtr, constants.MaxLengthBLSAggregate)

	charge(env, env.GasConfig().Bls12381AggregateG1Cost.TotalCost(crypto.BLS12381G1Count(g1s)))
	point, err := crypto.BLS12381AggregateG1(g1s)
	if err != nil {
		return errorCode(err)
	}
	writeRegion(env, mod, outPtr, point)
	return 0
}

func bls12381AggregateG2(ctx context.Context, mod api.Module, g2sPtr, outPtr uint32) uint32 {
	env := environment(ctx)
	g2s := readRegion(mod, g2sPtr, constants.MaxLengthBLSAggregate)

	charge(env, env.GasConfig().Bls12381AggregateG2Cost.TotalCost(crypto.BLS12381G2Count(g2s)))
	point, err := crypto.BLS12381AggregateG2(g2s)
	if err != nil {
		return errorCode(err)
	}
	writeRegion(env, mod, outPtr, point)
	return 0
}

// bls12381PairingEquality returns 0 when e(ps, qs) equals e(r, s), 1 when
// it does not, or an error code.
func bls12381PairingEquality(ctx context.Context, mod api.Module, psPtr, qsPtr, rPtr, sPtr uint32) uint32 {
	env := environment(ctx)
	ps := readRegion(mod, psPtr, constants.MaxLengthBLSPairingInput)
	qs := readRegion(mod, qsPtr, constants.MaxLengthBLSPairingInput)
	r := readRegion(mod, rPtr, crypto.BLS12381G1PointLen)
	s := readRegion(mod, sPtr, crypto.BLS12381G2PointLen)

	charge(env, env.GasConfig().Bls12381PairingEqualityCost.TotalCost(crypto.BLS12381G1Count(ps)))
	return verifyResult(crypto.BLS12381PairingEquality(ps, qs, r, s))
}

type hashToCurveFunc func(hashFunction crypto.HashFunction, msg, dst []byte) ([]byte, error)

func hashToCurve(ctx context.Context, mod api.Module, hashFunction, msgPtr, dstPtr, outPtr uint32, cost uint64, hash hashToCurveFunc) uint32 {
	env := environment(ctx)
	msg := readRegion(mod, msgPtr, constants.MaxLengthBLSMessage)
	dst := readRegion(mod, dstPtr, constants.MaxLengthBLSDST)

	charge(env, cost)
	fn, err := crypto.HashFunctionFromUint32(hashFunction)
	if err != nil {
		return errorCode(err)
	}
	point, err := hash(fn, msg, dst)
	if err != nil {
		return errorCode(err)
	}
	writeRegion(env, mod, outPtr, point)
	return 0
}

func bls12381HashToG1(ctx context.Context, mod api.Module, hashFunction, msgPtr, dstPtr, outPtr uint32) uint32 {
	cost := environment(ctx).GasConfig().Bls12381HashToG1Cost
	return hashToCurve(ctx, mod, hashFunction, msgPtr, dstPtr, outPtr, cost, crypto.BLS12381HashToG1)
}

func bls12381HashToG2(ctx context.Context, mod api.Module, hashFunction, msgPtr, dstPtr, outPtr uint32) uint32 {
	cost := environment(ctx).GasConfig().Bls12381HashToG2Cost
	return hashToCurve(ctx, mod, hashFunction, msgPtr, dstPtr, outPtr, cost, crypto.BLS12381HashToG2)
}
