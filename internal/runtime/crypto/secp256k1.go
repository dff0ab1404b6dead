// Package crypto implements the signature and curve primitives behind the
// crypto imports of the env module.
package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

const (
	messageHashLength = 32
	// signatureLength is r || s, 32 bytes each.
	signatureLength            = 64
	compressedPubkeyLength     = 33
	uncompressedPubkeyLength   = 65
	compactSignatureMagicShift = 27
)

func checkHash(hash []byte) error {
	if len(hash) != messageHashLength {
		return ErrInvalidHashFormat
	}
	return nil
}

func checkSignature(signature []byte) error {
	if len(signature) != signatureLength {
		return ErrInvalidSignatureFormat
	}
	return nil
}

func checkPubkey(pubkey []byte) error {
	switch {
	case len(pubkey) == compressedPubkeyLength && (pubkey[0] == 0x02 || pubkey[0] == 0x03):
		return nil
	case len(pubkey) == uncompressedPubkeyLength && pubkey[0] == 0x04:
		return nil
	default:
		return ErrInvalidPubkeyFormat
	}
}

// parseScalars reads r and s, rejecting zero and values not below the group order.
func parseScalars(signature []byte) (r, s secp256k1.ModNScalar, err error) {
	if overflow := r.SetByteSlice(signature[:32]); overflow || r.IsZero() {
		return r, s, ErrInvalidSignatureFormat
	}
	if overflow := s.SetByteSlice(signature[32:]); overflow || s.IsZero() {
		return r, s, ErrInvalidSignatureFormat
	}
	return r, s, nil
}

// Secp256k1Verify checks a 64 byte r || s signature of a 32 byte message hash
// against a SEC1 encoded public key. High-S signatures are accepted.
func Secp256k1Verify(hash, signature, pubkey []byte) (bool, error) {
	if err := checkHash(hash); err != nil {
		return false, err
	}
	if err := checkSignature(signature); err != nil {
		return false, err
	}
	if err := checkPubkey(pubkey); err != nil {
		return false, err
	}
	r, s, err := parseScalars(signature)
	if err != nil {
		return false, err
	}
	pk, err := secp256k1.ParsePubKey(pubkey)
	if err != nil {
		return false, ErrInvalidPubkeyFormat
	}
	return ecdsa.NewSignature(&r, &s).Verify(hash, pk), nil
}

// Secp256k1RecoverPubkey recovers the uncompressed public key that produced
// signature over hash. recoveryParam must be 0 or 1.
func Secp256k1RecoverPubkey(hash, signature []byte, recoveryParam uint8) ([]byte, error) {
	if err := checkHash(hash); err != nil {
		return nil, err
	}
	if err := checkSignature(signature); err != nil {
		return nil, err
	}
	if recoveryParam > 1 {
		return nil, ErrInvalidRecoveryParam
	}
	if _, _, err := parseScalars(signature); err != nil {
		return nil, err
	}
	compact := make([]byte, 0, 1+signatureLength)
	compact = append(compact, compactSignatureMagicShift+recoveryParam)
	compact = append(compact, signature...)
	pk, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, genericErr("%v", err)
	}
	return pk.SerializeUncompressed(), nil
}
