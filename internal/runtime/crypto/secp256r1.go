package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"math/big"
)

func parseP256Pubkey(pubkey []byte) (*ecdsa.PublicKey, error) {
	if err := checkPubkey(pubkey); err != nil {
		return nil, err
	}
	curve := elliptic.P256()
	var x, y *big.Int
	if len(pubkey) == compressedPubkeyLength {
		x, y = elliptic.UnmarshalCompressed(curve, pubkey)
	} else {
		x, y = elliptic.Unmarshal(curve, pubkey)
	}
	if x == nil {
		return nil, ErrInvalidPubkeyFormat
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func parseP256Scalars(signature []byte) (r, s *big.Int, err error) {
	n := elliptic.P256().Params().N
	r = new(big.Int).SetBytes(signature[:32])
	s = new(big.Int).SetBytes(signature[32:])
	if r.Sign() == 0 || s.Sign() == 0 || r.Cmp(n) >= 0 || s.Cmp(n) >= 0 {
		return nil, nil, ErrInvalidSignatureFormat
	}
	return r, s, nil
}

// Secp256r1Verify checks a 64 byte r || s NIST P-256 signature of a 32 byte
// message hash against a SEC1 encoded public key.
func Secp256r1Verify(hash, signature, pubkey []byte) (bool, error) {
	if err := checkHash(hash); err != nil {
		return false, err
	}
	if err := checkSignature(signature); err != nil {
		return false, err
	}
	pk, err := parseP256Pubkey(pubkey)
	if err != nil {
		return false, err
	}
	r, s, err := parseP256Scalars(signature)
	if err != nil {
		return false, err
	}
	return ecdsa.Verify(pk, hash, r, s), nil
}

// Secp256r1RecoverPubkey recovers the uncompressed P-256 public key that
// produced signature over hash. The low bit of recoveryParam selects the
// parity of R's y coordinate.
func Secp256r1RecoverPubkey(hash, signature []byte, recoveryParam uint8) ([]byte, error) {
	if err := checkHash(hash); err != nil {
		return nil, err
	}
	if err := checkSignature(signature); err != nil {
		return nil, err
	}
	if recoveryParam > 1 {
		return nil, ErrInvalidRecoveryParam
	}
	r, s, err := parseP256Scalars(signature)
	if err != nil {
		return nil, err
	}

	curve := elliptic.P256()
	params := curve.Params()

	// R = (r, y) with y^2 = r^3 - 3r + b
	y2 := new(big.Int).Exp(r, big.NewInt(3), params.P)
	y2.Sub(y2, new(big.Int).Mul(r, big.NewInt(3)))
	y2.Add(y2, params.B)
	y2.Mod(y2, params.P)
	ry := new(big.Int).ModSqrt(y2, params.P)
	if ry == nil {
		return nil, genericErr("signature point is not on the curve")
	}
	if ry.Bit(0) != uint(recoveryParam) {
		ry.Sub(params.P, ry)
	}

	// Q = r^-1 (sR - eG)
	rInv := new(big.Int).ModInverse(r, params.N)
	e := new(big.Int).SetBytes(hash)
	u1 := new(big.Int).Neg(e)
	u1.Mul(u1, rInv)
	u1.Mod(u1, params.N)
	u2 := new(big.Int).Mul(s, rInv)
	u2.Mod(u2, params.N)

	x1, y1 := curve.ScalarBaseMult(u1.Bytes())
	x2, y2p := curve.ScalarMult(r, ry, u2.Bytes())
	qx, qy := curve.Add(x1, y1, x2, y2p)
	if qx.Sign() == 0 && qy.Sign() == 0 {
		return nil, genericErr("recovered point at infinity")
	}

	pk := &ecdsa.PublicKey{Curve: curve, X: qx, Y: qy}
	if !ecdsa.Verify(pk, hash, r, s) {
		return nil, genericErr("recovered key does not verify the signature")
	}
	return elliptic.Marshal(curve, qx, qy), nil
}
