package crypto

import (
	"fmt"

	bls12381 "github.com/kilic/bls12-381"
)

// Compressed point sizes.
const (
	BLS12381G1PointLen = 48
	BLS12381G2PointLen = 96
)

// HashFunction selects the expander used by hash-to-curve.
type HashFunction uint32

// HashFunctionSHA256 is expand_message_xmd with SHA-256.
const HashFunctionSHA256 HashFunction = 0

// HashFunctionFromUint32 converts the raw value a contract passes.
func HashFunctionFromUint32(v uint32) (HashFunction, error) {
	if HashFunction(v) != HashFunctionSHA256 {
		return 0, ErrUnknownHashFunction
	}
	return HashFunctionSHA256, nil
}

func splitPoints(data []byte, size int) ([][]byte, error) {
	if len(data)%size != 0 {
		return nil, invalidPoint(fmt.Sprintf("input length %d is not a multiple of %d", len(data), size))
	}
	out := make([][]byte, 0, len(data)/size)
	for i := 0; i < len(data); i += size {
		out = append(out, data[i:i+size])
	}
	return out, nil
}

func g1Point(g1 *bls12381.G1, raw []byte) (*bls12381.PointG1, error) {
	p, err := g1.FromCompressed(raw)
	if err != nil {
		return nil, invalidPoint(err.Error())
	}
	if !g1.InCorrectSubgroup(p) {
		return nil, invalidPoint("point is not in the G1 subgroup")
	}
	return p, nil
}

func g2Point(g2 *bls12381.G2, raw []byte) (*bls12381.PointG2, error) {
	p, err := g2.FromCompressed(raw)
	if err != nil {
		return nil, invalidPoint(err.Error())
	}
	if !g2.InCorrectSubgroup(p) {
		return nil, invalidPoint("point is not in the G2 subgroup")
	}
	return p, nil
}

// BLS12381G1Count returns how many compressed G1 points data holds.
func BLS12381G1Count(data []byte) uint64 {
	return uint64(len(data) / BLS12381G1PointLen)
}

// BLS12381G2Count returns how many compressed G2 points data holds.
func BLS12381G2Count(data []byte) uint64 {
	return uint64(len(data) / BLS12381G2PointLen)
}

// BLS12381AggregateG1 sums concatenated compressed G1 points.
func BLS12381AggregateG1(points []byte) ([]byte, error) {
	raw, err := splitPoints(points, BLS12381G1PointLen)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, Error{Code: CodeAggregation, Msg: "Empty point list"}
	}
	g1 := bls12381.NewG1()
	sum := g1.Zero()
	for _, r := range raw {
		p, err := g1Point(g1, r)
		if err != nil {
			return nil, err
		}
		g1.Add(sum, sum, p)
	}
	return g1.ToCompressed(sum), nil
}

// BLS12381AggregateG2 sums concatenated compressed G2 points.
func BLS12381AggregateG2(points []byte) ([]byte, error) {
	raw, err := splitPoints(points, BLS12381G2PointLen)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, Error{Code: CodeAggregation, Msg: "Empty point list"}
	}
	g2 := bls12381.NewG2()
	sum := g2.Zero()
	for _, r := range raw {
		p, err := g2Point(g2, r)
		if err != nil {
			return nil, err
		}
		g2.Add(sum, sum, p)
	}
	return g2.ToCompressed(sum), nil
}

// BLS12381HashToG1 hashes msg to a compressed G1 point under the domain separation tag dst.
func BLS12381HashToG1(hashFunction HashFunction, msg, dst []byte) ([]byte, error) {
	if hashFunction != HashFunctionSHA256 {
		return nil, ErrUnknownHashFunction
	}
	g1 := bls12381.NewG1()
	p, err := g1.HashToCurve(msg, dst)
	if err != nil {
		return nil, genericErr("%v", err)
	}
	return g1.ToCompressed(p), nil
}

// BLS12381HashToG2 hashes msg to a compressed G2 point under the domain separation tag dst.
func BLS12381HashToG2(hashFunction HashFunction, msg, dst []byte) ([]byte, error) {
	if hashFunction != HashFunctionSHA256 {
		return nil, ErrUnknownHashFunction
	}
	g2 := bls12381.NewG2()
	p, err := g2.HashToCurve(msg, dst)
	if err != nil {
		return nil, genericErr("%v", err)
	}
	return g2.ToCompressed(p), nil
}

// BLS12381PairingEquality reports whether e(p1, q1) * ... * e(pn, qn) == e(r, s)
// where ps holds n concatenated G1 points and qs n concatenated G2 points.
func BLS12381PairingEquality(ps, qs, r, s []byte) (bool, error) {
	rawPs, err := splitPoints(ps, BLS12381G1PointLen)
	if err != nil {
		return false, err
	}
	rawQs, err := splitPoints(qs, BLS12381G2PointLen)
	if err != nil {
		return false, err
	}
	if len(rawPs) != len(rawQs) {
		return false, Error{Code: CodePairingEquality, Msg: fmt.Sprintf("unequal point amounts: %d G1 and %d G2", len(rawPs), len(rawQs))}
	}
	if len(rawPs) == 0 {
		return false, Error{Code: CodePairingEquality, Msg: "empty point list"}
	}
	if len(r) != BLS12381G1PointLen {
		return false, invalidPoint("r must be a compressed G1 point")
	}
	if len(s) != BLS12381G2PointLen {
		return false, invalidPoint("s must be a compressed G2 point")
	}

	g1 := bls12381.NewG1()
	g2 := bls12381.NewG2()
	engine := bls12381.NewEngine()
	for i := range rawPs {
		p, err := g1Point(g1, rawPs[i])
		if err != nil {
			return false, err
		}
		q, err := g2Point(g2, rawQs[i])
		if err != nil {
			return false, err
		}
		engine.AddPair(p, q)
	}
	rp, err := g1Point(g1, r)
	if err != nil {
		return false, err
	}
	sp, err := g2Point(g2, s)
	if err != nil {
		return false, err
	}
	// multiplying by e(r, s)^-1 turns the equality into a product check against 1
	engine.AddPairInv(rp, sp)
	return engine.Check(), nil
}
