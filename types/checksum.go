package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ChecksumLen is the length of a module checksum in bytes.
const ChecksumLen = sha256.Size

// Checksum identifies admitted code by the SHA-256 of the bytes as uploaded,
// before the metering rewrite.
type Checksum [ChecksumLen]byte

// ChecksumOf hashes code.
func ChecksumOf(code []byte) Checksum {
	return Checksum(sha256.Sum256(code))
}

// ParseChecksum decodes the hex form produced by String.
func ParseChecksum(s string) (Checksum, error) {
	var cs Checksum
	data, err := hex.DecodeString(s)
	if err != nil {
		return cs, fmt.Errorf("invalid checksum %q: %w", s, err)
	}
	if len(data) != ChecksumLen {
		return cs, fmt.Errorf("invalid checksum %q: got %d bytes, expected %d", s, len(data), ChecksumLen)
	}
	copy(cs[:], data)
	return cs, nil
}

func (cs Checksum) String() string {
	return hex.EncodeToString(cs[:])
}

func (cs Checksum) MarshalJSON() ([]byte, error) {
	return json.Marshal(cs.String())
}

func (cs *Checksum) UnmarshalJSON(input []byte) error {
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return err
	}
	parsed, err := ParseChecksum(s)
	if err != nil {
		return err
	}
	*cs = parsed
	return nil
}
