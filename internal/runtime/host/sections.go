package host

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeSections joins sections so that each one is followed by its length
// as a big-endian u32:
//
//	section1 || len1 || section2 || len2 || ...
//
// Suffixed lengths let the guest decode from the end without moving the
// first section.
func EncodeSections(sections ...[]byte) ([]byte, error) {
	size := 0
	for _, s := range sections {
		if uint64(len(s)) > math.MaxUint32 {
			return nil, fmt.Errorf("section of %d bytes does not fit a u32 length", len(s))
		}
		size += len(s) + 4
	}
	out := make([]byte, 0, size)
	for _, s := range sections {
		out = append(out, s...)
		out = binary.BigEndian.AppendUint32(out, uint32(len(s)))
	}
	return out, nil
}

// DecodeSections is the inverse of EncodeSections. Data that is not a
// sequence of complete sections is an error.
func DecodeSections(data []byte) ([][]byte, error) {
	var reversed [][]byte
	remaining := len(data)
	for remaining > 0 {
		if remaining < 4 {
			return nil, fmt.Errorf("truncated section length at offset %d", remaining)
		}
		length := int(binary.BigEndian.Uint32(data[remaining-4 : remaining]))
		remaining -= 4
		if length > remaining {
			return nil, fmt.Errorf("section length %d exceeds the %d bytes before it", length, remaining)
		}
		reversed = append(reversed, data[remaining-length:remaining])
		remaining -= length
	}
	out := make([][]byte, len(reversed))
	for i, s := range reversed {
		out[len(reversed)-1-i] = s
	}
	return out, nil
}
