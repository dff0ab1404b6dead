// Package memory moves data across the guest boundary through Regions in
// the linear memory of an instance.
package memory

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"
)

// RegionSize is the encoded size of a Region.
const RegionSize = 12

// Region describes a buffer owned by the guest. It is stored in linear
// memory as three little-endian u32 values.
type Region struct {
	Offset   uint32
	Capacity uint32
	Length   uint32
}

func (r Region) validate() error {
	if r.Offset == 0 {
		return ErrZeroAddress
	}
	if r.Length > r.Capacity {
		return fmt.Errorf("%w: length %d exceeds capacity %d", ErrInvalidRegion, r.Length, r.Capacity)
	}
	if uint64(r.Offset)+uint64(r.Capacity) > math.MaxUint32 {
		return fmt.Errorf("%w: offset %d plus capacity %d overflows", ErrInvalidRegion, r.Offset, r.Capacity)
	}
	return nil
}

// GetRegion reads and validates the Region struct at ptr.
func GetRegion(mem api.Memory, ptr uint32) (Region, error) {
	if ptr == 0 {
		return Region{}, ErrZeroAddress
	}
	raw, ok := mem.Read(ptr, RegionSize)
	if !ok {
		return Region{}, fmt.Errorf("%w: region at %d", ErrInvalidMemoryAccess, ptr)
	}
	r := Region{
		Offset:   binary.LittleEndian.Uint32(raw[0:4]),
		Capacity: binary.LittleEndian.Uint32(raw[4:8]),
		Length:   binary.LittleEndian.Uint32(raw[8:12]),
	}
	if err := r.validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

func setRegion(mem api.Memory, ptr uint32, r Region) error {
	var raw [RegionSize]byte
	binary.LittleEndian.PutUint32(raw[0:4], r.Offset)
	binary.LittleEndian.PutUint32(raw[4:8], r.Capacity)
	binary.LittleEndian.PutUint32(raw[8:12], r.Length)
	if !mem.Write(ptr, raw[:]) {
		return fmt.Errorf("%w: region at %d", ErrInvalidMemoryAccess, ptr)
	}
	return nil
}

// ReadRegion copies the data of the Region at ptr out of guest memory.
// Data longer than maxLength is rejected before it is read.
func ReadRegion(mem api.Memory, ptr uint32, maxLength int) ([]byte, error) {
	r, err := GetRegion(mem, ptr)
	if err != nil {
		return nil, err
	}
	if uint64(r.Length) > uint64(maxLength) {
		return nil, fmt.Errorf("%w: length %d, maximum %d", ErrRegionLengthTooBig, r.Length, maxLength)
	}
	data, ok := mem.Read(r.Offset, r.Length)
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes at %d", ErrInvalidMemoryAccess, r.Length, r.Offset)
	}
	// Read returns a view that is invalidated when the memory grows
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// MaybeReadRegion is ReadRegion that maps a zero pointer to nil.
func MaybeReadRegion(mem api.Memory, ptr uint32, maxLength int) ([]byte, error) {
	if ptr == 0 {
		return nil, nil
	}
	return ReadRegion(mem, ptr, maxLength)
}

// WriteRegion copies data into the Region at ptr and updates its length.
func WriteRegion(mem api.Memory, ptr uint32, data []byte) error {
	r, err := GetRegion(mem, ptr)
	if err != nil {
		return err
	}
	if uint64(len(data)) > uint64(r.Capacity) {
		return fmt.Errorf("%w: size %d, capacity %d", ErrRegionTooSmall, len(data), r.Capacity)
	}
	if !mem.Write(r.Offset, data) {
		return fmt.Errorf("%w: %d bytes at %d", ErrInvalidMemoryAccess, len(data), r.Offset)
	}
	r.Length = uint32(len(data))
	return setRegion(mem, ptr, r)
}
