package memory

import "errors"

var (
	// ErrInvalidMemoryAccess is returned for reads or writes outside of the linear memory.
	ErrInvalidMemoryAccess = errors.New("invalid memory access")
	// ErrZeroAddress is returned when a Region pointer or its offset is 0.
	ErrZeroAddress = errors.New("region has zero address")
	// ErrRegionLengthTooBig is returned when a Region holds more data than the caller accepts.
	ErrRegionLengthTooBig = errors.New("region length too big")
	// ErrRegionTooSmall is returned when data does not fit the capacity of a Region.
	ErrRegionTooSmall = errors.New("region too small")
	// ErrInvalidRegion is returned for Regions that are internally inconsistent.
	ErrInvalidRegion = errors.New("invalid region")
)
