package memory

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// Allocator obtains Regions from the guest allocator.
type Allocator interface {
	// Allocate returns a pointer to a Region with at least size bytes of capacity.
	Allocate(ctx context.Context, size uint32) (uint32, error)
}

// WriteToContract allocates a Region in the guest, copies data into it and
// returns the Region pointer.
func WriteToContract(ctx context.Context, mem api.Memory, alloc Allocator, data []byte) (uint32, error) {
	if uint64(len(data)) > uint64(^uint32(0)) {
		return 0, fmt.Errorf("%w: %d bytes", ErrRegionLengthTooBig, len(data))
	}
	ptr, err := alloc.Allocate(ctx, uint32(len(data)))
	if err != nil {
		return 0, err
	}
	if err := WriteRegion(mem, ptr, data); err != nil {
		return 0, err
	}
	return ptr, nil
}
