package memory

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/wasmbin/wasmtest"
)

func newContract(t *testing.T) api.Module {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })
	mod, err := r.Instantiate(ctx, wasmtest.Contract())
	require.NoError(t, err)
	return mod
}

type guestAllocator struct {
	mod api.Module
}

func (a guestAllocator) Allocate(ctx context.Context, size uint32) (uint32, error) {
	res, err := a.mod.ExportedFunction("allocate").Call(ctx, uint64(size))
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

func putRegion(t *testing.T, mem api.Memory, ptr uint32, r Region) {
	t.Helper()
	var raw [RegionSize]byte
	binary.LittleEndian.PutUint32(raw[0:4], r.Offset)
	binary.LittleEndian.PutUint32(raw[4:8], r.Capacity)
	binary.LittleEndian.PutUint32(raw[8:12], r.Length)
	require.True(t, mem.Write(ptr, raw[:]))
}

func TestWriteThenReadRegion(t *testing.T) {
	ctx := context.Background()
	mod := newContract(t)
	mem := mod.Memory()

	ptr, err := WriteToContract(ctx, mem, guestAllocator{mod}, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint32(wasmtest.HeapStart), ptr)

	r, err := GetRegion(mem, ptr)
	require.NoError(t, err)
	assert.Equal(t, Region{Offset: wasmtest.HeapStart + RegionSize, Capacity: 5, Length: 5}, r)

	data, err := ReadRegion(mem, ptr, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = ReadRegion(mem, ptr, 4)
	require.ErrorIs(t, err, ErrRegionLengthTooBig)
}

func TestWriteRegionCapacity(t *testing.T) {
	mem := newContract(t).Memory()
	putRegion(t, mem, 100, Region{Offset: 200, Capacity: 3, Length: 0})

	require.NoError(t, WriteRegion(mem, 100, []byte("abc")))
	r, err := GetRegion(mem, 100)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), r.Length)

	require.ErrorIs(t, WriteRegion(mem, 100, []byte("abcd")), ErrRegionTooSmall)

	// empty data resets the length
	require.NoError(t, WriteRegion(mem, 100, nil))
	r, err = GetRegion(mem, 100)
	require.NoError(t, err)
	assert.Zero(t, r.Length)
}

func TestInvalidRegions(t *testing.T) {
	mem := newContract(t).Memory()

	_, err := GetRegion(mem, 0)
	require.ErrorIs(t, err, ErrZeroAddress)

	putRegion(t, mem, 100, Region{Offset: 0, Capacity: 10, Length: 1})
	_, err = GetRegion(mem, 100)
	require.ErrorIs(t, err, ErrZeroAddress)

	putRegion(t, mem, 100, Region{Offset: 200, Capacity: 1, Length: 2})
	_, err = GetRegion(mem, 100)
	require.ErrorIs(t, err, ErrInvalidRegion)

	putRegion(t, mem, 100, Region{Offset: 0xffff_fff0, Capacity: 0x20, Length: 0})
	_, err = GetRegion(mem, 100)
	require.ErrorIs(t, err, ErrInvalidRegion)

	// region struct beyond the end of memory
	_, err = GetRegion(mem, mem.Size()-4)
	require.ErrorIs(t, err, ErrInvalidMemoryAccess)

	// data beyond the end of memory
	putRegion(t, mem, 100, Region{Offset: mem.Size() - 2, Capacity: 8, Length: 8})
	_, err = ReadRegion(mem, 100, 100)
	require.ErrorIs(t, err, ErrInvalidMemoryAccess)
}

func TestMaybeReadRegion(t *testing.T) {
	mem := newContract(t).Memory()
	data, err := MaybeReadRegion(mem, 0, 10)
	require.NoError(t, err)
	assert.Nil(t, data)

	putRegion(t, mem, 100, Region{Offset: 200, Capacity: 2, Length: 2})
	require.True(t, mem.Write(200, []byte("ok")))
	data, err = MaybeReadRegion(mem, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
}

func TestReadRegionReturnsCopy(t *testing.T) {
	mem := newContract(t).Memory()
	putRegion(t, mem, 100, Region{Offset: 200, Capacity: 2, Length: 2})
	require.True(t, mem.Write(200, []byte("ab")))

	data, err := ReadRegion(mem, 100, 10)
	require.NoError(t, err)
	require.True(t, mem.Write(200, []byte("zz")))
	assert.Equal(t, []byte("ab"), data)
}
