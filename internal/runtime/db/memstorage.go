// Package db provides Storage, Querier and BackendAPI implementations for
// running contracts outside of a chain.
package db

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/iterator"
	"github.com/CosmWasm/wasmsandbox/types"
)

// Gas reported as externally used by the storages of this package.
const (
	GasCostRange         = 11
	GasCostLastIteration = 37
)

const btreeDegree = 32

func readGas(key, value []byte) types.GasInfo {
	return types.GasInfoWithExternallyUsed(uint64(len(key) + len(value)))
}

type item struct {
	key   []byte
	value []byte
}

func (i item) Less(than btree.Item) bool {
	return bytes.Compare(i.key, than.(item).key) < 0
}

// MemStorage is an ordered in-memory Storage. Scans iterate over a
// snapshot taken when the scan is opened.
type MemStorage struct {
	mu        sync.RWMutex
	tree      *btree.BTree
	iterators *iterator.Manager
}

var _ types.Storage = (*MemStorage)(nil)

func NewMemStorage() *MemStorage {
	return &MemStorage{
		tree:      btree.New(btreeDegree),
		iterators: iterator.New(),
	}
}

func (s *MemStorage) Get(key []byte) ([]byte, types.GasInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := s.tree.Get(item{key: key})
	if found == nil {
		return nil, readGas(key, nil), nil
	}
	value := found.(item).value
	return bytes.Clone(value), readGas(key, value), nil
}

func (s *MemStorage) Set(key, value []byte) (types.GasInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.ReplaceOrInsert(item{key: bytes.Clone(key), value: bytes.Clone(value)})
	return readGas(key, value), nil
}

func (s *MemStorage) Remove(key []byte) (types.GasInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Delete(item{key: key})
	return readGas(key, nil), nil
}

func (s *MemStorage) Scan(start, end []byte, order types.Order) (uint32, types.GasInfo, error) {
	gas := types.GasInfoWithExternallyUsed(GasCostRange)
	if order != types.Ascending && order != types.Descending {
		return 0, gas, types.NewBackendError(types.BackendErrBadArgument, "invalid order")
	}
	s.mu.RLock()
	snapshot := s.tree.Clone()
	s.mu.RUnlock()

	src := &treeCursor{tree: snapshot, start: bytes.Clone(start), end: bytes.Clone(end), order: order}
	return s.iterators.Create(src), gas, nil
}

func (s *MemStorage) Next(iteratorID uint32) (*types.Record, types.GasInfo, error) {
	rec, err := s.iterators.Next(iteratorID)
	if err != nil {
		return nil, types.FreeGasInfo(), err
	}
	if rec == nil {
		return nil, types.GasInfoWithExternallyUsed(GasCostLastIteration), nil
	}
	return rec, readGas(rec.Key, rec.Value), nil
}

func (s *MemStorage) NextKey(iteratorID uint32) ([]byte, types.GasInfo, error) {
	rec, gas, err := s.Next(iteratorID)
	if rec == nil {
		return nil, gas, err
	}
	return rec.Key, gas, err
}

func (s *MemStorage) NextValue(iteratorID uint32) ([]byte, types.GasInfo, error) {
	rec, gas, err := s.Next(iteratorID)
	if rec == nil {
		return nil, gas, err
	}
	return rec.Value, gas, err
}

// Len returns the number of entries.
func (s *MemStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Close drops all open iterators.
func (s *MemStorage) Close() error {
	return s.iterators.RemoveAll()
}

// treeCursor walks [start, end) of a snapshot, resuming after the last key
// it returned.
type treeCursor struct {
	tree       *btree.BTree
	start, end []byte
	order      types.Order
	last       []byte
	done       bool
}

func (c *treeCursor) inRange(key []byte) bool {
	if c.start != nil && bytes.Compare(key, c.start) < 0 {
		return false
	}
	if c.end != nil && bytes.Compare(key, c.end) >= 0 {
		return false
	}
	return true
}

func (c *treeCursor) Next() (*types.Record, error) {
	if c.done {
		return nil, nil
	}
	var found *item
	visit := func(i btree.Item) bool {
		it := i.(item)
		if c.last != nil && bytes.Equal(it.key, c.last) {
			return true
		}
		// end is exclusive
		if c.order == types.Descending && c.end != nil && bytes.Equal(it.key, c.end) {
			return true
		}
		if c.inRange(it.key) {
			found = &it
		}
		return false
	}

	switch {
	case c.order == types.Ascending && c.last != nil:
		c.tree.AscendGreaterOrEqual(item{key: c.last}, visit)
	case c.order == types.Ascending && c.start != nil:
		c.tree.AscendGreaterOrEqual(item{key: c.start}, visit)
	case c.order == types.Ascending:
		c.tree.Ascend(visit)
	case c.last != nil:
		c.tree.DescendLessOrEqual(item{key: c.last}, visit)
	case c.end != nil:
		c.tree.DescendLessOrEqual(item{key: c.end}, visit)
	default:
		c.tree.Descend(visit)
	}

	if found == nil {
		c.done = true
		return nil, nil
	}
	c.last = found.key
	return &types.Record{Key: bytes.Clone(found.key), Value: bytes.Clone(found.value)}, nil
}

func (c *treeCursor) Close() error {
	c.tree = nil
	c.done = true
	return nil
}
