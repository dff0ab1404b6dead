// Package iterator tracks the range scans a contract opened on a storage.
package iterator

import (
	"sync"

	"github.com/CosmWasm/wasmsandbox/types"
)

// Source yields the records of one range scan in order.
type Source interface {
	// Next returns nil once the scan is exhausted.
	Next() (*types.Record, error)
	Close() error
}

// Manager hands out iterator IDs for the scans of one storage. IDs are
// never reused while the manager lives.
type Manager struct {
	mu        sync.Mutex
	iterators map[uint32]Source
	nextID    uint32
}

// New creates an empty iterator manager.
func New() *Manager {
	return &Manager{
		iterators: make(map[uint32]Source),
	}
}

// Create stores src and returns its ID.
func (m *Manager) Create(src Source) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.iterators[id] = src
	m.nextID++
	return id
}

// Next advances the iterator with the given ID.
func (m *Manager) Next(id uint32) (*types.Record, error) {
	m.mu.Lock()
	src, ok := m.iterators[id]
	m.mu.Unlock()
	if !ok {
		return nil, types.BackendError{Kind: types.BackendErrIteratorDoesNotExist, ID: id}
	}
	return src.Next()
}

// Len returns the number of open iterators.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.iterators)
}

// RemoveAll closes every open iterator.
func (m *Manager) RemoveAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for id, src := range m.iterators {
		if err := src.Close(); err != nil && first == nil {
			first = err
		}
		delete(m.iterators, id)
	}
	return first
}

// Records is a Source over a precomputed slice.
type Records struct {
	records []types.Record
	pos     int
}

// NewRecords returns a Source yielding records in slice order.
func NewRecords(records []types.Record) *Records {
	return &Records{records: records}
}

func (r *Records) Next() (*types.Record, error) {
	if r.pos >= len(r.records) {
		return nil, nil
	}
	rec := r.records[r.pos]
	r.pos++
	return &rec, nil
}

func (r *Records) Close() error {
	r.records = nil
	return nil
}
