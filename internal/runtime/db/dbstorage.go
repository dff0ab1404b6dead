package db

import (
	"fmt"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/CosmWasm/wasmsandbox/internal/runtime/iterator"
	"github.com/CosmWasm/wasmsandbox/types"
)

// DBStorage adapts a cometbft-db database to Storage. Scans read their
// whole range when opened so that no database iterator stays open while the
// contract writes.
type DBStorage struct {
	db        dbm.DB
	iterators *iterator.Manager
}

var _ types.Storage = (*DBStorage)(nil)

func NewDBStorage(db dbm.DB) *DBStorage {
	return &DBStorage{
		db:        db,
		iterators: iterator.New(),
	}
}

func backendErr(op string, err error) error {
	return types.NewBackendError(types.BackendErrUnknown, fmt.Sprintf("%s: %v", op, err))
}

func (s *DBStorage) Get(key []byte) ([]byte, types.GasInfo, error) {
	value, err := s.db.Get(key)
	if err != nil {
		return nil, readGas(key, nil), backendErr("get", err)
	}
	return value, readGas(key, value), nil
}

func (s *DBStorage) Set(key, value []byte) (types.GasInfo, error) {
	gas := readGas(key, value)
	// cometbft-db rejects nil values, contracts may store empty ones
	if value == nil {
		value = []byte{}
	}
	if err := s.db.Set(key, value); err != nil {
		return gas, backendErr("set", err)
	}
	return gas, nil
}

func (s *DBStorage) Remove(key []byte) (types.GasInfo, error) {
	if err := s.db.Delete(key); err != nil {
		return readGas(key, nil), backendErr("remove", err)
	}
	return readGas(key, nil), nil
}

func (s *DBStorage) Scan(start, end []byte, order types.Order) (uint32, types.GasInfo, error) {
	gas := types.GasInfoWithExternallyUsed(GasCostRange)
	var (
		it  dbm.Iterator
		err error
	)
	switch order {
	case types.Ascending:
		it, err = s.db.Iterator(start, end)
	case types.Descending:
		it, err = s.db.ReverseIterator(start, end)
	default:
		return 0, gas, types.NewBackendError(types.BackendErrBadArgument, "invalid order")
	}
	if err != nil {
		return 0, gas, backendErr("scan", err)
	}
	defer it.Close()

	var records []types.Record
	for ; it.Valid(); it.Next() {
		records = append(records, types.Record{
			Key:   append([]byte(nil), it.Key()...),
			Value: append([]byte(nil), it.Value()...),
		})
	}
	if err := it.Error(); err != nil {
		return 0, gas, backendErr("scan", err)
	}
	return s.iterators.Create(iterator.NewRecords(records)), gas, nil
}

func (s *DBStorage) Next(iteratorID uint32) (*types.Record, types.GasInfo, error) {
	rec, err := s.iterators.Next(iteratorID)
	if err != nil {
		return nil, types.FreeGasInfo(), err
	}
	if rec == nil {
		return nil, types.GasInfoWithExternallyUsed(GasCostLastIteration), nil
	}
	return rec, readGas(rec.Key, rec.Value), nil
}

func (s *DBStorage) NextKey(iteratorID uint32) ([]byte, types.GasInfo, error) {
	rec, gas, err := s.Next(iteratorID)
	if rec == nil {
		return nil, gas, err
	}
	return rec.Key, gas, err
}

func (s *DBStorage) NextValue(iteratorID uint32) ([]byte, types.GasInfo, error) {
	rec, gas, err := s.Next(iteratorID)
	if rec == nil {
		return nil, gas, err
	}
	return rec.Value, gas, err
}

// Close drops all open iterators. The database stays open.
func (s *DBStorage) Close() error {
	return s.iterators.RemoveAll()
}
