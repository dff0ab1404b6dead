package types

import "fmt"

// Order selects the direction of a range scan.
type Order int32

const (
	Ascending  Order = 1
	Descending Order = 2
)

func (o Order) String() string {
	switch o {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	default:
		return fmt.Sprintf("order(%d)", int32(o))
	}
}

// OrderFromInt converts the raw value a contract passes to db_scan.
func OrderFromInt(v int32) (Order, error) {
	switch Order(v) {
	case Ascending, Descending:
		return Order(v), nil
	default:
		return 0, NewBackendError(BackendErrBadArgument, "Order must be 1 (ascending) or 2 (descending)")
	}
}

// Record is a key/value pair produced by an iterator.
type Record struct {
	Key   []byte
	Value []byte
}

// Storage is the durable key/value store a contract reads and writes.
// Every method returns the gas it consumed even when it fails.
type Storage interface {
	Get(key []byte) ([]byte, GasInfo, error)
	Set(key, value []byte) (GasInfo, error)
	Remove(key []byte) (GasInfo, error)

	// Scan opens an iterator over [start, end) and returns its ID.
	// A nil start or end means unbounded.
	Scan(start, end []byte, order Order) (uint32, GasInfo, error)
	// Next returns nil once the iterator is exhausted.
	Next(iteratorID uint32) (*Record, GasInfo, error)
	NextKey(iteratorID uint32) ([]byte, GasInfo, error)
	NextValue(iteratorID uint32) ([]byte, GasInfo, error)
}

// Querier answers chain queries issued by the contract.
// The returned error is a backend failure, the SystemResult carries
// system-level and contract-level outcomes.
type Querier interface {
	QueryRaw(request []byte, gasLimit uint64) (SystemResult, GasInfo, error)
}

// BackendAPI provides address handling of the host chain.
type BackendAPI interface {
	AddrValidate(human string) (GasInfo, error)
	AddrCanonicalize(human string) ([]byte, GasInfo, error)
	AddrHumanize(canonical []byte) (string, GasInfo, error)
}

// Backend bundles the external collaborators of one instance.
type Backend struct {
	API     BackendAPI
	Storage Storage
	Querier Querier
}

type BackendErrorKind int

const (
	BackendErrUnknown BackendErrorKind = iota
	BackendErrForeignPanic
	BackendErrBadArgument
	BackendErrInvalidUtf8
	BackendErrIteratorDoesNotExist
	BackendErrOutOfGas
	BackendErrUser
)

// BackendError is returned by Storage, Querier and BackendAPI implementations.
type BackendError struct {
	Kind BackendErrorKind
	Msg  string
	ID   uint32
}

func NewBackendError(kind BackendErrorKind, msg string) BackendError {
	return BackendError{Kind: kind, Msg: msg}
}

func (e BackendError) Error() string {
	switch e.Kind {
	case BackendErrForeignPanic:
		return "Panic in FFI call"
	case BackendErrBadArgument:
		return "Bad argument"
	case BackendErrInvalidUtf8:
		return "VM received invalid UTF-8 data from backend"
	case BackendErrIteratorDoesNotExist:
		return fmt.Sprintf("Iterator with ID %d does not exist", e.ID)
	case BackendErrOutOfGas:
		return "Ran out of gas during call into backend"
	case BackendErrUser:
		return fmt.Sprintf("User error during call into backend: %s", e.Msg)
	default:
		return fmt.Sprintf("Unknown error during call into backend: %s", e.Msg)
	}
}
