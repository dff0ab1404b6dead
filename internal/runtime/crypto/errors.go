package crypto

import "fmt"

// Error codes returned to the guest by the crypto imports. 0 and 1 are
// reserved for "valid" and "invalid".
const (
	CodeInvalidHashFormat      uint32 = 3
	CodeInvalidSignatureFormat uint32 = 4
	CodeInvalidPubkeyFormat    uint32 = 5
	CodeInvalidRecoveryParam   uint32 = 6
	CodeBatchErr               uint32 = 7
	CodeInvalidPoint           uint32 = 8
	CodeUnknownHashFunction    uint32 = 9
	CodeGenericErr             uint32 = 10
	CodeAggregation            uint32 = 11
	CodePairingEquality        uint32 = 12
)

// Error is a failure a contract can observe through a crypto import.
type Error struct {
	Code uint32
	Msg  string
}

func (e Error) Error() string {
	switch e.Code {
	case CodeInvalidHashFormat:
		return "Invalid hash format"
	case CodeInvalidSignatureFormat:
		return "Invalid signature format"
	case CodeInvalidPubkeyFormat:
		return "Invalid public key format"
	case CodeInvalidRecoveryParam:
		return "Invalid recovery parameter. Supported values: 0 and 1."
	case CodeBatchErr:
		return fmt.Sprintf("Batch verify error: %s", e.Msg)
	case CodeInvalidPoint:
		return fmt.Sprintf("Invalid point: %s", e.Msg)
	case CodeUnknownHashFunction:
		return "Unknown hash function"
	case CodeAggregation:
		return fmt.Sprintf("Point aggregation error: %s", e.Msg)
	case CodePairingEquality:
		return fmt.Sprintf("Pairing equality error: %s", e.Msg)
	default:
		return fmt.Sprintf("Crypto error: %s", e.Msg)
	}
}

var (
	ErrInvalidHashFormat      = Error{Code: CodeInvalidHashFormat}
	ErrInvalidSignatureFormat = Error{Code: CodeInvalidSignatureFormat}
	ErrInvalidPubkeyFormat    = Error{Code: CodeInvalidPubkeyFormat}
	ErrInvalidRecoveryParam   = Error{Code: CodeInvalidRecoveryParam}
	ErrUnknownHashFunction    = Error{Code: CodeUnknownHashFunction}
)

func genericErr(format string, args ...any) Error {
	return Error{Code: CodeGenericErr, Msg: fmt.Sprintf(format, args...)}
}

func batchErr(msg string) Error {
	return Error{Code: CodeBatchErr, Msg: msg}
}

func invalidPoint(msg string) Error {
	return Error{Code: CodeInvalidPoint, Msg: msg}
}
