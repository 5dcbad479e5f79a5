package cachefacade

import (
	"github.com/LavishGent/cachefacade/internal/types"
)

// CacheError carries the operation, key and store of a failure.
type CacheError = types.CacheError

var (
	// ErrConnection marks failures to reach the store, including an open circuit.
	ErrConnection = types.ErrConnection
	// ErrSerialization marks values that could not be encoded or decoded.
	ErrSerialization = types.ErrSerialization
	// ErrInvalidKey indicates that a cache key was rejected.
	ErrInvalidKey = types.ErrInvalidKey
	// ErrInvalidTTL indicates a negative TTL other than NoExpiry.
	ErrInvalidTTL = types.ErrInvalidTTL
	// ErrClosed indicates that the facade has been closed.
	ErrClosed = types.ErrClosed
	// ErrCircuitOpen indicates that the circuit breaker rejected the call.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrUnsupported indicates an operation the store cannot perform.
	ErrUnsupported = types.ErrUnsupported
	// ErrWrongType indicates a hash operation on a plain value or the reverse.
	ErrWrongType = types.ErrWrongType
)

func IsConnectionError(err error) bool {
	return types.IsConnectionError(err)
}

func IsSerializationError(err error) bool {
	return types.IsSerializationError(err)
}

func IsInvalidKey(err error) bool {
	return types.IsInvalidKey(err)
}

// IsCircuitOpen returns true if the error indicates the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}

func IsWrongType(err error) bool {
	return types.IsWrongType(err)
}
