package types

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection classifies failures of the remote store: unreachable, refused,
	// timed out at the transport layer, or rejected by the server.
	ErrConnection = errors.New("cache: connection error")
	// ErrSerialization classifies values that could not be encoded on write or
	// decoded on read.
	ErrSerialization = errors.New("cache: serialization error")

	ErrCacheMiss   = errors.New("cache: key not found")
	ErrInvalidKey  = errors.New("cache: invalid key")
	ErrInvalidTTL  = errors.New("cache: invalid ttl")
	ErrClosed      = errors.New("cache: facade closed")
	ErrCircuitOpen = errors.New("cache: circuit breaker open")
	ErrUnsupported = errors.New("cache: operation not supported by store")
	// ErrWrongType is returned when a plain operation hits a hash key or the
	// other way round.
	ErrWrongType = errors.New("cache: key holds the wrong kind of value")
)

type CacheError struct {
	Op    string
	Key   string
	Layer string
	Err   error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s on %s [%s]: %v", e.Op, e.Layer, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s on %s: %v", e.Op, e.Layer, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

func NewCacheError(op, key, layer string, err error) *CacheError {
	return &CacheError{
		Op:    op,
		Key:   key,
		Layer: layer,
		Err:   err,
	}
}

// NewConnectionError wraps a transport failure so that errors.Is matches both
// ErrConnection and the original cause.
func NewConnectionError(op, key, layer string, err error) *CacheError {
	if errors.Is(err, ErrConnection) {
		return NewCacheError(op, key, layer, err)
	}
	return NewCacheError(op, key, layer, fmt.Errorf("%w: %w", ErrConnection, err))
}

// NewSerializationError wraps a codec failure so that errors.Is matches both
// ErrSerialization and the original cause.
func NewSerializationError(op, key, layer string, err error) *CacheError {
	if errors.Is(err, ErrSerialization) {
		return NewCacheError(op, key, layer, err)
	}
	return NewCacheError(op, key, layer, fmt.Errorf("%w: %w", ErrSerialization, err))
}

func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnection)
}

func IsSerializationError(err error) bool {
	return errors.Is(err, ErrSerialization)
}

func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

func IsWrongType(err error) bool {
	return errors.Is(err, ErrWrongType)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
