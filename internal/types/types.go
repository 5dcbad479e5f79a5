// Package types provides shared types for the cachefacade library.
// This package breaks import cycles between pkg/cachefacade, internal/cache,
// internal/store and internal/metrics.
package types

import (
	"fmt"
	"time"
)

// NoExpiry requests an entry that persists until it is explicitly deleted,
// overriding any configured default TTL.
const NoExpiry time.Duration = -1

type CacheOptions struct {
	TTL time.Duration
}

func DefaultOptions() *CacheOptions {
	return &CacheOptions{}
}

// ResolveTTL returns the ttl to hand to a store: zero for "never expires",
// a positive duration otherwise. A zero TTL in the options falls back to
// defaultTTL.
func (o *CacheOptions) ResolveTTL(defaultTTL time.Duration) (time.Duration, error) {
	ttl := defaultTTL
	if o != nil && o.TTL != 0 {
		ttl = o.TTL
	}

	switch {
	case ttl == NoExpiry, ttl == 0:
		return 0, nil
	case ttl < 0:
		return 0, fmt.Errorf("%w: %v", ErrInvalidTTL, ttl)
	default:
		return ttl, nil
	}
}

// StoreStats is a point-in-time view of a backend's connection pool and
// contents. Fields a backend cannot report stay zero.
type StoreStats struct {
	TotalConns   uint32
	IdleConns    uint32
	StaleConns   uint32
	PoolHits     uint32
	PoolMisses   uint32
	PoolTimeouts uint32
	Entries      int64
}

// Entry is a decoded view of a stored value with its expiry, used by stores
// that keep the expiry next to the payload.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

func (e *Entry) IsExpired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}
