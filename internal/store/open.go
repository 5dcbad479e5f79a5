// Package store holds the byte-level backends behind the cache facade:
// Redis, an in-process memory store, a single-file bbolt store and an
// optional near cache that can front any of them.
package store

import (
	"fmt"
	"log/slog"

	"github.com/LavishGent/cachefacade/internal/config"
	"github.com/LavishGent/cachefacade/internal/types"
)

// Open builds the backend selected by cfg.Store.Backend and wraps it in a
// NearCache when cfg.NearCache.Enabled is set.
func Open(cfg *config.Config, logger *slog.Logger) (types.Store, error) {
	return OpenWithClock(cfg, logger, nil)
}

// OpenWithClock is Open with an explicit clock for the backends that track
// expiry themselves.
func OpenWithClock(cfg *config.Config, logger *slog.Logger, clock types.Clock) (types.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		s   types.Store
		err error
	)
	switch cfg.Store.Backend {
	case config.BackendRedis, "":
		s = OpenRedis(cfg.Redis, logger)
	case config.BackendMemory:
		s = NewMemoryStore(cfg.Memory, MemoryOptions{Logger: logger, Clock: clock})
	case config.BackendBolt:
		s, err = OpenBolt(cfg.Bolt, BoltOptions{Logger: logger, Clock: clock})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if !cfg.NearCache.Enabled {
		return s, nil
	}

	near, err := NewNearCache(s, cfg.NearCache, NearOptions{Logger: logger, Clock: clock})
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return near, nil
}
