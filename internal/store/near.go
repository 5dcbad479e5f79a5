package store

import (
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/LavishGent/cachefacade/internal/config"
	"github.com/LavishGent/cachefacade/internal/types"
)

// NearOptions tunes a NearCache.
type NearOptions struct {
	Logger *slog.Logger
	Clock  types.Clock
}

// NearCache keeps recently read values in process memory in front of
// another Store. Writes go to the inner store first and then refresh the
// local copy, so a failed write never leaves a value only in memory.
// Entries written by other processes are seen once the local copy expires,
// at the latest after LifeWindow.
type NearCache struct {
	inner  types.Store
	local  *bigcache.BigCache
	clock  types.Clock
	logger *slog.Logger

	// Writers bump a key's stripe generation after changing the inner
	// store. A read only copies into the local layer when the generation
	// it saw before the inner read is unchanged.
	seed    maphash.Seed
	stripes [nearStripes]nearStripe

	evictions atomic.Int64
	closed    atomic.Bool
}

const nearStripes = 64

type nearStripe struct {
	mu  sync.Mutex
	gen uint64
}

// NearStats reports the local layer's counters.
type NearStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

func NewNearCache(inner types.Store, cfg config.NearCacheConfig, opts NearOptions) (*NearCache, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}

	nc := &NearCache{
		inner:  inner,
		clock:  clock,
		logger: logger.With("component", "near-cache"),
		seed:   maphash.MakeSeed(),
	}

	bcConfig := bigcache.Config{
		Shards:             cfg.Shards,
		LifeWindow:         cfg.LifeWindow,
		CleanWindow:        cfg.CleanWindow,
		MaxEntriesInWindow: 1000 * 10 * 60,
		MaxEntrySize:       cfg.MaxEntrySize,
		HardMaxCacheSize:   cfg.MaxSizeMB,
		StatsEnabled:       false,
		Verbose:            false,
		Logger:             &bigcacheLogger{logger: nc.logger},
		OnRemoveWithReason: func(_ string, _ []byte, reason bigcache.RemoveReason) {
			if reason == bigcache.NoSpace || reason == bigcache.Expired {
				nc.evictions.Add(1)
			}
		},
	}

	bc, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		return nil, fmt.Errorf("near cache: %w", err)
	}
	nc.local = bc
	return nc, nil
}

func (c *NearCache) Name() string {
	return "near(" + c.inner.Name() + ")"
}

func (c *NearCache) IsAvailable() bool {
	return !c.closed.Load() && c.inner.IsAvailable()
}

// Inner returns the wrapped store.
func (c *NearCache) Inner() types.Store {
	return c.inner
}

func (c *NearCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, _, err := c.GetWithTTL(ctx, key)
	return value, err
}

func (c *NearCache) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	if c.closed.Load() {
		return nil, 0, types.ErrClosed
	}

	if value, ttl, ok := c.readLocal(key); ok {
		return value, ttl, nil
	}

	gen := c.generation(key)

	var (
		value []byte
		ttl   time.Duration
		err   error
	)
	if reader, ok := c.inner.(types.TTLReader); ok {
		value, ttl, err = reader.GetWithTTL(ctx, key)
	} else {
		value, err = c.inner.Get(ctx, key)
	}
	if err != nil {
		return nil, 0, err
	}

	c.fill(key, gen, value, ttl)
	return value, ttl, nil
}

func (c *NearCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	gen := c.generation(key)
	if err := c.inner.Set(ctx, key, value, ttl); err != nil {
		c.invalidate(key)
		return err
	}

	// A concurrent writer may have reached the inner store after us, so
	// only keep our value locally when nobody else touched the key.
	st := c.stripe(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.gen == gen {
		c.writeLocal(key, value, ttl)
	} else {
		c.dropLocal(key)
	}
	st.gen++
	return nil
}

func (c *NearCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	c.dropLocal(key)
	err := c.inner.Delete(ctx, key)
	c.invalidate(key)
	return err
}

func (c *NearCache) Contains(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}

	if _, _, ok := c.readLocal(key); ok {
		return true, nil
	}
	return c.inner.Contains(ctx, key)
}

func (c *NearCache) HSet(ctx context.Context, key, field string, value []byte) error {
	hs, err := c.hashStore()
	if err != nil {
		return types.NewCacheError("HSet", key, c.Name(), err)
	}
	c.dropLocal(key)
	err = hs.HSet(ctx, key, field, value)
	c.invalidate(key)
	return err
}

func (c *NearCache) HGet(ctx context.Context, key, field string) ([]byte, error) {
	hs, err := c.hashStore()
	if err != nil {
		return nil, types.NewCacheError("HGet", key, c.Name(), err)
	}
	return hs.HGet(ctx, key, field)
}

func (c *NearCache) HDel(ctx context.Context, key string, fields ...string) error {
	hs, err := c.hashStore()
	if err != nil {
		return types.NewCacheError("HDel", key, c.Name(), err)
	}
	c.dropLocal(key)
	err = hs.HDel(ctx, key, fields...)
	c.invalidate(key)
	return err
}

func (c *NearCache) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	hs, err := c.hashStore()
	if err != nil {
		return nil, types.NewCacheError("HGetAll", key, c.Name(), err)
	}
	return hs.HGetAll(ctx, key)
}

func (c *NearCache) hashStore() (types.HashStore, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}
	hs, ok := c.inner.(types.HashStore)
	if !ok {
		return nil, types.ErrUnsupported
	}
	return hs, nil
}

func (c *NearCache) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	return c.inner.Ping(ctx)
}

// Stats reports the inner store's stats.
func (c *NearCache) Stats() types.StoreStats {
	return c.inner.Stats()
}

func (c *NearCache) NearStats() NearStats {
	s := c.local.Stats()
	return NearStats{
		Hits:      s.Hits,
		Misses:    s.Misses,
		Evictions: c.evictions.Load(),
		Entries:   c.local.Len(),
	}
}

// Close releases the local layer and closes the inner store.
func (c *NearCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return errors.Join(c.local.Close(), c.inner.Close())
}

func (c *NearCache) readLocal(key string) ([]byte, time.Duration, bool) {
	raw, err := c.local.Get(key)
	if err != nil {
		return nil, 0, false
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		c.dropLocal(key)
		return nil, 0, false
	}
	now := c.clock.Now()
	if entry.IsExpired(now) {
		c.dropLocal(key)
		return nil, 0, false
	}
	var ttl time.Duration
	if !entry.ExpiresAt.IsZero() {
		ttl = entry.ExpiresAt.Sub(now)
	}
	return entry.Value, ttl, true
}

func (c *NearCache) stripe(key string) *nearStripe {
	return &c.stripes[maphash.String(c.seed, key)%nearStripes]
}

func (c *NearCache) generation(key string) uint64 {
	st := c.stripe(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.gen
}

// fill copies a value read from the inner store into the local layer
// unless a write to the key happened since gen was taken.
func (c *NearCache) fill(key string, gen uint64, value []byte, ttl time.Duration) {
	st := c.stripe(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.gen != gen {
		return
	}
	c.writeLocal(key, value, ttl)
}

func (c *NearCache) invalidate(key string) {
	st := c.stripe(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.gen++
	c.dropLocal(key)
}

func (c *NearCache) writeLocal(key string, value []byte, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.clock.Now().Add(ttl)
	}
	if err := c.local.Set(key, encodeEntry(value, expiresAt)); err != nil {
		// Too large for the local layer; the inner store still has it.
		c.logger.Debug("Near cache set skipped", "key", key, "error", err)
		c.dropLocal(key)
	}
}

func (c *NearCache) dropLocal(key string) {
	if err := c.local.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		c.logger.Debug("Near cache delete failed", "key", key, "error", err)
	}
}

type bigcacheLogger struct {
	logger *slog.Logger
}

func (l *bigcacheLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf("bigcache: "+format, args...))
}

var (
	_ types.Store     = (*NearCache)(nil)
	_ types.HashStore = (*NearCache)(nil)
	_ types.TTLReader = (*NearCache)(nil)
)
