package store

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/LavishGent/cachefacade/internal/config"
	"github.com/LavishGent/cachefacade/internal/types"
)

// memoryEntry holds either a plain value or a hash. expiresAt is evaluated
// against the store's Clock so tests can move time.
type memoryEntry struct {
	value     []byte
	fields    map[string][]byte
	expiresAt time.Time
}

func (e memoryEntry) isHash() bool {
	return e.fields != nil
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process Store. It is the backend for tests and for
// single-process deployments that do not need a shared cache.
type MemoryStore struct {
	cache  *ttlcache.Cache[string, memoryEntry]
	clock  types.Clock
	logger *slog.Logger

	// writeMu serialises every write so hash read-modify-write cycles never
	// interleave with a plain Set or Delete of the same key.
	writeMu sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// MemoryOptions tunes a MemoryStore.
type MemoryOptions struct {
	Logger *slog.Logger
	// Clock decides expiry. Defaults to the system clock.
	Clock types.Clock
}

func NewMemoryStore(cfg config.MemoryConfig, opts MemoryOptions) *MemoryStore {
	var cacheOpts []ttlcache.Option[string, memoryEntry]
	cacheOpts = append(cacheOpts, ttlcache.WithDisableTouchOnHit[string, memoryEntry]())
	if cfg.Capacity > 0 {
		cacheOpts = append(cacheOpts, ttlcache.WithCapacity[string, memoryEntry](cfg.Capacity))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}

	s := &MemoryStore{
		cache:  ttlcache.New[string, memoryEntry](cacheOpts...),
		clock:  clock,
		logger: logger.With("component", "memory-store"),
		stopCh: make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		s.wg.Add(1)
		go s.cleanupWorker(cfg.CleanupInterval)
	}

	return s
}

func (s *MemoryStore) Name() string {
	return "memory"
}

func (s *MemoryStore) IsAvailable() bool {
	return !s.closed.Load()
}

// lookup returns the live entry for key. Expired entries are left for
// purgeExpired.
func (s *MemoryStore) lookup(key string) (memoryEntry, bool) {
	item := s.cache.Get(key)
	if item == nil {
		return memoryEntry{}, false
	}
	entry := item.Value()
	if entry.expired(s.clock.Now()) {
		return memoryEntry{}, false
	}
	return entry, true
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, _, err := s.GetWithTTL(ctx, key)
	return value, err
}

func (s *MemoryStore) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	if s.closed.Load() {
		return nil, 0, types.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, types.NewConnectionError("Get", key, s.Name(), err)
	}

	entry, ok := s.lookup(key)
	if !ok {
		return nil, 0, types.ErrCacheMiss
	}
	if entry.isHash() {
		return nil, 0, types.NewCacheError("Get", key, s.Name(), types.ErrWrongType)
	}

	var ttl time.Duration
	if !entry.expiresAt.IsZero() {
		ttl = entry.expiresAt.Sub(s.clock.Now())
	}
	return cloneBytes(entry.value), ttl, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return types.NewConnectionError("Set", key, s.Name(), err)
	}

	entry := memoryEntry{value: cloneBytes(value)}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.cache.Set(key, s.withExpiry(entry, ttl), cacheTTL(ttl))
	return nil
}

func (s *MemoryStore) withExpiry(entry memoryEntry, ttl time.Duration) memoryEntry {
	if ttl > 0 {
		entry.expiresAt = s.clock.Now().Add(ttl)
	}
	return entry
}

// cacheTTL mirrors the logical ttl into ttlcache so expired entries are
// eventually reclaimed even if nobody reads them.
func cacheTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttlcache.NoTTL
	}
	return ttl
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return types.NewConnectionError("Delete", key, s.Name(), err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStore) Contains(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, types.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return false, types.NewConnectionError("Contains", key, s.Name(), err)
	}

	_, ok := s.lookup(key)
	return ok, nil
}

func (s *MemoryStore) HSet(ctx context.Context, key, field string, value []byte) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return types.NewConnectionError("HSet", key, s.Name(), err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entry, ok := s.lookup(key)
	if ok && !entry.isHash() {
		return types.NewCacheError("HSet", key, s.Name(), types.ErrWrongType)
	}

	// Copy on write: readers hold the previous map without locking.
	fields := make(map[string][]byte, len(entry.fields)+1)
	maps.Copy(fields, entry.fields)
	fields[field] = cloneBytes(value)

	ttl := ttlcache.NoTTL
	if !entry.expiresAt.IsZero() {
		ttl = entry.expiresAt.Sub(s.clock.Now())
	}
	s.cache.Set(key, memoryEntry{fields: fields, expiresAt: entry.expiresAt}, ttl)
	return nil
}

func (s *MemoryStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	if s.closed.Load() {
		return nil, types.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, types.NewConnectionError("HGet", key, s.Name(), err)
	}

	entry, ok := s.lookup(key)
	if !ok {
		return nil, types.ErrCacheMiss
	}
	if !entry.isHash() {
		return nil, types.NewCacheError("HGet", key, s.Name(), types.ErrWrongType)
	}
	value, ok := entry.fields[field]
	if !ok {
		return nil, types.ErrCacheMiss
	}
	return cloneBytes(value), nil
}

func (s *MemoryStore) HDel(ctx context.Context, key string, fields ...string) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return types.NewConnectionError("HDel", key, s.Name(), err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entry, ok := s.lookup(key)
	if !ok {
		return nil
	}
	if !entry.isHash() {
		return types.NewCacheError("HDel", key, s.Name(), types.ErrWrongType)
	}

	remaining := maps.Clone(entry.fields)
	for _, field := range fields {
		delete(remaining, field)
	}
	if len(remaining) == 0 {
		s.cache.Delete(key)
		return nil
	}

	ttl := ttlcache.NoTTL
	if !entry.expiresAt.IsZero() {
		ttl = entry.expiresAt.Sub(s.clock.Now())
	}
	s.cache.Set(key, memoryEntry{fields: remaining, expiresAt: entry.expiresAt}, ttl)
	return nil
}

func (s *MemoryStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	if s.closed.Load() {
		return nil, types.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, types.NewConnectionError("HGetAll", key, s.Name(), err)
	}

	entry, ok := s.lookup(key)
	if !ok {
		return map[string][]byte{}, nil
	}
	if !entry.isHash() {
		return nil, types.NewCacheError("HGetAll", key, s.Name(), types.ErrWrongType)
	}

	out := make(map[string][]byte, len(entry.fields))
	for field, value := range entry.fields {
		out[field] = cloneBytes(value)
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	return nil
}

func (s *MemoryStore) Stats() types.StoreStats {
	return types.StoreStats{Entries: int64(s.cache.Len())}
}

func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.stopCh)
	s.wg.Wait()
	s.cache.DeleteAll()
	return nil
}

func (s *MemoryStore) cleanupWorker(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}

// purgeExpired drops entries whose logical expiry has passed.
func (s *MemoryStore) purgeExpired() int {
	now := s.clock.Now()
	var expired []string
	s.cache.Range(func(item *ttlcache.Item[string, memoryEntry]) bool {
		if item.Value().expired(now) {
			expired = append(expired, item.Key())
		}
		return true
	})

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	purged := 0
	for _, key := range expired {
		// Rewritten since the scan.
		if item := s.cache.Get(key); item == nil || !item.Value().expired(now) {
			continue
		}
		s.cache.Delete(key)
		purged++
	}
	if purged > 0 {
		s.logger.Debug("Purged expired entries", "count", purged)
	}
	return purged
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return append([]byte(nil), b...)
}

var (
	_ types.Store     = (*MemoryStore)(nil)
	_ types.HashStore = (*MemoryStore)(nil)
	_ types.TTLReader = (*MemoryStore)(nil)
)
