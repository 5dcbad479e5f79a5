package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/LavishGent/cachefacade/internal/config"
	"github.com/LavishGent/cachefacade/internal/types"
)

// expiryHeaderSize is the length of the big-endian unix-nano expiry that
// precedes every plain value. Zero means the value never expires.
const expiryHeaderSize = 8

var errCorruptValue = errors.New("stored value shorter than its expiry header")

// BoltOptions tunes a BoltStore.
type BoltOptions struct {
	Logger *slog.Logger
	Clock  types.Clock
}

// BoltStore persists entries in a single bbolt file. Plain values live in one
// bucket; hashes are nested buckets under the same name.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
	clock  types.Clock
	logger *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// OpenBolt opens or creates the database file named in cfg.
func OpenBolt(cfg config.BoltConfig, opts BoltOptions) (*BoltStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}

	mode := os.FileMode(cfg.FileMode)
	if mode == 0 {
		mode = 0o600
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "cache"
	}

	db, err := bolt.Open(cfg.Path, mode, &bolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, types.NewConnectionError("Open", "", "bolt", fmt.Errorf("open %s: %w", cfg.Path, err))
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, types.NewConnectionError("Open", "", "bolt", fmt.Errorf("create bucket %s: %w", bucket, err))
	}

	s := &BoltStore{
		db:     db,
		bucket: []byte(bucket),
		clock:  clock,
		logger: logger.With("component", "bolt-store"),
		stopCh: make(chan struct{}),
	}
	s.logger.Info("Bolt store opened", "path", cfg.Path, "bucket", bucket)

	if cfg.CleanupInterval > 0 {
		s.wg.Add(1)
		go s.cleanupWorker(cfg.CleanupInterval)
	}

	return s, nil
}

func (s *BoltStore) Name() string {
	return "bolt"
}

func (s *BoltStore) IsAvailable() bool {
	return !s.closed.Load()
}

// DB exposes the underlying database handle.
func (s *BoltStore) DB() *bolt.DB {
	return s.db
}

func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, _, err := s.GetWithTTL(ctx, key)
	return value, err
}

func (s *BoltStore) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	if err := s.check(ctx, "Get", key); err != nil {
		return nil, 0, err
	}

	var (
		value []byte
		ttl   time.Duration
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		raw := b.Get([]byte(key))
		if raw == nil {
			if b.Bucket([]byte(key)) != nil {
				return types.ErrWrongType
			}
			return types.ErrCacheMiss
		}

		entry, err := decodeEntry(raw)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if entry.IsExpired(now) {
			return types.ErrCacheMiss
		}
		if !entry.ExpiresAt.IsZero() {
			ttl = entry.ExpiresAt.Sub(now)
		}
		value = entry.Value
		return nil
	})
	if err != nil {
		return nil, 0, s.wrap("Get", key, err)
	}
	return value, ttl, nil
}

func (s *BoltStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.check(ctx, "Set", key); err != nil {
		return err
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.clock.Now().Add(ttl)
	}
	raw := encodeEntry(value, expiresAt)

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		// A plain write replaces a hash stored under the same key.
		if b.Bucket([]byte(key)) != nil {
			if err := b.DeleteBucket([]byte(key)); err != nil {
				return err
			}
		}
		return b.Put([]byte(key), raw)
	})
	if err != nil {
		return s.wrap("Set", key, err)
	}
	return nil
}

func (s *BoltStore) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, "Delete", key); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		err := b.Delete([]byte(key))
		if errors.Is(err, bolt.ErrIncompatibleValue) {
			return b.DeleteBucket([]byte(key))
		}
		return err
	})
	if err != nil {
		return s.wrap("Delete", key, err)
	}
	return nil
}

func (s *BoltStore) Contains(ctx context.Context, key string) (bool, error) {
	if err := s.check(ctx, "Contains", key); err != nil {
		return false, err
	}

	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Bucket([]byte(key)) != nil {
			found = true
			return nil
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		entry, err := decodeEntry(raw)
		if err != nil {
			return err
		}
		found = !entry.IsExpired(s.clock.Now())
		return nil
	})
	if err != nil {
		return false, s.wrap("Contains", key, err)
	}
	return found, nil
}

func (s *BoltStore) HSet(ctx context.Context, key, field string, value []byte) error {
	if err := s.check(ctx, "HSet", key); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if raw := b.Get([]byte(key)); raw != nil {
			entry, err := decodeEntry(raw)
			if err != nil {
				return err
			}
			if !entry.IsExpired(s.clock.Now()) {
				return types.ErrWrongType
			}
			// An expired plain value gives way to the hash.
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		hash, err := b.CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		return hash.Put([]byte(field), value)
	})
	if err != nil {
		return s.wrap("HSet", key, err)
	}
	return nil
}

func (s *BoltStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	if err := s.check(ctx, "HGet", key); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		hash, err := s.hashBucket(tx, key)
		if err != nil {
			return err
		}
		if hash == nil {
			return types.ErrCacheMiss
		}
		raw := hash.Get([]byte(field))
		if raw == nil {
			return types.ErrCacheMiss
		}
		value = append([]byte{}, raw...)
		return nil
	})
	if err != nil {
		return nil, s.wrap("HGet", key, err)
	}
	return value, nil
}

func (s *BoltStore) HDel(ctx context.Context, key string, fields ...string) error {
	if err := s.check(ctx, "HDel", key); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		hash, err := s.hashBucket(tx, key)
		if err != nil || hash == nil {
			return err
		}
		for _, field := range fields {
			if err := hash.Delete([]byte(field)); err != nil {
				return err
			}
		}
		// An empty hash is indistinguishable from a missing key.
		if k, _ := hash.Cursor().First(); k == nil {
			return tx.Bucket(s.bucket).DeleteBucket([]byte(key))
		}
		return nil
	})
	if err != nil {
		return s.wrap("HDel", key, err)
	}
	return nil
}

func (s *BoltStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	if err := s.check(ctx, "HGetAll", key); err != nil {
		return nil, err
	}

	out := map[string][]byte{}
	err := s.db.View(func(tx *bolt.Tx) error {
		hash, err := s.hashBucket(tx, key)
		if err != nil || hash == nil {
			return err
		}
		return hash.ForEach(func(k, v []byte) error {
			out[string(k)] = append([]byte{}, v...)
			return nil
		})
	})
	if err != nil {
		return nil, s.wrap("HGetAll", key, err)
	}
	return out, nil
}

// hashBucket returns the nested bucket for key, nil when the key is absent,
// or ErrWrongType when it holds a live plain value.
func (s *BoltStore) hashBucket(tx *bolt.Tx, key string) (*bolt.Bucket, error) {
	b := tx.Bucket(s.bucket)
	if hash := b.Bucket([]byte(key)); hash != nil {
		return hash, nil
	}
	raw := b.Get([]byte(key))
	if raw == nil {
		return nil, nil
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		return nil, err
	}
	if entry.IsExpired(s.clock.Now()) {
		return nil, nil
	}
	return nil, types.ErrWrongType
}

func (s *BoltStore) Ping(ctx context.Context) error {
	if err := s.check(ctx, "Ping", ""); err != nil {
		return err
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(s.bucket) == nil {
			return bolt.ErrBucketNotFound
		}
		return nil
	})
	if err != nil {
		return s.wrap("Ping", "", err)
	}
	return nil
}

// Stats counts the top-level keys, hashes included.
func (s *BoltStore) Stats() types.StoreStats {
	if s.closed.Load() {
		return types.StoreStats{}
	}
	var n int64
	_ = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(_, _ []byte) error {
			n++
			return nil
		})
	})
	return types.StoreStats{Entries: n}
}

// Purge deletes every plain value whose expiry has passed and returns how
// many were removed.
func (s *BoltStore) Purge(ctx context.Context) (int, error) {
	if err := s.check(ctx, "Purge", ""); err != nil {
		return 0, err
	}

	now := s.clock.Now()
	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if v == nil {
				return nil
			}
			entry, err := decodeEntry(v)
			if err != nil {
				s.logger.Warn("Dropping unreadable entry", "key", string(k), "error", err)
			} else if !entry.IsExpired(now) {
				return nil
			}
			expired = append(expired, append([]byte{}, k...))
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, s.wrap("Purge", "", err)
	}
	return removed, nil
}

func (s *BoltStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.stopCh)
	s.wg.Wait()
	return s.db.Close()
}

func (s *BoltStore) cleanupWorker(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := s.Purge(ctx)
			cancel()
			if err != nil {
				s.logger.Warn("Expired entry purge failed", "error", err)
			} else if n > 0 {
				s.logger.Debug("Purged expired entries", "count", n)
			}
		}
	}
}

func (s *BoltStore) check(ctx context.Context, op, key string) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return types.NewConnectionError(op, key, s.Name(), err)
	}
	return nil
}

// wrap maps bbolt and sentinel errors onto the store error vocabulary.
func (s *BoltStore) wrap(op, key string, err error) error {
	switch {
	case errors.Is(err, types.ErrCacheMiss):
		return types.ErrCacheMiss
	case errors.Is(err, types.ErrWrongType), errors.Is(err, bolt.ErrIncompatibleValue):
		return types.NewCacheError(op, key, s.Name(), errors.Join(types.ErrWrongType, err))
	case errors.Is(err, bolt.ErrKeyTooLarge), errors.Is(err, bolt.ErrKeyRequired):
		return types.NewCacheError(op, key, s.Name(), errors.Join(types.ErrInvalidKey, err))
	case errors.Is(err, errCorruptValue):
		return types.NewSerializationError(op, key, s.Name(), err)
	default:
		return types.NewConnectionError(op, key, s.Name(), err)
	}
}

func encodeEntry(value []byte, expiresAt time.Time) []byte {
	raw := make([]byte, expiryHeaderSize+len(value))
	if !expiresAt.IsZero() {
		binary.BigEndian.PutUint64(raw, uint64(expiresAt.UnixNano()))
	}
	copy(raw[expiryHeaderSize:], value)
	return raw
}

// decodeEntry copies the payload out of raw, which may be memory owned by
// bbolt or bigcache.
func decodeEntry(raw []byte) (types.Entry, error) {
	if len(raw) < expiryHeaderSize {
		return types.Entry{}, errCorruptValue
	}
	var entry types.Entry
	if nanos := binary.BigEndian.Uint64(raw); nanos != 0 {
		entry.ExpiresAt = time.Unix(0, int64(nanos))
	}
	entry.Value = append([]byte{}, raw[expiryHeaderSize:]...)
	return entry, nil
}

var (
	_ types.Store     = (*BoltStore)(nil)
	_ types.HashStore = (*BoltStore)(nil)
	_ types.TTLReader = (*BoltStore)(nil)
)
