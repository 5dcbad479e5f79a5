package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/LavishGent/cachefacade/internal/config"
	"github.com/LavishGent/cachefacade/internal/types"
)

func testBoltConfig(t *testing.T) config.BoltConfig {
	t.Helper()
	return config.BoltConfig{
		Path:        filepath.Join(t.TempDir(), "cache.db"),
		Bucket:      "cache",
		OpenTimeout: time.Second,
	}
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := testBoltConfig(t)

	s, err := OpenBolt(cfg, BoltOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "login:", []byte("v"), 0))
	require.NoError(t, s.HSet(ctx, "h", "f", []byte("x")))
	require.NoError(t, s.Close())

	s, err = OpenBolt(cfg, BoltOptions{})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "login:")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	field, err := s.HGet(ctx, "h", "f")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), field)
}

func TestBoltStoreLockedFile(t *testing.T) {
	cfg := testBoltConfig(t)
	cfg.OpenTimeout = 50 * time.Millisecond

	s, err := OpenBolt(cfg, BoltOptions{})
	require.NoError(t, err)
	defer s.Close()

	_, err = OpenBolt(cfg, BoltOptions{})
	require.Error(t, err)
	assert.True(t, types.IsConnectionError(err))
}

func TestBoltStorePurge(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s, err := OpenBolt(testBoltConfig(t), BoltOptions{Clock: clock})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "long", []byte("2"), time.Hour))
	require.NoError(t, s.Set(ctx, "forever", []byte("3"), 0))
	require.NoError(t, s.HSet(ctx, "h", "f", []byte("4")))
	assert.Equal(t, int64(4), s.Stats().Entries)

	clock.Advance(2 * time.Minute)
	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(3), s.Stats().Entries)

	clock.Advance(2 * time.Hour)
	n, err = s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
}

func TestBoltStoreHashReplacesExpiredValue(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s, err := OpenBolt(testBoltConfig(t), BoltOptions{Clock: clock})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	clock.Advance(time.Minute)

	require.NoError(t, s.HSet(ctx, "k", "f", []byte("x")))
	all, err := s.HGetAll(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"f": []byte("x")}, all)
}

func TestBoltStoreKeyTooLarge(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBolt(testBoltConfig(t), BoltOptions{})
	require.NoError(t, err)
	defer s.Close()

	err = s.Set(ctx, strings.Repeat("k", bolt.MaxKeySize+1), []byte("v"), 0)
	require.Error(t, err)
	assert.True(t, types.IsInvalidKey(err))
	assert.False(t, types.IsConnectionError(err))
}

func TestBoltStoreCorruptValue(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBolt(testBoltConfig(t), BoltOptions{})
	require.NoError(t, err)
	defer s.Close()

	err = s.DB().Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte("cache")).Put([]byte("bad"), []byte{1, 2})
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, "bad")
	assert.ErrorIs(t, err, errCorruptValue)
	assert.True(t, types.IsSerializationError(err))
	assert.False(t, types.IsConnectionError(err))

	_, _, err = s.GetWithTTL(ctx, "bad")
	assert.True(t, types.IsSerializationError(err))

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBoltStoreCleanupWorker(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	cfg := testBoltConfig(t)
	cfg.CleanupInterval = 10 * time.Millisecond

	s, err := OpenBolt(cfg, BoltOptions{Clock: clock})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	clock.Advance(time.Hour)

	assert.Eventually(t, func() bool {
		return s.Stats().Entries == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEntryEncoding(t *testing.T) {
	at := time.Date(2024, 4, 1, 13, 58, 0, 0, time.UTC)

	entry, err := decodeEntry(encodeEntry([]byte("payload"), at))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), entry.Value)
	assert.True(t, entry.ExpiresAt.Equal(at))

	entry, err = decodeEntry(encodeEntry(nil, time.Time{}))
	require.NoError(t, err)
	assert.Empty(t, entry.Value)
	assert.True(t, entry.ExpiresAt.IsZero())

	_, err = decodeEntry([]byte{0})
	assert.ErrorIs(t, err, errCorruptValue)
}
