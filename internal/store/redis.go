package store

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LavishGent/cachefacade/internal/config"
	"github.com/LavishGent/cachefacade/internal/types"
)

const (
	disconnectErrorThreshold = 5
	defaultPingTimeout       = 3 * time.Second
)

// RedisOptions tunes a RedisStore built around an existing client.
type RedisOptions struct {
	Logger *slog.Logger
	// HealthCheckInterval enables a background ping that keeps IsAvailable
	// current while the store is idle. Zero disables it.
	HealthCheckInterval time.Duration
	PingTimeout         time.Duration
}

// RedisStore is a Store backed by a go-redis client. Keys and values are
// written as-is: the key is the literal string, the value the encoded bytes.
type RedisStore struct {
	client     redis.UniversalClient
	ownsClient bool
	logger     *slog.Logger

	pingTimeout time.Duration

	mu            sync.RWMutex
	connected     atomic.Bool
	lastError     error
	lastErrorTime time.Time
	errorCount    atomic.Int64

	healthCheckStopCh chan struct{}
	healthCheckWg     sync.WaitGroup

	closed atomic.Bool
}

// NewRedisClient builds a client from cfg for callers that want to share it
// with other code. The caller owns the returned client.
func NewRedisClient(cfg config.RedisConfig, logger *slog.Logger) *redis.Client {
	if logger == nil {
		logger = slog.Default()
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}

	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // opt-in for test clusters
		}
		if cfg.TLSSkipVerify {
			logger.Warn("TLS certificate verification is disabled - this is insecure for production use")
		}
	}

	return redis.NewClient(opts)
}

// NewRedisStore wraps a caller-supplied client. Close does not close it.
func NewRedisStore(client redis.UniversalClient, opts RedisOptions) *RedisStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}

	s := &RedisStore{
		client:            client,
		logger:            logger.With("component", "redis-store"),
		pingTimeout:       pingTimeout,
		healthCheckStopCh: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.logger.Warn("Redis initial connection failed", "error", err)
		s.setError(err)
	} else {
		s.connected.Store(true)
		s.logger.Info("Redis connected")
	}

	if opts.HealthCheckInterval > 0 {
		s.healthCheckWg.Add(1)
		go s.healthCheckWorker(opts.HealthCheckInterval)
	}

	return s
}

// OpenRedis builds a client from cfg and a store that owns it.
func OpenRedis(cfg config.RedisConfig, logger *slog.Logger) *RedisStore {
	s := NewRedisStore(NewRedisClient(cfg, logger), RedisOptions{
		Logger:              logger,
		HealthCheckInterval: cfg.HealthCheckInterval,
		PingTimeout:         cfg.DialTimeout,
	})
	s.ownsClient = true
	return s
}

func (s *RedisStore) Name() string {
	return "redis"
}

// IsAvailable reports the connection state observed by the last calls and
// health checks.
func (s *RedisStore) IsAvailable() bool {
	return !s.closed.Load() && s.connected.Load()
}

// Client exposes the underlying client.
func (s *RedisStore) Client() redis.UniversalClient {
	return s.client
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, types.ErrClosed
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, s.wrap("Get", key, err)
	}

	s.clearError()
	return data, nil
}

// GetWithTTL reads the value and its remaining lifetime in one transaction.
func (s *RedisStore) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	if s.closed.Load() {
		return nil, 0, types.ErrClosed
	}

	pipe := s.client.TxPipeline()
	get := pipe.Get(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, s.wrap("Get", key, err)
	}

	data, err := get.Bytes()
	if err != nil {
		return nil, 0, s.wrap("Get", key, err)
	}

	ttl := pttl.Val()
	if ttl < 0 {
		// -1: no expiry. -2 cannot happen once GET succeeded.
		ttl = 0
	}

	s.clearError()
	return data, ttl, nil
}

// Set writes value under key. A ttl of zero leaves the key without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return s.wrap("Set", key, err)
	}

	s.clearError()
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return s.wrap("Delete", key, err)
	}

	s.clearError()
	return nil
}

func (s *RedisStore) Contains(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, types.ErrClosed
	}

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, s.wrap("Contains", key, err)
	}

	s.clearError()
	return exists > 0, nil
}

func (s *RedisStore) HSet(ctx context.Context, key, field string, value []byte) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	if err := s.client.HSet(ctx, key, field, value).Err(); err != nil {
		return s.wrap("HSet", key, err)
	}

	s.clearError()
	return nil
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	if s.closed.Load() {
		return nil, types.ErrClosed
	}

	data, err := s.client.HGet(ctx, key, field).Bytes()
	if err != nil {
		return nil, s.wrap("HGet", key, err)
	}

	s.clearError()
	return data, nil
}

func (s *RedisStore) HDel(ctx context.Context, key string, fields ...string) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	if len(fields) == 0 {
		return nil
	}

	if err := s.client.HDel(ctx, key, fields...).Err(); err != nil {
		return s.wrap("HDel", key, err)
	}

	s.clearError()
	return nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	if s.closed.Load() {
		return nil, types.ErrClosed
	}

	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, s.wrap("HGetAll", key, err)
	}

	out := make(map[string][]byte, len(values))
	for field, value := range values {
		out[field] = []byte(value)
	}

	s.clearError()
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.wrap("Ping", "", err)
	}
	s.clearError()
	return nil
}

// Stats reports the client's connection pool counters.
func (s *RedisStore) Stats() types.StoreStats {
	ps := s.client.PoolStats()
	if ps == nil {
		return types.StoreStats{}
	}
	return types.StoreStats{
		TotalConns:   ps.TotalConns,
		IdleConns:    ps.IdleConns,
		StaleConns:   ps.StaleConns,
		PoolHits:     ps.Hits,
		PoolMisses:   ps.Misses,
		PoolTimeouts: ps.Timeouts,
	}
}

// LastError returns the most recent transport failure and when it happened.
func (s *RedisStore) LastError() (error, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError, s.lastErrorTime
}

// Close stops the health checker and closes the client when the store
// created it.
func (s *RedisStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.connected.Store(false)

	close(s.healthCheckStopCh)
	s.healthCheckWg.Wait()

	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}

// wrap turns a go-redis error into the store error vocabulary.
func (s *RedisStore) wrap(op, key string, err error) error {
	if errors.Is(err, redis.Nil) {
		return types.ErrCacheMiss
	}
	if isWrongType(err) {
		return types.NewCacheError(op, key, s.Name(), errors.Join(types.ErrWrongType, err))
	}
	s.handleError(err)
	return types.NewConnectionError(op, key, s.Name(), err)
}

func isWrongType(err error) bool {
	var redisErr redis.Error
	return errors.As(err, &redisErr) && strings.HasPrefix(redisErr.Error(), "WRONGTYPE")
}

func (s *RedisStore) healthCheckWorker(interval time.Duration) {
	defer s.healthCheckWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.healthCheckStopCh:
			return
		case <-ticker.C:
			s.performHealthCheck()
		}
	}
}

func (s *RedisStore) performHealthCheck() {
	wasConnected := s.connected.Load()

	ctx, cancel := context.WithTimeout(context.Background(), s.pingTimeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		if wasConnected {
			s.logger.Warn("Redis health check failed", "error", err)
			s.setError(err)
		}
		return
	}

	if !wasConnected {
		s.connected.Store(true)
		s.errorCount.Store(0)
		s.logger.Info("Redis connection restored via health check")
	}
}

func (s *RedisStore) handleError(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastError = err
	s.lastErrorTime = time.Now()
	count := s.errorCount.Add(1)

	if count >= disconnectErrorThreshold {
		if s.connected.CompareAndSwap(true, false) {
			s.logger.Warn("Redis marked as disconnected after errors",
				"error_count", count,
				"last_error", err,
			)
		}
	}
}

func (s *RedisStore) clearError() {
	if s.errorCount.Swap(0) > 0 || !s.connected.Load() {
		if s.connected.CompareAndSwap(false, true) {
			s.logger.Info("Redis connection restored")
		}
	}
}

func (s *RedisStore) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
	s.lastErrorTime = time.Now()
	s.connected.Store(false)
}

var (
	_ types.Store     = (*RedisStore)(nil)
	_ types.HashStore = (*RedisStore)(nil)
	_ types.TTLReader = (*RedisStore)(nil)
)
