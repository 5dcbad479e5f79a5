package cachefacade

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/LavishGent/cachefacade/internal/cache"
	"github.com/LavishGent/cachefacade/internal/codec"
	"github.com/LavishGent/cachefacade/internal/config"
	"github.com/LavishGent/cachefacade/internal/metrics"
	"github.com/LavishGent/cachefacade/internal/metrics/datadog"
	"github.com/LavishGent/cachefacade/internal/store"
	"github.com/LavishGent/cachefacade/internal/types"
)

// New wraps an existing store. The store stays open after Close unless
// WithOwnedStore is given.
func New(s Store, opts ...FacadeOption) (*Facade, error) {
	o := cache.Options{Store: s}
	for _, opt := range opts {
		opt(&o)
	}
	return cache.New(o)
}

// NewRedisStore adapts a caller-supplied go-redis client. Closing the store
// leaves the client open.
func NewRedisStore(client redis.UniversalClient) Store {
	return store.NewRedisStore(client, store.RedisOptions{})
}

// NewMemoryStore returns an in-process store, mostly useful in tests.
func NewMemoryStore() Store {
	return store.NewMemoryStore(config.DefaultConfig().Memory, store.MemoryOptions{})
}

// NewCodec returns the codec registered under name: "json", "msgpack" or
// "tagged".
func NewCodec(name string) (Codec, error) {
	return codec.New(name)
}

// OpenFile loads a JSON configuration file, applies CACHEFACADE_* and DD_*
// environment overrides and opens the described facade. A missing file
// yields the defaults.
func OpenFile(path string, opts ...FacadeOption) (*Facade, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return Open(cfg, opts...)
}

// Open connects the store described by cfg and builds a facade that owns it.
// When metrics are enabled a background publisher reports facade health
// until Close.
func Open(cfg *Config, opts ...FacadeOption) (*Facade, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := cache.FromConfig(cfg)
	o.OwnsStore = true
	for _, opt := range opts {
		opt(&o)
	}

	logger, err := resolveLogger(cfg, o.Logger)
	if err != nil {
		return nil, err
	}
	if o.Logger == nil {
		o.Logger = logger
	}

	if o.Codec == nil {
		c, err := codec.New(cfg.Codec.Name)
		if err != nil {
			return nil, err
		}
		o.Codec = c
	}

	clock := o.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	s, err := store.OpenWithClock(cfg, logger, clock)
	if err != nil {
		return nil, err
	}
	o.Store = s

	if cfg.Metrics.Enabled {
		if err := attachMetrics(cfg, &o, logger); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	f, err := cache.New(o)
	if err != nil {
		if o.OnClose != nil {
			_ = o.OnClose()
		}
		_ = s.Close()
		return nil, err
	}
	return f, nil
}

// resolveLogger prefers a caller-supplied *slog.Logger and otherwise builds
// one from cfg.Log writing to stderr.
func resolveLogger(cfg *Config, l Logger) (*slog.Logger, error) {
	if sl, ok := l.(*slog.Logger); ok && sl != nil {
		return sl, nil
	}
	return cfg.Log.NewLogger(os.Stderr)
}

// attachMetrics wires a tracker and a publisher into o and starts the
// background health publisher.
func attachMetrics(cfg *Config, o *cache.Options, logger *slog.Logger) error {
	var publisher types.Publisher
	if cfg.Metrics.DataDog.Enabled {
		p, err := datadog.NewPublisher(&cfg.Metrics.DataDog, logger)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		publisher = p
	} else {
		publisher = metrics.NewLoggingPublisher(logger)
	}

	tracker := metrics.NewTracker()
	recorders := metrics.Multi{tracker, metrics.NewPublisherRecorder(publisher)}
	if o.Metrics != nil {
		recorders = append(recorders, o.Metrics)
	}
	o.Metrics = recorders

	s := o.Store
	var background *metrics.BackgroundPublisher
	if cfg.Metrics.PublishInterval > 0 {
		background = metrics.NewBackgroundPublisher(publisher, cfg.Metrics.PublishInterval,
			func() *types.PublisherHealthMetrics {
				return metrics.HealthFromSnapshot(tracker.Snapshot(), s.Stats(), s.IsAvailable())
			}, logger)
		background.Start(context.Background())
	}

	o.OnClose = func() error {
		if background != nil {
			background.Stop()
		}
		return publisher.Close()
	}
	return nil
}
