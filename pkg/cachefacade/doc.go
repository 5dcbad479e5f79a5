// Package cachefacade provides typed cache access over a remote key-value
// store with pluggable serialization.
//
// A Facade owns key encoding, value encoding, TTL defaults and the error
// vocabulary. Keys reach the store byte-for-byte (optionally behind a
// prefix); values are encoded with a structured codec, JSON by default.
//
// # Quick Start
//
// Open the store described by a configuration file:
//
//	facade, err := cachefacade.OpenFile("cache.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer facade.Close()
//
// Or wrap a Redis client you already have:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	facade, err := cachefacade.New(cachefacade.NewRedisStore(client))
//
// # Typed Access
//
//	users := cachefacade.Typed[User](facade)
//	err := users.Set(ctx, "user:123", user, cachefacade.WithTTL(5*time.Minute))
//
//	cached, found, err := users.Get(ctx, "user:123")
//
// A missing or expired key is reported through found, never as an error.
//
// Cache-aside loading, with concurrent misses on one key sharing a load:
//
//	user, err := users.GetOrLoad(ctx, "user:456", func(ctx context.Context) (User, error) {
//	    return fetchUser(ctx, "456")
//	})
//
// # Hashes
//
//	sessions := cachefacade.HashOf[Session](facade, "sessions")
//	err := sessions.Put(ctx, sessionID, session)
//
// # Errors
//
// Failures are classified: IsConnectionError for an unreachable store or an
// open circuit breaker, IsSerializationError for values that cannot be
// encoded or decoded, IsInvalidKey for rejected keys. The underlying cause
// stays reachable through errors.Is and errors.As.
//
// # Thread Safety
//
// A Facade and the typed views over it are safe for concurrent use.
package cachefacade
