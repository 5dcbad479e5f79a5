package cachefacade

import (
	"context"
)

// Cache is a typed view of a Facade for values of type T.
type Cache[T any] struct {
	facade *Facade
}

// Typed returns a view of f that encodes and decodes T.
func Typed[T any](f *Facade) *Cache[T] {
	return &Cache[T]{facade: f}
}

func (c *Cache[T]) Facade() *Facade {
	return c.facade
}

// Set stores value under key.
func (c *Cache[T]) Set(ctx context.Context, key string, value T, opts ...Option) error {
	return c.facade.Set(ctx, key, value, opts...)
}

// Get returns the value under key. found is false, with a nil error, when
// the key is missing or expired.
func (c *Cache[T]) Get(ctx context.Context, key string) (value T, found bool, err error) {
	found, err = c.facade.Get(ctx, key, &value)
	if err != nil || !found {
		var zero T
		return zero, found, err
	}
	return value, true, nil
}

func (c *Cache[T]) Delete(ctx context.Context, key string) error {
	return c.facade.Delete(ctx, key)
}

func (c *Cache[T]) Contains(ctx context.Context, key string) (bool, error) {
	return c.facade.Contains(ctx, key)
}

// GetOrLoad returns the cached value for key or caches and returns the
// result of load.
func (c *Cache[T]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (T, error), opts ...Option) (T, error) {
	var value T
	err := c.facade.GetOrLoad(ctx, key, &value, func(ctx context.Context) (any, error) {
		return load(ctx)
	}, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}
