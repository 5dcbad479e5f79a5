package cachefacade

import (
	"context"
)

// Hash is a typed view of the hash stored under one key. Fields are plain
// strings; values are encoded with the facade codec.
type Hash[T any] struct {
	facade *Facade
	key    string
}

// HashOf returns the hash stored under key in f.
func HashOf[T any](f *Facade, key string) *Hash[T] {
	return &Hash[T]{facade: f, key: key}
}

func (h *Hash[T]) Key() string {
	return h.key
}

func (h *Hash[T]) Put(ctx context.Context, field string, value T) error {
	return h.facade.HSet(ctx, h.key, field, value)
}

// Get returns one field. found is false when the field or the hash is absent.
func (h *Hash[T]) Get(ctx context.Context, field string) (value T, found bool, err error) {
	found, err = h.facade.HGet(ctx, h.key, field, &value)
	if err != nil || !found {
		var zero T
		return zero, found, err
	}
	return value, true, nil
}

// Delete removes fields. The hash disappears with its last field.
func (h *Hash[T]) Delete(ctx context.Context, fields ...string) error {
	return h.facade.HDel(ctx, h.key, fields...)
}

// Entries decodes every field. An absent hash yields an empty map.
func (h *Hash[T]) Entries(ctx context.Context) (map[string]T, error) {
	raw, err := h.facade.HGetAll(ctx, h.key)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]T, len(raw))
	for field, data := range raw {
		var value T
		if err := h.facade.Decode("HGetAll", h.key, data, &value); err != nil {
			return nil, err
		}
		entries[field] = value
	}
	return entries, nil
}
