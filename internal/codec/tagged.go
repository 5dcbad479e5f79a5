package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/LavishGent/cachefacade/internal/types"
)

// Registry maps type tags to Go types for TaggedCodec.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
}

// Register associates name with the type of prototype. Pointer prototypes
// register their element type.
func (r *Registry) Register(name string, prototype any) error {
	if name == "" {
		return errors.New("codec: type tag cannot be empty")
	}
	if prototype == nil {
		return errors.New("codec: prototype cannot be nil")
	}
	typ := indirectType(reflect.TypeOf(prototype))

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok && existing != typ {
		return fmt.Errorf("codec: type tag %q already registered for %s", name, existing)
	}
	r.byName[name] = typ
	r.byType[typ] = name
	return nil
}

func (r *Registry) lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	typ, ok := r.byName[name]
	return typ, ok
}

// nameOf returns the tag for v's type. Nil pointers carry no value and so
// no tag; they decode as nil.
func (r *Registry) nameOf(v any) string {
	if v == nil {
		return ""
	}
	for rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer; rv = rv.Elem() {
		if rv.IsNil() {
			return ""
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[indirectType(reflect.TypeOf(v))]
}

func indirectType(typ reflect.Type) reflect.Type {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ
}

type envelope struct {
	Type  string          `json:"@type,omitempty"`
	Value json.RawMessage `json:"value"`
}

// TaggedCodec wraps JSON values in an envelope carrying the registered type
// tag, so a registered struct read back into an untyped destination comes
// back as that struct instead of a map.
type TaggedCodec struct {
	registry *Registry
	inner    *JSONCodec
}

func NewTaggedCodec(registry *Registry) *TaggedCodec {
	if registry == nil {
		registry = NewRegistry()
	}
	return &TaggedCodec{registry: registry, inner: NewJSONCodec()}
}

func (c *TaggedCodec) Name() string {
	return NameTagged
}

// Registry exposes the type registry so callers can register their types.
func (c *TaggedCodec) Registry() *Registry {
	return c.registry
}

func (c *TaggedCodec) Marshal(v any) ([]byte, error) {
	payload, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: c.registry.nameOf(v), Value: payload})
}

func (c *TaggedCodec) Unmarshal(data []byte, dest any) error {
	var env envelope
	if err := c.inner.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.Value == nil {
		return errors.New("codec: envelope has no value")
	}

	if env.Type == "" {
		return c.inner.Unmarshal(env.Value, dest)
	}

	typ, ok := c.registry.lookup(env.Type)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	target, ok := dest.(*any)
	if !ok {
		return c.inner.Unmarshal(env.Value, dest)
	}

	ptr := reflect.New(typ)
	if err := c.inner.Unmarshal(env.Value, ptr.Interface()); err != nil {
		return err
	}
	*target = ptr.Elem().Interface()
	return nil
}

var _ types.Codec = (*TaggedCodec)(nil)
