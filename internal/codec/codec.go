// Package codec holds the value and key encodings used by the cache facade.
//
// Value codecs are self-describing: a value written without a schema decodes
// back into a structurally equal value when read into an untyped destination.
package codec

import (
	"errors"
	"fmt"
	"math"

	"github.com/LavishGent/cachefacade/internal/types"
)

const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
	NameTagged  = "tagged"
)

var (
	ErrUnknownCodec = errors.New("codec: unknown codec")
	ErrUnknownType  = errors.New("codec: unknown type tag")
	ErrTrailingData = errors.New("codec: trailing data after value")
)

// New returns the codec registered under name. An empty name selects JSON.
func New(name string) (types.Codec, error) {
	switch name {
	case "", NameJSON:
		return NewJSONCodec(), nil
	case NameMsgpack:
		return NewMsgpackCodec(), nil
	case NameTagged:
		return NewTaggedCodec(NewRegistry()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// normalize rewrites decoded numbers inside untyped values so integers are
// int64 and everything else numeric is float64, whatever the wire format.
func normalize(v any) any {
	switch n := v.(type) {
	case map[string]any:
		for k, elem := range n {
			n[k] = normalize(elem)
		}
		return n
	case map[any]any:
		out := make(map[string]any, len(n))
		for k, elem := range n {
			out[fmt.Sprint(k)] = normalize(elem)
		}
		return out
	case []any:
		for i, elem := range n {
			n[i] = normalize(elem)
		}
		return n
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint:
		return normalizeUint(uint64(n))
	case uint64:
		return normalizeUint(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func normalizeUint(n uint64) any {
	if n > math.MaxInt64 {
		return float64(n)
	}
	return int64(n)
}

// untypedTarget reports whether dest asks for a schema-free decode.
func untypedTarget(dest any) bool {
	switch dest.(type) {
	case *any, *map[string]any, *[]any:
		return true
	default:
		return false
	}
}
