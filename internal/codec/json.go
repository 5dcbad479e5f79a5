package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/LavishGent/cachefacade/internal/types"
)

// JSONCodec encodes values as JSON text.
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (c *JSONCodec) Name() string {
	return NameJSON
}

func (c *JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes data into dest. Untyped destinations get int64 for
// integral numbers and float64 for the rest.
func (c *JSONCodec) Unmarshal(data []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	if !untypedTarget(dest) {
		if err := dec.Decode(dest); err != nil {
			return err
		}
		return checkEOF(dec)
	}

	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if err := checkEOF(dec); err != nil {
		return err
	}
	return assignUntyped(dest, normalizeJSON(raw))
}

func checkEOF(dec *json.Decoder) error {
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}

func normalizeJSON(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		f, err := n.Float64()
		if err != nil {
			return n.String()
		}
		return f
	case map[string]any:
		for k, elem := range n {
			n[k] = normalizeJSON(elem)
		}
		return n
	case []any:
		for i, elem := range n {
			n[i] = normalizeJSON(elem)
		}
		return n
	default:
		return v
	}
}

// assignUntyped stores a generically decoded value into one of the untyped
// destinations accepted by untypedTarget.
func assignUntyped(dest, value any) error {
	switch d := dest.(type) {
	case *any:
		*d = value
	case *map[string]any:
		if value == nil {
			*d = nil
			return nil
		}
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("codec: cannot decode %T into map", value)
		}
		*d = m
	case *[]any:
		if value == nil {
			*d = nil
			return nil
		}
		s, ok := value.([]any)
		if !ok {
			return fmt.Errorf("codec: cannot decode %T into slice", value)
		}
		*d = s
	}
	return nil
}

var _ types.Codec = (*JSONCodec)(nil)
