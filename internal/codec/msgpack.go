package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/LavishGent/cachefacade/internal/types"
)

// MsgpackCodec encodes values as MessagePack. Struct fields follow their json
// tags so the same types work with either codec.
type MsgpackCodec struct{}

func NewMsgpackCodec() *MsgpackCodec {
	return &MsgpackCodec{}
}

func (c *MsgpackCodec) Name() string {
	return NameMsgpack
}

func (c *MsgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *MsgpackCodec) Unmarshal(data []byte, dest any) error {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")

	if !untypedTarget(dest) {
		if err := dec.Decode(dest); err != nil {
			return err
		}
		return checkRemaining(r)
	}

	dec.UseLooseInterfaceDecoding(true)
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if err := checkRemaining(r); err != nil {
		return err
	}
	return assignUntyped(dest, normalize(raw))
}

func checkRemaining(r *bytes.Reader) error {
	if r.Len() > 0 {
		return ErrTrailingData
	}
	return nil
}

var _ types.Codec = (*MsgpackCodec)(nil)
