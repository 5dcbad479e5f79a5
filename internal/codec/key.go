package codec

import "strings"

// StringKeyCodec maps caller keys to stored keys. Keys are kept as their
// literal bytes; the only transformation is an optional namespace prefix.
type StringKeyCodec struct {
	prefix string
}

func NewStringKeyCodec(prefix string) StringKeyCodec {
	return StringKeyCodec{prefix: prefix}
}

func (c StringKeyCodec) Prefix() string {
	return c.prefix
}

func (c StringKeyCodec) Encode(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + key
}

// Decode strips the prefix from a stored key. It reports false for keys
// outside the namespace.
func (c StringKeyCodec) Decode(stored string) (string, bool) {
	if c.prefix == "" {
		return stored, true
	}
	return strings.CutPrefix(stored, c.prefix)
}
