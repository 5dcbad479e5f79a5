package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeyValidationConfig lists optional key rules. Keys are opaque byte
// strings, so the zero rules only reject the empty key.
type KeyValidationConfig struct {
	ReservedPatterns  []string
	MaxKeyLength      int
	RequireUTF8       bool
	AllowControlChars bool
	AllowWhitespace   bool
}

// DefaultKeyValidationConfig accepts any non-empty key.
func DefaultKeyValidationConfig() KeyValidationConfig {
	return KeyValidationConfig{
		AllowControlChars: true,
		AllowWhitespace:   true,
	}
}

type keyRule func(key string) error

// KeyValidator applies the rules of a KeyValidationConfig. It is immutable
// and safe for concurrent use.
type KeyValidator struct {
	rules []keyRule
}

func NewKeyValidator(cfg KeyValidationConfig) *KeyValidator {
	v := &KeyValidator{}

	if maxLen := cfg.MaxKeyLength; maxLen > 0 {
		v.rules = append(v.rules, func(key string) error {
			if len(key) > maxLen {
				return fmt.Errorf("key length %d exceeds maximum %d bytes", len(key), maxLen)
			}
			return nil
		})
	}

	if cfg.RequireUTF8 {
		v.rules = append(v.rules, func(key string) error {
			if !utf8.ValidString(key) {
				return errors.New("key contains invalid UTF-8")
			}
			return nil
		})
	}

	if !cfg.AllowControlChars || !cfg.AllowWhitespace {
		noControl, noSpace := !cfg.AllowControlChars, !cfg.AllowWhitespace
		v.rules = append(v.rules, func(key string) error {
			for i, r := range key {
				switch {
				case noControl && (r < 0x20 || r == 0x7f):
					return fmt.Errorf("key contains control character at position %d", i)
				case noSpace && unicode.IsSpace(r):
					return fmt.Errorf("key contains whitespace at position %d", i)
				}
			}
			return nil
		})
	}

	if len(cfg.ReservedPatterns) > 0 {
		patterns := append([]string(nil), cfg.ReservedPatterns...)
		v.rules = append(v.rules, func(key string) error {
			for _, p := range patterns {
				if strings.Contains(key, p) {
					return fmt.Errorf("key contains reserved pattern %q", p)
				}
			}
			return nil
		})
	}

	return v
}

// Validate returns an error wrapping ErrInvalidKey for the first rule key
// breaks.
func (v *KeyValidator) Validate(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for _, rule := range v.rules {
		if err := rule(key); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
	}
	return nil
}

var defaultKeyValidator = NewKeyValidator(DefaultKeyValidationConfig())

// ValidateKey applies the default rules.
func ValidateKey(key string) error {
	return defaultKeyValidator.Validate(key)
}
