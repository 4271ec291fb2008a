package license

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	// KeyAlphabet is the character set of generated and custom keys.
	KeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// DefaultKeyLength gives roughly 82 bits of entropy.
	DefaultKeyLength = 16

	// MinCustomKeyLength is the shortest accepted administrator-chosen key.
	MinCustomKeyLength = 6

	// MaxKeyGenerationAttempts bounds collision retries in Create.
	MaxKeyGenerationAttempts = 5

	// MaxDays bounds the day count accepted by Create and Extend.
	MaxDays = 36500
)

// KeyGenerator produces random license keys.
type KeyGenerator struct {
	length int
	rand   io.Reader
}

// NewKeyGenerator returns a generator of keys with the given length. Lengths
// below MinCustomKeyLength fall back to DefaultKeyLength.
func NewKeyGenerator(length int) *KeyGenerator {
	if length < MinCustomKeyLength {
		length = DefaultKeyLength
	}
	return &KeyGenerator{length: length, rand: rand.Reader}
}

// WithRandSource replaces the entropy source. Used in tests.
func (g *KeyGenerator) WithRandSource(r io.Reader) *KeyGenerator {
	g.rand = r
	return g
}

// Length returns the generated key length.
func (g *KeyGenerator) Length() int {
	return g.length
}

// Generate returns a new uppercase alphanumeric key.
func (g *KeyGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(KeyAlphabet)))
	var sb strings.Builder
	sb.Grow(g.length)
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(g.rand, max)
		if err != nil {
			return "", fmt.Errorf("generate license key: %w", err)
		}
		sb.WriteByte(KeyAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeKey trims and uppercases a key.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// ValidateCustomKey normalizes an administrator-chosen key and checks its
// length and alphabet.
func ValidateCustomKey(key string) (string, error) {
	k := NormalizeKey(key)
	if len(k) < MinCustomKeyLength {
		return "", fmt.Errorf("%w: need at least %d characters, got %d", ErrKeyTooShort, MinCustomKeyLength, len(k))
	}
	for i := 0; i < len(k); i++ {
		if !strings.ContainsRune(KeyAlphabet, rune(k[i])) {
			return "", fmt.Errorf("%w: license key must be alphanumeric", ErrInvalidInput)
		}
	}
	return k, nil
}

// ParseDays parses a day count supplied as text, e.g. a form or query value.
func ParseDays(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: days must be an integer", ErrInvalidInput)
	}
	return n, nil
}

// shiftExpiry adds days to expiry. The result must stay encodable, so both
// the count and the resulting year are bounded.
func shiftExpiry(expiry time.Time, days int) (time.Time, error) {
	if days > MaxDays || days < -MaxDays {
		return time.Time{}, fmt.Errorf("%w: days must be between %d and %d", ErrInvalidInput, -MaxDays, MaxDays)
	}
	out := expiry.AddDate(0, 0, days)
	if y := out.UTC().Year(); y < 1 || y > 9999 {
		return time.Time{}, fmt.Errorf("%w: expiry year %d out of range", ErrInvalidInput, y)
	}
	return out, nil
}
