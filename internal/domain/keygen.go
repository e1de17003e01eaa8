package domain

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// keyAlphabet excludes the ambiguous characters 0, O, 1 and I so keys
// survive being read over the phone or retyped from an email.
const keyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	keyGroups      = 4
	keyGroupLen    = 4
	maxKeyAttempts = 10
)

// ExistsFunc reports whether a candidate key is already in use.
type ExistsFunc func(ctx context.Context, key string) (bool, error)

// KeyGenerator produces license keys of the form PREFIX-XXXX-XXXX-XXXX-XXXX.
// The zero value is not usable; construct with NewKeyGenerator.
type KeyGenerator struct {
	random io.Reader
}

// NewKeyGenerator returns a generator backed by crypto/rand.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{random: rand.Reader}
}

// NewKeyGeneratorWithSource returns a generator reading randomness from the
// given source. Tests use this to make key output deterministic.
func NewKeyGeneratorWithSource(r io.Reader) *KeyGenerator {
	return &KeyGenerator{random: r}
}

// Generate produces a fresh key with the given prefix, retrying on
// collisions reported by exists. It fails after 10 attempts rather than
// looping forever against a pathological keyspace.
func (g *KeyGenerator) Generate(ctx context.Context, prefix string, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := g.newKey(prefix)
		if err != nil {
			return "", fmt.Errorf("generating license key: %w", err)
		}
		inUse, err := exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("checking license key uniqueness: %w", err)
		}
		if !inUse {
			return key, nil
		}
	}
	return "", fmt.Errorf("generating license key: no unique key after %d attempts", maxKeyAttempts)
}

func (g *KeyGenerator) newKey(prefix string) (string, error) {
	buf := make([]byte, keyGroups*keyGroupLen)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(prefix)
	for i, c := range buf {
		if i%keyGroupLen == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(keyAlphabet[int(c)%len(keyAlphabet)])
	}
	return b.String(), nil
}

// KeyPrefix derives a key prefix from an application id: the first four
// letters or digits, uppercased. Short or fully non-alphanumeric ids fall
// back to a fixed tag so keys always carry a readable prefix.
func KeyPrefix(appID string) string {
	var b strings.Builder
	n := 0
	for _, r := range appID {
		if n == keyGroupLen {
			break
		}
		if r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
			n++
		}
	}
	if n < keyGroupLen {
		return "LFRG"
	}
	return b.String()
}
