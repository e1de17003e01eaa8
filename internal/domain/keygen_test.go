package domain

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyPattern = regexp.MustCompile(`^[A-Z0-9]{4}(-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}){4}$`)

func neverExists(context.Context, string) (bool, error) { return false, nil }

func TestKeyGenerator_Format(t *testing.T) {
	g := NewKeyGenerator()

	for i := 0; i < 100; i++ {
		key, err := g.Generate(context.Background(), "DEMO", neverExists)
		require.NoError(t, err)
		assert.Regexp(t, keyPattern, key)
		assert.Len(t, key, 24)
	}
}

func TestKeyGenerator_ExcludesAmbiguousCharacters(t *testing.T) {
	g := NewKeyGenerator()

	for i := 0; i < 200; i++ {
		key, err := g.Generate(context.Background(), "DEMO", neverExists)
		require.NoError(t, err)
		// Only the random part matters; the prefix is caller-supplied.
		assert.NotRegexp(t, `^.{5}.*[01IO]`, key)
	}
}

func TestKeyGenerator_RetriesOnCollision(t *testing.T) {
	g := NewKeyGenerator()

	calls := 0
	exists := func(context.Context, string) (bool, error) {
		calls++
		return calls < 3, nil
	}

	key, err := g.Generate(context.Background(), "DEMO", exists)
	require.NoError(t, err)
	assert.Regexp(t, keyPattern, key)
	assert.Equal(t, 3, calls)
}

func TestKeyGenerator_GivesUpAfterMaxAttempts(t *testing.T) {
	g := NewKeyGenerator()

	calls := 0
	alwaysExists := func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}

	_, err := g.Generate(context.Background(), "DEMO", alwaysExists)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no unique key")
	assert.Equal(t, maxKeyAttempts, calls)
}

func TestKeyGenerator_DeterministicSource(t *testing.T) {
	src := func() *deterministicReader { return &deterministicReader{} }

	g1 := NewKeyGeneratorWithSource(src())
	g2 := NewKeyGeneratorWithSource(src())

	k1, err := g1.Generate(context.Background(), "DEMO", neverExists)
	require.NoError(t, err)
	k2, err := g2.Generate(context.Background(), "DEMO", neverExists)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestKeyPrefix(t *testing.T) {
	tests := []struct {
		appID string
		want  string
	}{
		{"photoshop", "PHOT"},
		{"my-app-2", "MYAP"},
		{"ab", "LFRG"},
		{"", "LFRG"},
		{"--//--", "LFRG"},
		{"x9y8z7", "X9Y8"},
	}

	for _, tt := range tests {
		t.Run(tt.appID, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyPrefix(tt.appID))
		})
	}
}

type deterministicReader struct{ n byte }

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.n
		r.n++
	}
	return len(p), nil
}
