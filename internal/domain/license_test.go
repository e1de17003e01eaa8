package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLicense_IsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{
			name:      "nil expiry never expires",
			expiresAt: nil,
			want:      false,
		},
		{
			name:      "future expiry",
			expiresAt: timePtr(now.Add(24 * time.Hour)),
			want:      false,
		},
		{
			name:      "past expiry",
			expiresAt: timePtr(now.Add(-time.Minute)),
			want:      true,
		},
		{
			name:      "exactly at expiry is not yet expired",
			expiresAt: timePtr(now),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &License{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, l.IsExpired(now))
		})
	}
}

func TestLicense_IsActive(t *testing.T) {
	now := time.Now()

	active := &License{MaxActivations: 3}
	assert.True(t, active.IsActive(now))

	revoked := &License{MaxActivations: 3, Revoked: true}
	assert.False(t, revoked.IsActive(now))

	expired := &License{MaxActivations: 3, ExpiresAt: timePtr(now.Add(-time.Hour))}
	assert.False(t, expired.IsActive(now))
}

func TestLicense_CanActivate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name             string
		license          *License
		activeCount      int64
		alreadyActivated bool
		want             bool
	}{
		{
			name:        "free slot on active license",
			license:     &License{MaxActivations: 2},
			activeCount: 1,
			want:        true,
		},
		{
			name:        "quota exhausted",
			license:     &License{MaxActivations: 2},
			activeCount: 2,
			want:        false,
		},
		{
			name:             "already activated ignores quota",
			license:          &License{MaxActivations: 2},
			activeCount:      2,
			alreadyActivated: true,
			want:             true,
		},
		{
			name:             "revoked blocks even activated devices",
			license:          &License{MaxActivations: 2, Revoked: true},
			activeCount:      1,
			alreadyActivated: true,
			want:             false,
		},
		{
			name:        "expired blocks new activations",
			license:     &License{MaxActivations: 2, ExpiresAt: timePtr(now.Add(-time.Hour))},
			activeCount: 0,
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.license.CanActivate(now, tt.activeCount, tt.alreadyActivated)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActivation_TouchLastSeen(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewActivation(uuid.New(), "hw-1", created)
	assert.Equal(t, created, a.ActivatedAt)
	assert.Equal(t, created, a.LastSeenAt)

	later := created.Add(time.Hour)
	a.TouchLastSeen(later)
	assert.Equal(t, created, a.ActivatedAt, "ActivatedAt is immutable")
	assert.Equal(t, later, a.LastSeenAt)
}

func TestActivation_InactiveSince(t *testing.T) {
	seen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Activation{LastSeenAt: seen}

	assert.True(t, a.InactiveSince(seen.Add(time.Minute)))
	assert.False(t, a.InactiveSince(seen))
	assert.False(t, a.InactiveSince(seen.Add(-time.Minute)))
}

func timePtr(t time.Time) *time.Time {
	return &t
}
