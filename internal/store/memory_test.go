package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenseforge/internal/domain"
)

func newTestLicense(appID, key string) *domain.License {
	now := time.Now().UTC()
	return &domain.License{
		ID:             uuid.New(),
		LicenseKey:     key,
		AppID:          appID,
		CustomerID:     "acme",
		MaxActivations: 3,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMemoryStore_LicenseCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	l := newTestLicense("photoshop", "PHOT-AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, s.CreateLicense(ctx, l))

	got, err := s.GetLicense(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.LicenseKey, got.LicenseKey)

	byKey, err := s.GetLicenseByKey(ctx, l.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, l.ID, byKey.ID)

	exists, err := s.LicenseKeyExists(ctx, l.LicenseKey)
	require.NoError(t, err)
	assert.True(t, exists)

	got.CustomerID = "globex"
	require.NoError(t, s.UpdateLicense(ctx, got))
	updated, err := s.GetLicense(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "globex", updated.CustomerID)

	require.NoError(t, s.DeleteLicense(ctx, l.ID))
	_, err = s.GetLicense(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	exists, err = s.LicenseKeyExists(ctx, l.LicenseKey)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStore_DuplicateLicenseKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateLicense(ctx, newTestLicense("app", "APP1-AAAA-BBBB-CCCC-DDDD")))
	err := s.CreateLicense(ctx, newTestLicense("app", "APP1-AAAA-BBBB-CCCC-DDDD"))
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestMemoryStore_StoredCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	l := newTestLicense("app", "APP1-AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, s.CreateLicense(ctx, l))

	// Mutating the caller's struct must not leak into the store.
	l.CustomerID = "mutated"
	got, err := s.GetLicense(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.CustomerID)

	// Mutating a returned struct must not leak either.
	got.CustomerID = "also-mutated"
	again, err := s.GetLicense(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", again.CustomerID)
}

func TestMemoryStore_ListLicensesByApp_Pagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	keys := []string{
		"APP1-AAAA-AAAA-AAAA-AAAA",
		"APP1-BBBB-BBBB-BBBB-BBBB",
		"APP1-CCCC-CCCC-CCCC-CCCC",
		"APP1-DDDD-DDDD-DDDD-DDDD",
		"APP1-EEEE-EEEE-EEEE-EEEE",
	}
	for i, key := range keys {
		l := newTestLicense("app", key)
		l.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.CreateLicense(ctx, l))
	}
	require.NoError(t, s.CreateLicense(ctx, newTestLicense("other", "OTHR-AAAA-AAAA-AAAA-AAAA")))

	first, err := s.ListLicensesByApp(ctx, "app", Page{Number: 0, Size: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, keys[0], first[0].LicenseKey)
	assert.Equal(t, keys[1], first[1].LicenseKey)

	last, err := s.ListLicensesByApp(ctx, "app", Page{Number: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, keys[4], last[0].LicenseKey)

	beyond, err := s.ListLicensesByApp(ctx, "app", Page{Number: 9, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestMemoryStore_ListLicensesByCustomer_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	l := newTestLicense("app", "APP1-AAAA-BBBB-CCCC-DDDD")
	l.CustomerID = "Acme"
	require.NoError(t, s.CreateLicense(ctx, l))

	got, err := s.ListLicensesByCustomer(ctx, "ACME", Page{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryStore_ActiveAndExpiringQueries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	perpetual := newTestLicense("app", "APP1-AAAA-AAAA-AAAA-AAAA")
	require.NoError(t, s.CreateLicense(ctx, perpetual))

	expired := newTestLicense("app", "APP1-BBBB-BBBB-BBBB-BBBB")
	expired.ExpiresAt = timePtr(now.Add(-time.Hour))
	require.NoError(t, s.CreateLicense(ctx, expired))

	soon := newTestLicense("app", "APP1-CCCC-CCCC-CCCC-CCCC")
	soon.ExpiresAt = timePtr(now.Add(48 * time.Hour))
	require.NoError(t, s.CreateLicense(ctx, soon))

	revoked := newTestLicense("app", "APP1-DDDD-DDDD-DDDD-DDDD")
	revoked.Revoked = true
	require.NoError(t, s.CreateLicense(ctx, revoked))

	active, err := s.ListActiveLicensesByApp(ctx, "app", now, Page{})
	require.NoError(t, err)
	assert.Len(t, active, 2) // perpetual + soon

	count, err := s.CountActiveLicensesByApp(ctx, "app", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	expiring, err := s.ListExpiringLicenses(ctx, "app", now, now.Add(72*time.Hour), Page{})
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, soon.LicenseKey, expiring[0].LicenseKey)
}

func TestMemoryStore_ActivationCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	l := newTestLicense("app", "APP1-AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, s.CreateLicense(ctx, l))

	a := domain.NewActivation(l.ID, "hw-1", time.Now().UTC())
	require.NoError(t, s.CreateActivation(ctx, a))

	got, err := s.GetActivation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "hw-1", got.HardwareID)

	byHW, err := s.GetActivationByHardware(ctx, l.ID, "hw-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byHW.ID)

	dup := domain.NewActivation(l.ID, "hw-1", time.Now().UTC())
	assert.ErrorIs(t, s.CreateActivation(ctx, dup), ErrDuplicateActivation)

	count, err := s.CountActivations(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got.TouchLastSeen(got.LastSeenAt.Add(time.Hour))
	require.NoError(t, s.UpdateActivation(ctx, got))

	require.NoError(t, s.DeleteActivation(ctx, a.ID))
	_, err = s.GetActivation(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteLicense_CascadesActivations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	l := newTestLicense("app", "APP1-AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, s.CreateLicense(ctx, l))
	a1 := domain.NewActivation(l.ID, "hw-1", time.Now().UTC())
	a2 := domain.NewActivation(l.ID, "hw-2", time.Now().UTC())
	require.NoError(t, s.CreateActivation(ctx, a1))
	require.NoError(t, s.CreateActivation(ctx, a2))

	require.NoError(t, s.DeleteLicense(ctx, l.ID))

	_, err := s.GetActivation(ctx, a1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetActivation(ctx, a2.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListInactiveActivations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	l := newTestLicense("app", "APP1-AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, s.CreateLicense(ctx, l))

	stale := domain.NewActivation(l.ID, "hw-stale", now.Add(-30*24*time.Hour))
	fresh := domain.NewActivation(l.ID, "hw-fresh", now.Add(-time.Hour))
	require.NoError(t, s.CreateActivation(ctx, stale))
	require.NoError(t, s.CreateActivation(ctx, fresh))

	inactive, err := s.ListInactiveActivations(ctx, now.Add(-7*24*time.Hour), Page{})
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "hw-stale", inactive[0].HardwareID)
}

func timePtr(t time.Time) *time.Time { return &t }
