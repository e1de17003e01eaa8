package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenseforge/internal/domain"
	apperrors "licenseforge/internal/errors"
	"licenseforge/internal/store"
)

func newActivationFixture(t *testing.T) (ActivationService, *store.MemoryStore, *domain.License) {
	t.Helper()
	mem := store.NewMemoryStore()
	l := &domain.License{
		ID:             uuid.New(),
		LicenseKey:     "APP1-AAAA-BBBB-CCCC-DDDD",
		AppID:          "app",
		MaxActivations: 5,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, mem.CreateLicense(context.Background(), l))
	return NewActivationService(mem, nil), mem, l
}

func TestActivationService_GetAndCount(t *testing.T) {
	svc, mem, l := newActivationFixture(t)
	ctx := context.Background()

	a := domain.NewActivation(l.ID, "hw-1", time.Now().UTC())
	require.NoError(t, mem.CreateActivation(ctx, a))

	got, err := svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "hw-1", got.HardwareID)

	byHW, err := svc.GetByHardware(ctx, l.ID, "hw-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byHW.ID)

	n, err := svc.Count(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.NewNotFound(""))

	_, err = svc.GetByHardware(ctx, l.ID, "hw-ghost")
	assert.ErrorIs(t, err, apperrors.NewNotFound(""))
}

func TestActivationService_ListByLicense(t *testing.T) {
	svc, mem, l := newActivationFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i, hw := range []string{"hw-1", "hw-2", "hw-3"} {
		a := domain.NewActivation(l.ID, hw, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, mem.CreateActivation(ctx, a))
	}

	all, err := svc.ListByLicense(ctx, l.ID, store.Page{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "hw-1", all[0].HardwareID)

	paged, err := svc.ListByLicense(ctx, l.ID, store.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "hw-3", paged[0].HardwareID)
}

func TestActivationService_Heartbeat(t *testing.T) {
	svc, mem, l := newActivationFixture(t)
	ctx := context.Background()

	created := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	a := domain.NewActivation(l.ID, "hw-1", created)
	require.NoError(t, mem.CreateActivation(ctx, a))

	impl := svc.(*activationService)
	impl.now = func() time.Time { return created.Add(2 * time.Hour) }

	got, err := svc.Heartbeat(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got.ActivatedAt)
	assert.Equal(t, created.Add(2*time.Hour), got.LastSeenAt)

	stored, err := mem.GetActivation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Add(2*time.Hour), stored.LastSeenAt)

	_, err = svc.Heartbeat(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.NewNotFound(""))
}

func TestActivationService_ListInactive(t *testing.T) {
	svc, mem, l := newActivationFixture(t)
	ctx := context.Background()

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	stale := domain.NewActivation(l.ID, "hw-stale", now.Add(-90*24*time.Hour))
	fresh := domain.NewActivation(l.ID, "hw-fresh", now.Add(-time.Hour))
	require.NoError(t, mem.CreateActivation(ctx, stale))
	require.NoError(t, mem.CreateActivation(ctx, fresh))

	inactive, err := svc.ListInactive(ctx, now.Add(-30*24*time.Hour), store.Page{})
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "hw-stale", inactive[0].HardwareID)
}

func TestActivationService_Delete(t *testing.T) {
	svc, mem, l := newActivationFixture(t)
	ctx := context.Background()

	a := domain.NewActivation(l.ID, "hw-1", time.Now().UTC())
	require.NoError(t, mem.CreateActivation(ctx, a))

	require.NoError(t, svc.Delete(ctx, a.ID))
	_, err := mem.GetActivation(ctx, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, a.ID), apperrors.NewNotFound(""))
}
