package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"licenseforge/internal/domain"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs the test suites
// and standalone deployments that do not want a database.
type MemoryStore struct {
	mu          sync.RWMutex
	licenses    map[uuid.UUID]*domain.License
	byKey       map[string]uuid.UUID
	activations map[uuid.UUID]*domain.Activation
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		licenses:    make(map[uuid.UUID]*domain.License),
		byKey:       make(map[string]uuid.UUID),
		activations: make(map[uuid.UUID]*domain.Activation),
	}
}

func (s *MemoryStore) CreateLicense(ctx context.Context, l *domain.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[l.LicenseKey]; exists {
		return ErrDuplicateKey
	}
	cp := *l
	s.licenses[l.ID] = &cp
	s.byKey[l.LicenseKey] = l.ID
	return nil
}

func (s *MemoryStore) GetLicense(ctx context.Context, id uuid.UUID) (*domain.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.licenses[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *MemoryStore) GetLicenseByKey(ctx context.Context, key string) (*domain.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.licenses[id]
	return &cp, nil
}

func (s *MemoryStore) LicenseKeyExists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byKey[key]
	return ok, nil
}

func (s *MemoryStore) ListLicensesByApp(ctx context.Context, appID string, page Page) ([]*domain.License, error) {
	return s.listLicenses(page, func(l *domain.License) bool {
		return l.AppID == appID
	})
}

func (s *MemoryStore) ListLicensesByCustomer(ctx context.Context, customerID string, page Page) ([]*domain.License, error) {
	return s.listLicenses(page, func(l *domain.License) bool {
		return strings.EqualFold(l.CustomerID, customerID)
	})
}

func (s *MemoryStore) ListActiveLicensesByApp(ctx context.Context, appID string, now time.Time, page Page) ([]*domain.License, error) {
	return s.listLicenses(page, func(l *domain.License) bool {
		return l.AppID == appID && l.IsActive(now)
	})
}

func (s *MemoryStore) ListExpiringLicenses(ctx context.Context, appID string, start, end time.Time, page Page) ([]*domain.License, error) {
	return s.listLicenses(page, func(l *domain.License) bool {
		if l.AppID != appID || l.ExpiresAt == nil || l.Revoked {
			return false
		}
		return !l.ExpiresAt.Before(start) && !l.ExpiresAt.After(end)
	})
}

func (s *MemoryStore) CountActiveLicensesByApp(ctx context.Context, appID string, now time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, l := range s.licenses {
		if l.AppID == appID && l.IsActive(now) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UpdateLicense(ctx context.Context, l *domain.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.licenses[l.ID]; !ok {
		return ErrNotFound
	}
	cp := *l
	s.licenses[l.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteLicense(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.licenses[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byKey, l.LicenseKey)
	delete(s.licenses, id)
	for aid, a := range s.activations {
		if a.LicenseID == id {
			delete(s.activations, aid)
		}
	}
	return nil
}

func (s *MemoryStore) CreateActivation(ctx context.Context, a *domain.Activation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.activations {
		if existing.LicenseID == a.LicenseID && existing.HardwareID == a.HardwareID {
			return ErrDuplicateActivation
		}
	}
	cp := *a
	s.activations[a.ID] = &cp
	return nil
}

func (s *MemoryStore) GetActivation(ctx context.Context, id uuid.UUID) (*domain.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.activations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) GetActivationByHardware(ctx context.Context, licenseID uuid.UUID, hardwareID string) (*domain.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.activations {
		if a.LicenseID == licenseID && a.HardwareID == hardwareID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListActivationsByLicense(ctx context.Context, licenseID uuid.UUID, page Page) ([]*domain.Activation, error) {
	return s.listActivations(page, func(a *domain.Activation) bool {
		return a.LicenseID == licenseID
	})
}

func (s *MemoryStore) ListInactiveActivations(ctx context.Context, threshold time.Time, page Page) ([]*domain.Activation, error) {
	return s.listActivations(page, func(a *domain.Activation) bool {
		return a.InactiveSince(threshold)
	})
}

func (s *MemoryStore) CountActivations(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, a := range s.activations {
		if a.LicenseID == licenseID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UpdateActivation(ctx context.Context, a *domain.Activation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activations[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	s.activations[a.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteActivation(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activations[id]; !ok {
		return ErrNotFound
	}
	delete(s.activations, id)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) listLicenses(page Page, match func(*domain.License) bool) ([]*domain.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.License
	for _, l := range s.licenses {
		if match(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return paginate(out, page), nil
}

func (s *MemoryStore) listActivations(page Page, match func(*domain.Activation) bool) ([]*domain.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Activation
	for _, a := range s.activations {
		if match(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActivatedAt.Equal(out[j].ActivatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].ActivatedAt.Before(out[j].ActivatedAt)
	})
	return paginate(out, page), nil
}

func paginate[T any](items []T, page Page) []T {
	limit, offset := page.limitOffset()
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
