// Package store defines the persistence port for licenses and activations
// plus two adapters: an in-memory store for tests and standalone mode, and
// a Postgres store backed by GORM.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"licenseforge/internal/domain"
)

var (
	// ErrNotFound is returned when the requested license or activation
	// does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateKey is returned when creating a license whose key is
	// already in use.
	ErrDuplicateKey = errors.New("store: license key already exists")

	// ErrDuplicateActivation is returned when creating an activation for
	// a (license, hardware) pair that already holds a slot.
	ErrDuplicateActivation = errors.New("store: hardware already activated")
)

// Page bounds a list query. Page numbers start at 0; Size is clamped by
// the adapters to a sane maximum.
type Page struct {
	Number int
	Size   int
}

const maxPageSize = 200

func (p Page) limitOffset() (limit, offset int) {
	size := p.Size
	if size <= 0 || size > maxPageSize {
		size = maxPageSize
	}
	n := p.Number
	if n < 0 {
		n = 0
	}
	return size, n * size
}

// Store is the persistence port used by the services layer. All methods
// are safe for concurrent use.
type Store interface {
	// Licenses.
	CreateLicense(ctx context.Context, l *domain.License) error
	GetLicense(ctx context.Context, id uuid.UUID) (*domain.License, error)
	GetLicenseByKey(ctx context.Context, key string) (*domain.License, error)
	LicenseKeyExists(ctx context.Context, key string) (bool, error)
	ListLicensesByApp(ctx context.Context, appID string, page Page) ([]*domain.License, error)
	ListLicensesByCustomer(ctx context.Context, customerID string, page Page) ([]*domain.License, error)
	ListActiveLicensesByApp(ctx context.Context, appID string, now time.Time, page Page) ([]*domain.License, error)
	ListExpiringLicenses(ctx context.Context, appID string, start, end time.Time, page Page) ([]*domain.License, error)
	CountActiveLicensesByApp(ctx context.Context, appID string, now time.Time) (int64, error)
	UpdateLicense(ctx context.Context, l *domain.License) error
	DeleteLicense(ctx context.Context, id uuid.UUID) error

	// Activations.
	CreateActivation(ctx context.Context, a *domain.Activation) error
	GetActivation(ctx context.Context, id uuid.UUID) (*domain.Activation, error)
	GetActivationByHardware(ctx context.Context, licenseID uuid.UUID, hardwareID string) (*domain.Activation, error)
	ListActivationsByLicense(ctx context.Context, licenseID uuid.UUID, page Page) ([]*domain.Activation, error)
	ListInactiveActivations(ctx context.Context, threshold time.Time, page Page) ([]*domain.Activation, error)
	CountActivations(ctx context.Context, licenseID uuid.UUID) (int64, error)
	UpdateActivation(ctx context.Context, a *domain.Activation) error
	DeleteActivation(ctx context.Context, id uuid.UUID) error

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}
