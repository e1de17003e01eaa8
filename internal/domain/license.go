// Package domain holds the core license and activation entities plus the
// key generation rules. It has no infrastructure dependencies so the
// persistence adapters and services can all build on it.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// License is a single issued license key scoped to an application.
// Activations are the source of truth for which devices hold a slot;
// HardwareIDs is a read-side projection populated by the store/service
// layer and never written back.
type License struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	LicenseKey     string     `json:"license_key" gorm:"uniqueIndex;size:64;not null"`
	AppID          string     `json:"app_id" gorm:"index;size:64;not null"`
	CustomerID     string     `json:"customer_id" gorm:"index;size:64"`
	ExpiresAt      *time.Time `json:"expires_at"` // nil means the license never expires
	MaxActivations int        `json:"max_activations" gorm:"not null"`
	Revoked        bool       `json:"revoked" gorm:"not null;default:false"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	HardwareIDs []string `json:"hardware_ids,omitempty" gorm:"-"`
}

// IsExpired reports whether the license is past its expiry at the given
// instant. Licenses without an expiry never expire.
func (l *License) IsExpired(now time.Time) bool {
	if l.ExpiresAt == nil {
		return false
	}
	return now.After(*l.ExpiresAt)
}

// IsActive reports whether the license is usable at the given instant:
// not revoked and not expired.
func (l *License) IsActive(now time.Time) bool {
	return !l.Revoked && !l.IsExpired(now)
}

// CanActivate reports whether a device could take an activation slot right
// now, given the current number of active devices. An already activated
// device can always "activate" again (idempotent re-activation); a new
// device needs the license active and a free slot.
func (l *License) CanActivate(now time.Time, activeCount int64, alreadyActivated bool) bool {
	if !l.IsActive(now) {
		return false
	}
	if alreadyActivated {
		return true
	}
	return activeCount < int64(l.MaxActivations)
}
