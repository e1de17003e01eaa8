package domain

import (
	"time"

	"github.com/google/uuid"
)

// Activation records that one device holds a slot on a license. The pair
// (LicenseID, HardwareID) is unique; ActivatedAt is set once at creation
// and LastSeenAt is refreshed on every successful validate or heartbeat.
type Activation struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	LicenseID   uuid.UUID `json:"license_id" gorm:"type:uuid;uniqueIndex:idx_license_hardware;not null"`
	HardwareID  string    `json:"hardware_id" gorm:"uniqueIndex:idx_license_hardware;size:128;not null"`
	ActivatedAt time.Time `json:"activated_at" gorm:"not null"`
	LastSeenAt  time.Time `json:"last_seen_at" gorm:"index;not null"`
}

// NewActivation creates an activation for the given license and hardware,
// with both timestamps set to now.
func NewActivation(licenseID uuid.UUID, hardwareID string, now time.Time) *Activation {
	return &Activation{
		ID:          uuid.New(),
		LicenseID:   licenseID,
		HardwareID:  hardwareID,
		ActivatedAt: now,
		LastSeenAt:  now,
	}
}

// TouchLastSeen refreshes the last-seen timestamp.
func (a *Activation) TouchLastSeen(now time.Time) {
	a.LastSeenAt = now
}

// InactiveSince reports whether the device has not been seen since the
// given threshold instant.
func (a *Activation) InactiveSince(threshold time.Time) bool {
	return a.LastSeenAt.Before(threshold)
}
