// Package services implements the license lifecycle and activation engine
// on top of the persistence port. All verification and activation
// outcomes are structured result types with stable reason codes; business
// denials are data, not errors.
package services

import (
	"time"

	"github.com/google/uuid"
)

// ReasonCode identifies why a verification, activation or deactivation
// succeeded or was denied. Codes are part of the API contract.
type ReasonCode string

const (
	ReasonLicenseNotFound        ReasonCode = "LICENSE_NOT_FOUND"
	ReasonLicenseExpired         ReasonCode = "LICENSE_EXPIRED"
	ReasonLicenseRevoked         ReasonCode = "LICENSE_REVOKED"
	ReasonMaxActivationsReached  ReasonCode = "MAX_ACTIVATIONS_REACHED"
	ReasonHardwareNotActivated   ReasonCode = "HARDWARE_NOT_ACTIVATED"
	ReasonAlreadyActivated       ReasonCode = "ALREADY_ACTIVATED"
	ReasonAvailableForActivation ReasonCode = "AVAILABLE_FOR_ACTIVATION"
	ReasonActivated              ReasonCode = "ACTIVATED"
	ReasonDeactivated            ReasonCode = "DEACTIVATED"
	ReasonValid                  ReasonCode = "VALID"
)

// VerificationResult is the read-only answer to "could this device use
// this key". Status carries the sub-state on success; ErrorCode carries
// the denial reason on failure.
type VerificationResult struct {
	Success         bool       `json:"success"`
	Status          ReasonCode `json:"status,omitempty"`
	ErrorCode       ReasonCode `json:"error_code,omitempty"`
	Message         string     `json:"message"`
	ActivationCount int64      `json:"activation_count"`
	MaxActivations  int        `json:"max_activations,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// ActivationResult is the answer to an activation attempt. On success the
// created (or refreshed) activation record is included.
type ActivationResult struct {
	Success         bool           `json:"success"`
	Status          ReasonCode     `json:"status,omitempty"`
	ErrorCode       ReasonCode     `json:"error_code,omitempty"`
	Message         string         `json:"message"`
	ActivationCount int64          `json:"activation_count"`
	MaxActivations  int            `json:"max_activations,omitempty"`
	Activation      *ActivationDTO `json:"activation,omitempty"`
}

// DeactivationResult is the answer to a deactivation attempt.
type DeactivationResult struct {
	Success         bool       `json:"success"`
	ErrorCode       ReasonCode `json:"error_code,omitempty"`
	Message         string     `json:"message"`
	ActivationCount int64      `json:"activation_count"`
}

// ValidationResult is the lightweight gate clients poll on startup.
type ValidationResult struct {
	Valid  bool       `json:"valid"`
	Reason ReasonCode `json:"reason"`
}

// LicenseDTO is the transport representation of a license, with the
// activation count and hardware projection resolved.
type LicenseDTO struct {
	ID              uuid.UUID  `json:"id"`
	LicenseKey      string     `json:"license_key"`
	AppID           string     `json:"app_id"`
	CustomerID      string     `json:"customer_id"`
	ExpiresAt       *time.Time `json:"expires_at"`
	MaxActivations  int        `json:"max_activations"`
	Revoked         bool       `json:"revoked"`
	Expired         bool       `json:"expired"`
	ActivationCount int64      `json:"activation_count"`
	HardwareIDs     []string   `json:"hardware_ids"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ActivationDTO is the transport representation of an activation.
type ActivationDTO struct {
	ID          uuid.UUID `json:"id"`
	LicenseID   uuid.UUID `json:"license_id"`
	HardwareID  string    `json:"hardware_id"`
	ActivatedAt time.Time `json:"activated_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// CreateLicenseRequest carries the fields for issuing a new license.
type CreateLicenseRequest struct {
	AppID          string     `json:"app_id"`
	CustomerID     string     `json:"customer_id"`
	ExpiresAt      *time.Time `json:"expires_at"`
	MaxActivations int        `json:"max_activations"`
}

// UpdateLicenseRequest is a partial update; nil fields are left unchanged.
// Lowering MaxActivations below the current activation count is accepted;
// the tighter quota only bites on the next activation attempt.
type UpdateLicenseRequest struct {
	CustomerID     *string    `json:"customer_id"`
	ExpiresAt      *time.Time `json:"expires_at"`
	ClearExpiresAt bool       `json:"clear_expires_at"`
	MaxActivations *int       `json:"max_activations"`
	Revoked        *bool      `json:"revoked"`
}
