package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"licenseforge/internal/domain"
	apperrors "licenseforge/internal/errors"
	"licenseforge/internal/infrastructure"
	"licenseforge/internal/store"
)

// LicenseService is the license lifecycle and activation engine.
type LicenseService interface {
	CreateLicense(ctx context.Context, req CreateLicenseRequest) (*LicenseDTO, error)
	GetLicense(ctx context.Context, id uuid.UUID) (*LicenseDTO, error)
	GetLicenseByKey(ctx context.Context, key string) (*LicenseDTO, error)
	ListByApp(ctx context.Context, appID string, page store.Page) ([]*LicenseDTO, error)
	ListByCustomer(ctx context.Context, customerID string, page store.Page) ([]*LicenseDTO, error)
	ListActiveByApp(ctx context.Context, appID string, page store.Page) ([]*LicenseDTO, error)
	ListExpiring(ctx context.Context, appID string, start, end time.Time, page store.Page) ([]*LicenseDTO, error)
	CountActiveByApp(ctx context.Context, appID string) (int64, error)

	Verify(ctx context.Context, key, hardwareID string) (*VerificationResult, error)
	Activate(ctx context.Context, key, hardwareID string) (*ActivationResult, error)
	Deactivate(ctx context.Context, key, hardwareID string) (*DeactivationResult, error)
	Validate(ctx context.Context, key, hardwareID string) (*ValidationResult, error)

	Revoke(ctx context.Context, id uuid.UUID) (bool, error)
	Reinstate(ctx context.Context, id uuid.UUID) (bool, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateLicenseRequest) (*LicenseDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type licenseService struct {
	store   store.Store
	keygen  *domain.KeyGenerator
	locks   *keyedMutex
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
	now     func() time.Time
}

// NewLicenseService wires the engine to a store. metrics may be nil when
// observability is disabled.
func NewLicenseService(s store.Store, keygen *domain.KeyGenerator, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) LicenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &licenseService{
		store:   s,
		keygen:  keygen,
		locks:   newKeyedMutex(),
		logger:  logger.With(slog.String("service", "license")),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *licenseService) CreateLicense(ctx context.Context, req CreateLicenseRequest) (*LicenseDTO, error) {
	if req.AppID == "" {
		return nil, apperrors.NewValidation("app_id is required")
	}
	if req.MaxActivations < 1 {
		return nil, apperrors.NewValidation("max_activations must be at least 1").
			WithContext("max_activations", req.MaxActivations)
	}
	// A past expires_at is accepted; the license is simply born expired and
	// every verify/activate on it reports LICENSE_EXPIRED.
	now := s.now()

	key, err := s.keygen.Generate(ctx, domain.KeyPrefix(req.AppID), s.store.LicenseKeyExists)
	if err != nil {
		return nil, apperrors.NewInternal("generating license key", err)
	}

	l := &domain.License{
		ID:             uuid.New(),
		LicenseKey:     key,
		AppID:          req.AppID,
		CustomerID:     req.CustomerID,
		ExpiresAt:      req.ExpiresAt,
		MaxActivations: req.MaxActivations,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateLicense(ctx, l); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, apperrors.NewConflict("license key already exists")
		}
		return nil, apperrors.NewStorage("creating license", err)
	}

	s.metrics.RecordLicenseCreated(ctx, l.AppID)
	s.logger.InfoContext(ctx, "license created",
		slog.String("license_id", l.ID.String()),
		slog.String("app_id", l.AppID),
		slog.Int("max_activations", l.MaxActivations),
	)
	return s.toDTO(ctx, l, false)
}

func (s *licenseService) GetLicense(ctx context.Context, id uuid.UUID) (*LicenseDTO, error) {
	l, err := s.getLicense(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toDTO(ctx, l, true)
}

func (s *licenseService) GetLicenseByKey(ctx context.Context, key string) (*LicenseDTO, error) {
	l, err := s.store.GetLicenseByKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewNotFound("license not found")
		}
		return nil, apperrors.NewStorage("loading license", err)
	}
	return s.toDTO(ctx, l, true)
}

func (s *licenseService) ListByApp(ctx context.Context, appID string, page store.Page) ([]*LicenseDTO, error) {
	ls, err := s.store.ListLicensesByApp(ctx, appID, page)
	if err != nil {
		return nil, apperrors.NewStorage("listing licenses", err)
	}
	return s.toDTOs(ctx, ls)
}

func (s *licenseService) ListByCustomer(ctx context.Context, customerID string, page store.Page) ([]*LicenseDTO, error) {
	ls, err := s.store.ListLicensesByCustomer(ctx, customerID, page)
	if err != nil {
		return nil, apperrors.NewStorage("listing licenses", err)
	}
	return s.toDTOs(ctx, ls)
}

func (s *licenseService) ListActiveByApp(ctx context.Context, appID string, page store.Page) ([]*LicenseDTO, error) {
	ls, err := s.store.ListActiveLicensesByApp(ctx, appID, s.now(), page)
	if err != nil {
		return nil, apperrors.NewStorage("listing active licenses", err)
	}
	return s.toDTOs(ctx, ls)
}

func (s *licenseService) ListExpiring(ctx context.Context, appID string, start, end time.Time, page store.Page) ([]*LicenseDTO, error) {
	if end.Before(start) {
		return nil, apperrors.NewValidation("end must not be before start")
	}
	ls, err := s.store.ListExpiringLicenses(ctx, appID, start, end, page)
	if err != nil {
		return nil, apperrors.NewStorage("listing expiring licenses", err)
	}
	return s.toDTOs(ctx, ls)
}

func (s *licenseService) CountActiveByApp(ctx context.Context, appID string) (int64, error) {
	n, err := s.store.CountActiveLicensesByApp(ctx, appID, s.now())
	if err != nil {
		return 0, apperrors.NewStorage("counting active licenses", err)
	}
	return n, nil
}

// Verify answers whether hardwareID could use key, without changing any
// state. Check order: not-found, expired, revoked, already-activated,
// quota.
func (s *licenseService) Verify(ctx context.Context, key, hardwareID string) (*VerificationResult, error) {
	l, err := s.store.GetLicenseByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return &VerificationResult{
			Success:   false,
			ErrorCode: ReasonLicenseNotFound,
			Message:   "license key not found",
		}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorage("loading license", err)
	}

	count, err := s.store.CountActivations(ctx, l.ID)
	if err != nil {
		return nil, apperrors.NewStorage("counting activations", err)
	}

	now := s.now()
	if l.IsExpired(now) {
		return &VerificationResult{
			Success:         false,
			ErrorCode:       ReasonLicenseExpired,
			Message:         "license has expired",
			ActivationCount: count,
			ExpiresAt:       l.ExpiresAt,
		}, nil
	}
	if l.Revoked {
		return &VerificationResult{
			Success:         false,
			ErrorCode:       ReasonLicenseRevoked,
			Message:         "license has been revoked",
			ActivationCount: count,
		}, nil
	}

	_, err = s.store.GetActivationByHardware(ctx, l.ID, hardwareID)
	switch {
	case err == nil:
		return &VerificationResult{
			Success:         true,
			Status:          ReasonAlreadyActivated,
			Message:         "hardware is already activated on this license",
			ActivationCount: count,
			MaxActivations:  l.MaxActivations,
			ExpiresAt:       l.ExpiresAt,
		}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperrors.NewStorage("loading activation", err)
	}

	if !l.CanActivate(now, count, false) {
		return &VerificationResult{
			Success:         false,
			ErrorCode:       ReasonMaxActivationsReached,
			Message:         "maximum activations reached",
			ActivationCount: count,
			MaxActivations:  l.MaxActivations,
		}, nil
	}
	return &VerificationResult{
		Success:         true,
		Status:          ReasonAvailableForActivation,
		Message:         "license is available for activation",
		ActivationCount: count,
		MaxActivations:  l.MaxActivations,
		ExpiresAt:       l.ExpiresAt,
	}, nil
}

// Activate takes (or refreshes) an activation slot for hardwareID. The
// whole read-check-write sequence holds the license lock so concurrent
// requests cannot overshoot the quota. Expiry and revocation are checked
// before the already-activated short-circuit, in the same order Verify
// uses, so a device on a dead license gets the real denial reason
// instead of a stale success.
func (s *licenseService) Activate(ctx context.Context, key, hardwareID string) (*ActivationResult, error) {
	if hardwareID == "" {
		return nil, apperrors.NewValidation("hardware_id is required")
	}

	unlock := s.locks.Lock(key)
	defer unlock()

	l, err := s.store.GetLicenseByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		s.metrics.RecordActivation(ctx, false, string(ReasonLicenseNotFound))
		return &ActivationResult{
			Success:   false,
			ErrorCode: ReasonLicenseNotFound,
			Message:   "license key not found",
		}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorage("loading license", err)
	}

	now := s.now()
	if l.IsExpired(now) {
		s.metrics.RecordActivation(ctx, false, string(ReasonLicenseExpired))
		return s.denyActivation(ctx, l, ReasonLicenseExpired, "license has expired")
	}
	if l.Revoked {
		s.metrics.RecordActivation(ctx, false, string(ReasonLicenseRevoked))
		return s.denyActivation(ctx, l, ReasonLicenseRevoked, "license has been revoked")
	}

	existing, err := s.store.GetActivationByHardware(ctx, l.ID, hardwareID)
	if err == nil {
		existing.TouchLastSeen(now)
		if err := s.store.UpdateActivation(ctx, existing); err != nil {
			return nil, apperrors.NewStorage("refreshing activation", err)
		}
		count, err := s.store.CountActivations(ctx, l.ID)
		if err != nil {
			return nil, apperrors.NewStorage("counting activations", err)
		}
		return &ActivationResult{
			Success:         true,
			Status:          ReasonAlreadyActivated,
			Message:         "hardware is already activated on this license",
			ActivationCount: count,
			MaxActivations:  l.MaxActivations,
			Activation:      activationToDTO(existing),
		}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewStorage("loading activation", err)
	}

	count, err := s.store.CountActivations(ctx, l.ID)
	if err != nil {
		return nil, apperrors.NewStorage("counting activations", err)
	}
	if !l.CanActivate(now, count, false) {
		s.metrics.RecordActivation(ctx, false, string(ReasonMaxActivationsReached))
		s.logger.WarnContext(ctx, "activation denied, quota exhausted",
			slog.String("license_id", l.ID.String()),
			slog.Int64("activation_count", count),
			slog.Int("max_activations", l.MaxActivations),
		)
		return &ActivationResult{
			Success:         false,
			ErrorCode:       ReasonMaxActivationsReached,
			Message:         "maximum activations reached",
			ActivationCount: count,
			MaxActivations:  l.MaxActivations,
		}, nil
	}

	a := domain.NewActivation(l.ID, hardwareID, now)
	if err := s.store.CreateActivation(ctx, a); err != nil {
		// The unique constraint backstops the keyed lock; a duplicate
		// here means the device already holds its slot.
		if errors.Is(err, store.ErrDuplicateActivation) {
			return &ActivationResult{
				Success:         true,
				Status:          ReasonAlreadyActivated,
				Message:         "hardware is already activated on this license",
				ActivationCount: count,
				MaxActivations:  l.MaxActivations,
			}, nil
		}
		return nil, apperrors.NewStorage("creating activation", err)
	}

	s.metrics.RecordActivation(ctx, true, string(ReasonActivated))
	s.logger.InfoContext(ctx, "hardware activated",
		slog.String("license_id", l.ID.String()),
		slog.String("hardware_id", hardwareID),
		slog.Int64("activation_count", count+1),
	)
	return &ActivationResult{
		Success:         true,
		Status:          ReasonActivated,
		Message:         "hardware activated",
		ActivationCount: count + 1,
		MaxActivations:  l.MaxActivations,
		Activation:      activationToDTO(a),
	}, nil
}

// Deactivate releases the slot held by hardwareID. Revoked licenses keep
// their activation records frozen: the slot cannot be released and moved
// to another device on a license that was revoked for abuse.
func (s *licenseService) Deactivate(ctx context.Context, key, hardwareID string) (*DeactivationResult, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	l, err := s.store.GetLicenseByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return &DeactivationResult{
			Success:   false,
			ErrorCode: ReasonLicenseNotFound,
			Message:   "license key not found",
		}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorage("loading license", err)
	}

	if l.Revoked {
		return &DeactivationResult{
			Success:   false,
			ErrorCode: ReasonLicenseRevoked,
			Message:   "license has been revoked",
		}, nil
	}

	a, err := s.store.GetActivationByHardware(ctx, l.ID, hardwareID)
	if errors.Is(err, store.ErrNotFound) {
		return &DeactivationResult{
			Success:   false,
			ErrorCode: ReasonHardwareNotActivated,
			Message:   "hardware is not activated on this license",
		}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorage("loading activation", err)
	}

	if err := s.store.DeleteActivation(ctx, a.ID); err != nil {
		return nil, apperrors.NewStorage("deleting activation", err)
	}
	count, err := s.store.CountActivations(ctx, l.ID)
	if err != nil {
		return nil, apperrors.NewStorage("counting activations", err)
	}

	s.logger.InfoContext(ctx, "hardware deactivated",
		slog.String("license_id", l.ID.String()),
		slog.String("hardware_id", hardwareID),
	)
	return &DeactivationResult{
		Success:         true,
		Message:         "hardware deactivated",
		ActivationCount: count,
	}, nil
}

// Validate is the gate clients poll on startup. It refreshes LastSeenAt
// on success and never reports business denials as errors.
func (s *licenseService) Validate(ctx context.Context, key, hardwareID string) (*ValidationResult, error) {
	l, err := s.store.GetLicenseByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		s.metrics.RecordValidation(ctx, false)
		return &ValidationResult{Valid: false, Reason: ReasonLicenseNotFound}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorage("loading license", err)
	}

	now := s.now()
	if l.IsExpired(now) {
		s.metrics.RecordValidation(ctx, false)
		return &ValidationResult{Valid: false, Reason: ReasonLicenseExpired}, nil
	}
	if l.Revoked {
		s.metrics.RecordValidation(ctx, false)
		return &ValidationResult{Valid: false, Reason: ReasonLicenseRevoked}, nil
	}

	a, err := s.store.GetActivationByHardware(ctx, l.ID, hardwareID)
	if errors.Is(err, store.ErrNotFound) {
		s.metrics.RecordValidation(ctx, false)
		return &ValidationResult{Valid: false, Reason: ReasonHardwareNotActivated}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorage("loading activation", err)
	}

	a.TouchLastSeen(now)
	if err := s.store.UpdateActivation(ctx, a); err != nil {
		return nil, apperrors.NewStorage("refreshing activation", err)
	}

	s.metrics.RecordValidation(ctx, true)
	return &ValidationResult{Valid: true, Reason: ReasonValid}, nil
}

// Revoke flips the license to revoked. It reports whether the state
// changed; revoking twice is not an error.
func (s *licenseService) Revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.setRevoked(ctx, id, true)
}

// Reinstate lifts a revocation. Activation records survive revocation, so
// previously activated devices validate again immediately.
func (s *licenseService) Reinstate(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.setRevoked(ctx, id, false)
}

func (s *licenseService) setRevoked(ctx context.Context, id uuid.UUID, revoked bool) (bool, error) {
	l, err := s.getLicense(ctx, id)
	if err != nil {
		return false, err
	}

	unlock := s.locks.Lock(l.LicenseKey)
	defer unlock()

	l, err = s.getLicense(ctx, id)
	if err != nil {
		return false, err
	}
	if l.Revoked == revoked {
		return false, nil
	}

	l.Revoked = revoked
	l.UpdatedAt = s.now()
	if err := s.store.UpdateLicense(ctx, l); err != nil {
		return false, apperrors.NewStorage("updating license", err)
	}

	s.logger.InfoContext(ctx, "license revocation changed",
		slog.String("license_id", id.String()),
		slog.Bool("revoked", revoked),
	)
	return true, nil
}

// Update applies a partial update; nil fields are left unchanged. Setting
// ClearExpiresAt turns the license perpetual. Lowering max_activations
// below the current activation count is accepted; existing activations
// survive and the quota bites on the next new device.
func (s *licenseService) Update(ctx context.Context, id uuid.UUID, req UpdateLicenseRequest) (*LicenseDTO, error) {
	if req.MaxActivations != nil && *req.MaxActivations < 1 {
		return nil, apperrors.NewValidation("max_activations must be at least 1").
			WithContext("max_activations", *req.MaxActivations)
	}
	if req.ExpiresAt != nil && req.ClearExpiresAt {
		return nil, apperrors.NewValidation("expires_at and clear_expires_at are mutually exclusive")
	}

	l, err := s.getLicense(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(l.LicenseKey)
	defer unlock()

	l, err = s.getLicense(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CustomerID != nil {
		l.CustomerID = *req.CustomerID
	}
	if req.ClearExpiresAt {
		l.ExpiresAt = nil
	} else if req.ExpiresAt != nil {
		l.ExpiresAt = req.ExpiresAt
	}
	if req.MaxActivations != nil {
		l.MaxActivations = *req.MaxActivations
	}
	if req.Revoked != nil {
		l.Revoked = *req.Revoked
	}
	l.UpdatedAt = s.now()

	if err := s.store.UpdateLicense(ctx, l); err != nil {
		return nil, apperrors.NewStorage("updating license", err)
	}
	s.logger.InfoContext(ctx, "license updated", slog.String("license_id", id.String()))
	return s.toDTO(ctx, l, true)
}

// Delete removes the license and all its activations.
func (s *licenseService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.DeleteLicense(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFound("license not found")
	}
	if err != nil {
		return apperrors.NewStorage("deleting license", err)
	}
	s.logger.InfoContext(ctx, "license deleted", slog.String("license_id", id.String()))
	return nil
}

func (s *licenseService) getLicense(ctx context.Context, id uuid.UUID) (*domain.License, error) {
	l, err := s.store.GetLicense(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewNotFound("license not found").
			WithContext("license_id", id.String())
	}
	if err != nil {
		return nil, apperrors.NewStorage("loading license", err)
	}
	return l, nil
}

func (s *licenseService) denyActivation(ctx context.Context, l *domain.License, code ReasonCode, msg string) (*ActivationResult, error) {
	count, err := s.store.CountActivations(ctx, l.ID)
	if err != nil {
		return nil, apperrors.NewStorage("counting activations", err)
	}
	return &ActivationResult{
		Success:         false,
		ErrorCode:       code,
		Message:         msg,
		ActivationCount: count,
		MaxActivations:  l.MaxActivations,
	}, nil
}

func (s *licenseService) toDTO(ctx context.Context, l *domain.License, includeHardware bool) (*LicenseDTO, error) {
	count, err := s.store.CountActivations(ctx, l.ID)
	if err != nil {
		return nil, apperrors.NewStorage("counting activations", err)
	}

	dto := &LicenseDTO{
		ID:              l.ID,
		LicenseKey:      l.LicenseKey,
		AppID:           l.AppID,
		CustomerID:      l.CustomerID,
		ExpiresAt:       l.ExpiresAt,
		MaxActivations:  l.MaxActivations,
		Revoked:         l.Revoked,
		Expired:         l.IsExpired(s.now()),
		ActivationCount: count,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}

	if includeHardware {
		activations, err := s.store.ListActivationsByLicense(ctx, l.ID, store.Page{})
		if err != nil {
			return nil, apperrors.NewStorage("listing activations", err)
		}
		dto.HardwareIDs = make([]string, 0, len(activations))
		for _, a := range activations {
			dto.HardwareIDs = append(dto.HardwareIDs, a.HardwareID)
		}
	}
	return dto, nil
}

func (s *licenseService) toDTOs(ctx context.Context, ls []*domain.License) ([]*LicenseDTO, error) {
	out := make([]*LicenseDTO, 0, len(ls))
	for _, l := range ls {
		dto, err := s.toDTO(ctx, l, false)
		if err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, nil
}

func activationToDTO(a *domain.Activation) *ActivationDTO {
	return &ActivationDTO{
		ID:          a.ID,
		LicenseID:   a.LicenseID,
		HardwareID:  a.HardwareID,
		ActivatedAt: a.ActivatedAt,
		LastSeenAt:  a.LastSeenAt,
	}
}
