package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"licenseforge/internal/domain"
	apperrors "licenseforge/internal/errors"
	"licenseforge/internal/store"
)

// ActivationService exposes activation records for administration and
// reporting. Slot accounting lives in LicenseService; this service never
// creates activations.
type ActivationService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ActivationDTO, error)
	GetByHardware(ctx context.Context, licenseID uuid.UUID, hardwareID string) (*ActivationDTO, error)
	ListByLicense(ctx context.Context, licenseID uuid.UUID, page store.Page) ([]*ActivationDTO, error)
	ListInactive(ctx context.Context, threshold time.Time, page store.Page) ([]*ActivationDTO, error)
	Count(ctx context.Context, licenseID uuid.UUID) (int64, error)
	Heartbeat(ctx context.Context, id uuid.UUID) (*ActivationDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type activationService struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewActivationService(s store.Store, logger *slog.Logger) ActivationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &activationService{
		store:  s,
		logger: logger.With(slog.String("service", "activation")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *activationService) GetByID(ctx context.Context, id uuid.UUID) (*ActivationDTO, error) {
	a, err := s.store.GetActivation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewNotFound("activation not found").
			WithContext("activation_id", id.String())
	}
	if err != nil {
		return nil, apperrors.NewStorage("loading activation", err)
	}
	return activationToDTO(a), nil
}

func (s *activationService) GetByHardware(ctx context.Context, licenseID uuid.UUID, hardwareID string) (*ActivationDTO, error) {
	a, err := s.store.GetActivationByHardware(ctx, licenseID, hardwareID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewNotFound("activation not found").
			WithContext("license_id", licenseID.String()).
			WithContext("hardware_id", hardwareID)
	}
	if err != nil {
		return nil, apperrors.NewStorage("loading activation", err)
	}
	return activationToDTO(a), nil
}

func (s *activationService) ListByLicense(ctx context.Context, licenseID uuid.UUID, page store.Page) ([]*ActivationDTO, error) {
	as, err := s.store.ListActivationsByLicense(ctx, licenseID, page)
	if err != nil {
		return nil, apperrors.NewStorage("listing activations", err)
	}
	return activationsToDTOs(as), nil
}

// ListInactive reports activations whose device has not been seen since
// threshold. Reporting only; nothing is evicted automatically.
func (s *activationService) ListInactive(ctx context.Context, threshold time.Time, page store.Page) ([]*ActivationDTO, error) {
	as, err := s.store.ListInactiveActivations(ctx, threshold, page)
	if err != nil {
		return nil, apperrors.NewStorage("listing inactive activations", err)
	}
	return activationsToDTOs(as), nil
}

func (s *activationService) Count(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	n, err := s.store.CountActivations(ctx, licenseID)
	if err != nil {
		return 0, apperrors.NewStorage("counting activations", err)
	}
	return n, nil
}

// Heartbeat refreshes LastSeenAt without going through key validation,
// for clients that identify by activation id.
func (s *activationService) Heartbeat(ctx context.Context, id uuid.UUID) (*ActivationDTO, error) {
	a, err := s.store.GetActivation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewNotFound("activation not found").
			WithContext("activation_id", id.String())
	}
	if err != nil {
		return nil, apperrors.NewStorage("loading activation", err)
	}

	a.TouchLastSeen(s.now())
	if err := s.store.UpdateActivation(ctx, a); err != nil {
		return nil, apperrors.NewStorage("refreshing activation", err)
	}
	return activationToDTO(a), nil
}

// Delete force-releases a slot, an admin override for lost devices.
func (s *activationService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.DeleteActivation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFound("activation not found").
			WithContext("activation_id", id.String())
	}
	if err != nil {
		return apperrors.NewStorage("deleting activation", err)
	}
	s.logger.InfoContext(ctx, "activation deleted", slog.String("activation_id", id.String()))
	return nil
}

func activationsToDTOs(as []*domain.Activation) []*ActivationDTO {
	out := make([]*ActivationDTO, 0, len(as))
	for _, a := range as {
		out = append(out, activationToDTO(a))
	}
	return out
}
