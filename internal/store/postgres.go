package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"licenseforge/internal/domain"
)

// PostgresStore is the production Store adapter, backed by GORM on
// Postgres. Schema is managed with AutoMigrate; the unique indexes on
// license_key and (license_id, hardware_id) come from the entity tags.
type PostgresStore struct {
	gdb *gorm.DB
	log *slog.Logger
}

// NewPostgresStore connects to the given DSN and migrates the schema.
func NewPostgresStore(dsn string, log *slog.Logger) (*PostgresStore, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := gdb.AutoMigrate(&domain.License{}, &domain.Activation{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("postgres store ready")
	return &PostgresStore{gdb: gdb, log: log}, nil
}

func (s *PostgresStore) CreateLicense(ctx context.Context, l *domain.License) error {
	err := s.gdb.WithContext(ctx).Create(l).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

func (s *PostgresStore) GetLicense(ctx context.Context, id uuid.UUID) (*domain.License, error) {
	var l domain.License
	err := s.gdb.WithContext(ctx).First(&l, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) GetLicenseByKey(ctx context.Context, key string) (*domain.License, error) {
	var l domain.License
	err := s.gdb.WithContext(ctx).First(&l, "license_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) LicenseKeyExists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := s.gdb.WithContext(ctx).
		Model(&domain.License{}).
		Where("license_key = ?", key).
		Count(&n).Error
	return n > 0, err
}

func (s *PostgresStore) ListLicensesByApp(ctx context.Context, appID string, page Page) ([]*domain.License, error) {
	return s.listLicenses(ctx, page, s.gdb.Where("app_id = ?", appID))
}

func (s *PostgresStore) ListLicensesByCustomer(ctx context.Context, customerID string, page Page) ([]*domain.License, error) {
	return s.listLicenses(ctx, page, s.gdb.Where("lower(customer_id) = lower(?)", customerID))
}

func (s *PostgresStore) ListActiveLicensesByApp(ctx context.Context, appID string, now time.Time, page Page) ([]*domain.License, error) {
	return s.listLicenses(ctx, page, s.gdb.
		Where("app_id = ? AND revoked = false", appID).
		Where("expires_at IS NULL OR expires_at > ?", now))
}

func (s *PostgresStore) ListExpiringLicenses(ctx context.Context, appID string, start, end time.Time, page Page) ([]*domain.License, error) {
	return s.listLicenses(ctx, page, s.gdb.
		Where("app_id = ? AND revoked = false", appID).
		Where("expires_at >= ? AND expires_at <= ?", start, end))
}

func (s *PostgresStore) CountActiveLicensesByApp(ctx context.Context, appID string, now time.Time) (int64, error) {
	var n int64
	err := s.gdb.WithContext(ctx).
		Model(&domain.License{}).
		Where("app_id = ? AND revoked = false", appID).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&n).Error
	return n, err
}

func (s *PostgresStore) UpdateLicense(ctx context.Context, l *domain.License) error {
	res := s.gdb.WithContext(ctx).Model(&domain.License{ID: l.ID}).
		Select("customer_id", "expires_at", "max_activations", "revoked", "updated_at").
		Updates(map[string]interface{}{
			"customer_id":     l.CustomerID,
			"expires_at":      l.ExpiresAt,
			"max_activations": l.MaxActivations,
			"revoked":         l.Revoked,
			"updated_at":      l.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteLicense(ctx context.Context, id uuid.UUID) error {
	return s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("license_id = ?", id).Delete(&domain.Activation{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.License{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) CreateActivation(ctx context.Context, a *domain.Activation) error {
	err := s.gdb.WithContext(ctx).Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateActivation
	}
	return err
}

func (s *PostgresStore) GetActivation(ctx context.Context, id uuid.UUID) (*domain.Activation, error) {
	var a domain.Activation
	err := s.gdb.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) GetActivationByHardware(ctx context.Context, licenseID uuid.UUID, hardwareID string) (*domain.Activation, error) {
	var a domain.Activation
	err := s.gdb.WithContext(ctx).
		First(&a, "license_id = ? AND hardware_id = ?", licenseID, hardwareID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) ListActivationsByLicense(ctx context.Context, licenseID uuid.UUID, page Page) ([]*domain.Activation, error) {
	return s.listActivations(ctx, page, s.gdb.Where("license_id = ?", licenseID))
}

func (s *PostgresStore) ListInactiveActivations(ctx context.Context, threshold time.Time, page Page) ([]*domain.Activation, error) {
	return s.listActivations(ctx, page, s.gdb.Where("last_seen_at < ?", threshold))
}

func (s *PostgresStore) CountActivations(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	var n int64
	err := s.gdb.WithContext(ctx).
		Model(&domain.Activation{}).
		Where("license_id = ?", licenseID).
		Count(&n).Error
	return n, err
}

func (s *PostgresStore) UpdateActivation(ctx context.Context, a *domain.Activation) error {
	res := s.gdb.WithContext(ctx).Model(&domain.Activation{ID: a.ID}).
		Update("last_seen_at", a.LastSeenAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteActivation(ctx context.Context, id uuid.UUID) error {
	res := s.gdb.WithContext(ctx).Delete(&domain.Activation{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) listLicenses(ctx context.Context, page Page, q *gorm.DB) ([]*domain.License, error) {
	limit, offset := page.limitOffset()
	var out []*domain.License
	err := q.WithContext(ctx).
		Order("created_at, id").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

func (s *PostgresStore) listActivations(ctx context.Context, page Page, q *gorm.DB) ([]*domain.Activation, error) {
	limit, offset := page.limitOffset()
	var out []*domain.Activation
	err := q.WithContext(ctx).
		Order("activated_at, id").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}
