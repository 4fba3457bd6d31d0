package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "github.com/frontscan/pkg/errors"
)

// GormRepository implements Repository on top of GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a GORM-backed repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// AutoMigrate creates or updates the backing tables.
func (r *GormRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&DetectionRun{}, &LeakRecord{})
}

// SaveRun stores a run and its leak records in one transaction.
func (r *GormRepository) SaveRun(ctx context.Context, run *DetectionRun, leaks []*LeakRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		if len(leaks) > 0 {
			if err := tx.Create(leaks).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save detection run", err)
	}
	return nil
}

// GetRun retrieves a run by its UUID.
func (r *GormRepository) GetRun(ctx context.Context, runUUID string) (*DetectionRun, error) {
	var run DetectionRun
	err := r.db.WithContext(ctx).Where("run_uuid = ?", runUUID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("run %s not found", runUUID), apperrors.ErrNotFound)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to load detection run", err)
	}
	return &run, nil
}

// ListRuns retrieves the most recent runs, newest first.
func (r *GormRepository) ListRuns(ctx context.Context, limit int) ([]*DetectionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []*DetectionRun
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list detection runs", err)
	}
	return runs, nil
}

// GetLeaks retrieves the leak records for a run.
func (r *GormRepository) GetLeaks(ctx context.Context, runUUID string) ([]*LeakRecord, error) {
	var leaks []*LeakRecord
	err := r.db.WithContext(ctx).Where("run_uuid = ?", runUUID).Order("id ASC").Find(&leaks).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to load leak records", err)
	}
	return leaks, nil
}

// UpdateReportKey records the storage key of the uploaded report artifact.
func (r *GormRepository) UpdateReportKey(ctx context.Context, runUUID string, key string) error {
	result := r.db.WithContext(ctx).Model(&DetectionRun{}).
		Where("run_uuid = ?", runUUID).
		Update("report_key", key)
	if result.Error != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to update report key", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("run %s not found", runUUID), apperrors.ErrNotFound)
	}
	return nil
}
