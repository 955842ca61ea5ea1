package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type syncLockRepository struct {
	db *gorm.DB
}

func NewSyncLockRepository(db *gorm.DB) interfaces.SyncLockRepository {
	return &syncLockRepository{db: db}
}

func (r *syncLockRepository) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncLockRepository.Acquire")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("lock_key", key)

	now := utils.Now()
	var acquired bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a lock left behind by a crashed worker expires
		if err := tx.Where("key = ? AND expires_at < ?", key, now).Delete(&models.SyncLock{}).Error; err != nil {
			return err
		}

		lock := models.SyncLock{
			Key:        key,
			Owner:      owner,
			AcquiredAt: now,
			ExpiresAt:  now.Add(ttl),
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
		if result.Error != nil {
			return result.Error
		}
		acquired = result.RowsAffected == 1
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	span.LogKV("acquired", acquired)
	return acquired, nil
}

func (r *syncLockRepository) Extend(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncLockRepository.Extend")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("lock_key", key)

	result := r.db.WithContext(ctx).
		Model(&models.SyncLock{}).
		Where("key = ? AND owner = ?", key, owner).
		Update("expires_at", utils.Now().Add(ttl))
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, fmt.Errorf("failed to extend lock: %w", result.Error)
	}
	extended := result.RowsAffected == 1
	span.LogKV("extended", extended)
	return extended, nil
}

func (r *syncLockRepository) Release(ctx context.Context, key, owner string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncLockRepository.Release")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("lock_key", key)

	if err := r.db.WithContext(ctx).Where("key = ? AND owner = ?", key, owner).Delete(&models.SyncLock{}).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (r *syncLockRepository) IsSet(ctx context.Context, key string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncLockRepository.IsSet")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("lock_key", key)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SyncLock{}).
		Where("key = ? AND expires_at >= ?", key, utils.Now()).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return false, fmt.Errorf("failed to check lock: %w", err)
	}
	return count > 0, nil
}
