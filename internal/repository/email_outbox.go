package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type emailOutboxRepository struct {
	db *gorm.DB
}

func NewEmailOutboxRepository(db *gorm.DB) interfaces.EmailOutboxRepository {
	return &emailOutboxRepository{db: db}
}

func (r *emailOutboxRepository) Create(ctx context.Context, message *models.EmailOutboxMessage) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailOutboxRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if message == nil {
		err := errors.New("outbox message cannot be nil")
		tracing.TraceErr(span, err)
		return err
	}

	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

func (r *emailOutboxRepository) GetByID(ctx context.Context, id string) (*models.EmailOutboxMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailOutboxRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	var message models.EmailOutboxMessage
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("id = ?", id).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get outbox message: %w", err)
	}
	return &message, nil
}

func (r *emailOutboxRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailOutboxRepository.Delete")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	err := r.db.WithContext(ctx).
		Select(clause.Associations).
		Delete(&models.EmailOutboxMessage{ID: id}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to delete outbox message: %w", err)
	}
	return nil
}
