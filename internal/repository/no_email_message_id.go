package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type noEmailMessageIDRepository struct {
	db *gorm.DB
}

func NewNoEmailMessageIDRepository(db *gorm.DB) interfaces.NoEmailMessageIDRepository {
	return &noEmailMessageIDRepository{db: db}
}

func (r *noEmailMessageIDRepository) ListMessageIDs(ctx context.Context, accountID string) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "noEmailMessageIDRepository.ListMessageIDs")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.NoEmailMessageID{}).
		Where("account_id = ?", accountID).
		Pluck("message_id", &ids).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list non-message ids: %w", err)
	}
	return ids, nil
}

func (r *noEmailMessageIDRepository) Create(ctx context.Context, accountID, messageID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "noEmailMessageIDRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	record := models.NoEmailMessageID{AccountID: accountID, MessageID: messageID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create non-message id: %w", err)
	}
	return nil
}
