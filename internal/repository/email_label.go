package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type emailLabelRepository struct {
	db *gorm.DB
}

func NewEmailLabelRepository(db *gorm.DB) interfaces.EmailLabelRepository {
	return &emailLabelRepository{db: db}
}

func (r *emailLabelRepository) Get(ctx context.Context, accountID, labelID string, labelType enum.LabelType) (*models.EmailLabel, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailLabelRepository.Get")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.SetTag("label_id", labelID)

	var label models.EmailLabel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND label_id = ? AND label_type = ?", accountID, labelID, labelType).
		First(&label).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get email label: %w", err)
	}
	return &label, nil
}

func (r *emailLabelRepository) GetByLabelID(ctx context.Context, accountID, labelID string) (*models.EmailLabel, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailLabelRepository.GetByLabelID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.SetTag("label_id", labelID)

	var label models.EmailLabel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND label_id = ?", accountID, labelID).
		Order("created_at ASC").
		First(&label).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get email label: %w", err)
	}
	return &label, nil
}

func (r *emailLabelRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.EmailLabel, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailLabelRepository.ListByAccount")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	var labels []*models.EmailLabel
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("name ASC").
		Find(&labels).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list email labels: %w", err)
	}
	return labels, nil
}

func (r *emailLabelRepository) Save(ctx context.Context, label *models.EmailLabel) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailLabelRepository.Save")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if label == nil || label.AccountID == "" || label.LabelID == "" {
		tracing.TraceErr(span, ErrInvalidInput)
		return ErrInvalidInput
	}

	if err := r.db.WithContext(ctx).Save(label).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to save email label: %w", err)
	}
	return nil
}

// RecomputeUnreadCounts sets every label's unread count to the number of unread messages carrying it.
func (r *emailLabelRepository) RecomputeUnreadCounts(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailLabelRepository.RecomputeUnreadCounts")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	err := r.db.WithContext(ctx).Exec(`
		UPDATE email_labels AS l
		SET unread = (
			SELECT COUNT(*)
			FROM email_message_labels ml
			JOIN email_messages m ON m.id = ml.email_message_id
			WHERE ml.email_label_id = l.id AND m.read = false
		), updated_at = NOW()
		WHERE l.account_id = ?`, accountID).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to recompute unread counts: %w", err)
	}
	return nil
}
