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

type emailMessageRepository struct {
	db *gorm.DB
}

func NewEmailMessageRepository(db *gorm.DB) interfaces.EmailMessageRepository {
	return &emailMessageRepository{db: db}
}

func (r *emailMessageRepository) GetByID(ctx context.Context, id string) (*models.EmailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	var message models.EmailMessage
	err := r.db.WithContext(ctx).
		Preload("Labels").
		Where("id = ?", id).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get email message: %w", err)
	}
	return &message, nil
}

func (r *emailMessageRepository) GetByMessageID(ctx context.Context, accountID, messageID string) (*models.EmailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.GetByMessageID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.SetTag("message_id", messageID)

	var message models.EmailMessage
	err := r.db.WithContext(ctx).
		Preload("Labels").
		Where("account_id = ? AND message_id = ?", accountID, messageID).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get email message: %w", err)
	}
	return &message, nil
}

func (r *emailMessageRepository) ListMessageIDs(ctx context.Context, accountID string) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.ListMessageIDs")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.EmailMessage{}).
		Where("account_id = ?", accountID).
		Pluck("message_id", &ids).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list message ids: %w", err)
	}
	return ids, nil
}

var messageUpsertColumns = []string{
	"thread_id", "sent_date", "read", "subject", "snippet", "body_html", "body_text", "draft_id", "is_removed", "updated_at",
}

func (r *emailMessageRepository) Save(ctx context.Context, message *models.EmailMessage, labels []*models.EmailLabel, headers []models.EmailHeader, replaceHeaders bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.Save")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if message == nil || message.AccountID == "" || message.MessageID == "" {
		tracing.TraceErr(span, ErrInvalidInput)
		return ErrInvalidInput
	}
	tracing.TagAccount(span, message.AccountID)
	span.SetTag("message_id", message.MessageID)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		message.Labels = nil
		message.Headers = nil
		if message.ID == "" {
			// a row inserted concurrently under the same key turns into an update
			err := tx.Omit(clause.Associations).
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "account_id"}, {Name: "message_id"}},
					DoUpdates: clause.AssignmentColumns(messageUpsertColumns),
				}).
				Create(message).Error
			if err != nil {
				return err
			}
			// on conflict the stored row keeps its own id
			var stored models.EmailMessage
			err = tx.Select("id", "created_at").
				Where("account_id = ? AND message_id = ?", message.AccountID, message.MessageID).
				First(&stored).Error
			if err != nil {
				return err
			}
			message.ID = stored.ID
			message.CreatedAt = stored.CreatedAt
		} else if err := tx.Omit(clause.Associations).Save(message).Error; err != nil {
			return err
		}

		association := tx.Model(message).Association("Labels")
		if len(labels) == 0 {
			if err := association.Clear(); err != nil {
				return err
			}
		} else if err := association.Replace(labels); err != nil {
			return err
		}
		message.Labels = labels

		if replaceHeaders {
			if err := tx.Where("email_message_id = ?", message.ID).Delete(&models.EmailHeader{}).Error; err != nil {
				return err
			}
			for i := range headers {
				headers[i].ID = 0
				headers[i].EmailMessageID = message.ID
				headers[i].Position = i
			}
			if len(headers) > 0 {
				if err := tx.Create(&headers).Error; err != nil {
					return err
				}
			}
			message.Headers = headers
		}
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to save email message: %w", err)
	}
	return nil
}

func (r *emailMessageRepository) SetRemoved(ctx context.Context, id string, removed bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.SetRemoved")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	err := r.db.WithContext(ctx).
		Model(&models.EmailMessage{}).
		Where("id = ?", id).
		Update("is_removed", removed).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to update removed flag: %w", err)
	}
	return nil
}

func (r *emailMessageRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.Delete")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	err := r.db.WithContext(ctx).
		Select(clause.Associations).
		Delete(&models.EmailMessage{ID: id}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to delete email message: %w", err)
	}
	return nil
}

func (r *emailMessageRepository) DeleteByMessageID(ctx context.Context, accountID, messageID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailMessageRepository.DeleteByMessageID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.SetTag("message_id", messageID)

	var message models.EmailMessage
	err := r.db.WithContext(ctx).
		Select("id").
		Where("account_id = ? AND message_id = ?", accountID, messageID).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to find email message: %w", err)
	}

	return r.Delete(ctx, message.ID)
}
