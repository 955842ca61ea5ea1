package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type emailAccountRepository struct {
	db *gorm.DB
}

func NewEmailAccountRepository(db *gorm.DB) interfaces.EmailAccountRepository {
	return &emailAccountRepository{db: db}
}

func (r *emailAccountRepository) Create(ctx context.Context, account *models.EmailAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if account == nil {
		err := errors.New("email account cannot be nil")
		tracing.TraceErr(span, err)
		return err
	}

	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create email account: %w", err)
	}
	return nil
}

func (r *emailAccountRepository) GetByID(ctx context.Context, id string) (*models.EmailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, id)

	var account models.EmailAccount
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get email account: %w", err)
	}
	return &account, nil
}

// ListSyncable returns every authorized, non-deleted account.
func (r *emailAccountRepository) ListSyncable(ctx context.Context) ([]*models.EmailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.ListSyncable")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var accounts []*models.EmailAccount
	err := r.db.WithContext(ctx).
		Where("is_authorized = ? AND is_deleted = ?", true, false).
		Order("created_at ASC").
		Find(&accounts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list syncable email accounts: %w", err)
	}
	span.LogKV("accounts", len(accounts))
	return accounts, nil
}

func (r *emailAccountRepository) UpdateHistoryIDs(ctx context.Context, accountID string, historyID, tempHistoryID *uint64) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.UpdateHistoryIDs")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	err := r.db.WithContext(ctx).
		Model(&models.EmailAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"history_id":      historyID,
			"temp_history_id": tempHistoryID,
			"updated_at":      utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to update history ids: %w", err)
	}
	return nil
}

func (r *emailAccountRepository) UpdateSyncState(ctx context.Context, accountID string, state enum.SyncState, syncError string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.UpdateSyncState")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.LogKV("state", state.String())

	updates := map[string]interface{}{
		"sync_state": state,
		"sync_error": syncError,
		"updated_at": utils.Now(),
	}
	if state != enum.SyncStateSyncing {
		updates["last_synced_at"] = utils.Now()
	}

	err := r.db.WithContext(ctx).
		Model(&models.EmailAccount{}).
		Where("id = ?", accountID).
		Updates(updates).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	return nil
}

func (r *emailAccountRepository) SetAuthorized(ctx context.Context, accountID string, authorized bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.SetAuthorized")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	err := r.db.WithContext(ctx).
		Model(&models.EmailAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"is_authorized": authorized,
			"updated_at":    utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to update authorization: %w", err)
	}
	return nil
}

func (r *emailAccountRepository) UpdateToken(ctx context.Context, accountID, accessToken, refreshToken string, expiry time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.UpdateToken")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	updates := map[string]interface{}{
		"access_token": accessToken,
		"token_expiry": expiry,
		"updated_at":   utils.Now(),
	}
	// google only returns a refresh token on the first exchange
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}

	err := r.db.WithContext(ctx).
		Model(&models.EmailAccount{}).
		Where("id = ?", accountID).
		Updates(updates).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to update token: %w", err)
	}
	return nil
}
