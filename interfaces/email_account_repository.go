package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

type EmailAccountRepository interface {
	Create(ctx context.Context, account *models.EmailAccount) error
	GetByID(ctx context.Context, id string) (*models.EmailAccount, error)
	ListSyncable(ctx context.Context) ([]*models.EmailAccount, error)
	UpdateHistoryIDs(ctx context.Context, accountID string, historyID, tempHistoryID *uint64) error
	UpdateSyncState(ctx context.Context, accountID string, state enum.SyncState, syncError string) error
	SetAuthorized(ctx context.Context, accountID string, authorized bool) error
	UpdateToken(ctx context.Context, accountID, accessToken, refreshToken string, expiry time.Time) error
}
