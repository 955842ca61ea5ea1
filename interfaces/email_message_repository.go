package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type EmailMessageRepository interface {
	GetByID(ctx context.Context, id string) (*models.EmailMessage, error)
	GetByMessageID(ctx context.Context, accountID, messageID string) (*models.EmailMessage, error)
	ListMessageIDs(ctx context.Context, accountID string) ([]string, error)
	// Save upserts the message on (account, message id) and replaces its label set.
	// Headers are replaced only when replaceHeaders is set.
	Save(ctx context.Context, message *models.EmailMessage, labels []*models.EmailLabel, headers []models.EmailHeader, replaceHeaders bool) error
	SetRemoved(ctx context.Context, id string, removed bool) error
	Delete(ctx context.Context, id string) error
	DeleteByMessageID(ctx context.Context, accountID, messageID string) error
}
