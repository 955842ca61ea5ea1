package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type EmailOutboxRepository interface {
	Create(ctx context.Context, message *models.EmailOutboxMessage) error
	GetByID(ctx context.Context, id string) (*models.EmailOutboxMessage, error)
	Delete(ctx context.Context, id string) error
}
