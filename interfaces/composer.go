package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/models"
)

type MessageComposer interface {
	// Compose renders the outbox message as raw RFC 5322 bytes.
	Compose(ctx context.Context, account *models.EmailAccount, outbox *models.EmailOutboxMessage) ([]byte, error)
}
