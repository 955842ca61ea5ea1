package interfaces

import (
	"context"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
)

type EmailLabelRepository interface {
	Get(ctx context.Context, accountID, labelID string, labelType enum.LabelType) (*models.EmailLabel, error)
	// GetByLabelID looks a label up by remote id regardless of its type.
	GetByLabelID(ctx context.Context, accountID, labelID string) (*models.EmailLabel, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.EmailLabel, error)
	Save(ctx context.Context, label *models.EmailLabel) error
	RecomputeUnreadCounts(ctx context.Context, accountID string) error
}
