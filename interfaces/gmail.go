package interfaces

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/models"
)

// GmailConnector is the mailbox transport for a single account.
type GmailConnector interface {
	ListMessageIDs(ctx context.Context, pageToken string) (*dto.MessageIDPage, error)
	// GetProfileHistoryID returns the current mailbox cursor.
	GetProfileHistoryID(ctx context.Context) (uint64, error)
	// GetMessageInfo returns ErrMessageNotFound when the message no longer exists remotely.
	GetMessageInfo(ctx context.Context, messageID string) (*dto.MessageFullInfo, error)
	// GetMessageListInfo fetches full info for a batch, ids missing remotely are absent from the result.
	GetMessageListInfo(ctx context.Context, messageIDs []string) (map[string]*dto.MessageFullInfo, error)
	// GetLabelListInfo fetches current label sets for a batch, ids missing remotely are absent from the result.
	GetLabelListInfo(ctx context.Context, messageIDs []string) (map[string]*dto.MessageLabelUpdate, error)
	GetLabelsFromMessage(ctx context.Context, messageID string) ([]string, error)
	ListLabels(ctx context.Context) ([]*dto.LabelPayload, error)
	GetLabelInfo(ctx context.Context, labelID string) (*dto.LabelPayload, error)
	// ListHistory returns ErrHistoryExpired when startHistoryID is too old.
	ListHistory(ctx context.Context, startHistoryID uint64, pageToken string) (*dto.HistoryPage, error)
	UpdateLabels(ctx context.Context, messageID string, modification dto.LabelModification) (*dto.MessageIdentifier, error)
	SendMessage(ctx context.Context, raw []byte, threadID string) (*dto.MessageIdentifier, error)
	CreateDraft(ctx context.Context, raw []byte) (*dto.DraftResult, error)
	UpdateDraft(ctx context.Context, raw []byte, draftID string) (*dto.DraftResult, error)
	TrashMessage(ctx context.Context, messageID string) (*dto.MessageIdentifier, error)
	DeleteMessage(ctx context.Context, messageID string) error
}

type GmailConnectorFactory interface {
	NewConnector(ctx context.Context, account *models.EmailAccount) (GmailConnector, error)
}

type CredentialsProvider interface {
	// TokenSource returns ErrAuth when the account holds no usable credentials.
	TokenSource(ctx context.Context, account *models.EmailAccount) (oauth2.TokenSource, error)
}
