package interfaces

import "context"

type NoEmailMessageIDRepository interface {
	ListMessageIDs(ctx context.Context, accountID string) ([]string, error)
	Create(ctx context.Context, accountID, messageID string) error
}
