package interfaces

import (
	"context"

	"github.com/customeros/mailsync/dto"
)

type EventPublisher interface {
	PublishSyncEmailAccount(ctx context.Context, event dto.SyncEmailAccount) error
	PublishFirstSyncEmailAccount(ctx context.Context, event dto.FirstSyncEmailAccount) error
	PublishMessageAction(ctx context.Context, entityId string, action interface{}) error
	Close() error
}

type EventListener interface {
	Handle(ctx context.Context, event any) error
	GetEventType() string
	GetQueueName() string
}

type EventSubscriber interface {
	RegisterListener(listener EventListener)
	ListenQueue(queueName string) error
	ListenQueueExclusive(queueName string) error
	Close() error
}
