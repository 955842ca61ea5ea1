package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/utils"
)

// NoEmailMessageID records a remote id that is known not to be an ordinary email (chats and the like).
type NoEmailMessageID struct {
	ID        string    `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID string    `gorm:"column:account_id;type:varchar(50);not null;uniqueIndex:idx_no_email_message_ids_account_message"`
	MessageID string    `gorm:"column:message_id;type:varchar(255);not null;uniqueIndex:idx_no_email_message_ids_account_message"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (NoEmailMessageID) TableName() string {
	return "no_email_message_ids"
}

func (m *NoEmailMessageID) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("nmsg", 12)
	}
	return nil
}
