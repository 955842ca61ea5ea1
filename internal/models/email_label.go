package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/utils"
)

type EmailLabel struct {
	ID        string         `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID string         `gorm:"column:account_id;type:varchar(50);not null;uniqueIndex:idx_email_labels_account_label_type"`
	LabelID   string         `gorm:"column:label_id;type:varchar(255);not null;uniqueIndex:idx_email_labels_account_label_type"`
	LabelType enum.LabelType `gorm:"column:label_type;type:varchar(20);not null;uniqueIndex:idx_email_labels_account_label_type"`
	Name      string         `gorm:"column:name;type:varchar(255)"`
	// derived, see EmailLabelRepository.RecomputeUnreadCounts
	Unread int `gorm:"column:unread;type:integer;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (EmailLabel) TableName() string {
	return "email_labels"
}

func (l *EmailLabel) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = utils.GenerateNanoIDWithPrefix("elbl", 16)
	}
	return nil
}
