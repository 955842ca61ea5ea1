package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/utils"
)

type EmailOutboxMessage struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID string `gorm:"column:account_id;type:varchar(50);index;not null"`

	FromName string         `gorm:"column:from_name;type:varchar(255)"`
	To       pq.StringArray `gorm:"column:to_addresses;type:text[]"`
	Cc       pq.StringArray `gorm:"column:cc_addresses;type:text[]"`
	Bcc      pq.StringArray `gorm:"column:bcc_addresses;type:text[]"`
	Subject  string         `gorm:"column:subject;type:text"`
	BodyHTML string         `gorm:"column:body_html;type:text"`
	BodyText string         `gorm:"column:body_text;type:text"`

	// local EmailMessage this outbox message replies to or forwards
	ReplyToMessageID string `gorm:"column:reply_to_message_id;type:varchar(50)"`
	InReplyTo        string `gorm:"column:in_reply_to;type:varchar(255)"`
	References       string `gorm:"column:references_header;type:text"`

	// local EmailMessage holding the remote draft, when one was created
	DraftMessageID string `gorm:"column:draft_message_id;type:varchar(50)"`

	Attachments []EmailOutboxAttachment `gorm:"foreignKey:OutboxMessageID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (EmailOutboxMessage) TableName() string {
	return "email_outbox_messages"
}

func (m *EmailOutboxMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("eout", 16)
	}
	return nil
}

type EmailOutboxAttachment struct {
	ID              string `gorm:"column:id;type:varchar(50);primaryKey"`
	OutboxMessageID string `gorm:"column:outbox_message_id;type:varchar(50);index;not null"`
	FileName        string `gorm:"column:file_name;type:varchar(255)"`
	ContentType     string `gorm:"column:content_type;type:varchar(255)"`
	StorageKey      string `gorm:"column:storage_key;type:varchar(1024);not null"`
	Inline          bool   `gorm:"column:inline;type:boolean;default:false"`
	ContentID       string `gorm:"column:content_id;type:varchar(255)"`
}

func (EmailOutboxAttachment) TableName() string {
	return "email_outbox_attachments"
}

func (a *EmailOutboxAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("eatt", 16)
	}
	return nil
}
