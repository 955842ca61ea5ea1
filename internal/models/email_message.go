package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/utils"
)

type EmailMessage struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID string `gorm:"column:account_id;type:varchar(50);not null;uniqueIndex:idx_email_messages_account_message"`
	MessageID string `gorm:"column:message_id;type:varchar(255);not null;uniqueIndex:idx_email_messages_account_message"`
	ThreadID  string `gorm:"column:thread_id;type:varchar(255);index"`

	SentDate *time.Time `gorm:"column:sent_date;type:timestamp"`
	Read     bool       `gorm:"column:read;type:boolean;default:false"`
	Subject  string     `gorm:"column:subject;type:text"`
	Snippet  string     `gorm:"column:snippet;type:text"`
	BodyHTML string     `gorm:"column:body_html;type:text"`
	BodyText string     `gorm:"column:body_text;type:text"`

	DraftID   string `gorm:"column:draft_id;type:varchar(255)"`
	IsRemoved bool   `gorm:"column:is_removed;type:boolean;default:false"`

	Labels  []*EmailLabel `gorm:"many2many:email_message_labels;"`
	Headers []EmailHeader `gorm:"foreignKey:EmailMessageID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (EmailMessage) TableName() string {
	return "email_messages"
}

func (m *EmailMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("emsg", 16)
	}
	return nil
}

func (m *EmailMessage) HasLabel(labelID string) bool {
	for _, label := range m.Labels {
		if label != nil && label.LabelID == labelID {
			return true
		}
	}
	return false
}

func (m *EmailMessage) LabelIDs() []string {
	ids := make([]string, 0, len(m.Labels))
	for _, label := range m.Labels {
		if label != nil {
			ids = append(ids, label.LabelID)
		}
	}
	return ids
}

type EmailHeader struct {
	ID             uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	EmailMessageID string `gorm:"column:email_message_id;type:varchar(50);index;not null"`
	Position       int    `gorm:"column:position;type:integer;not null"`
	Name           string `gorm:"column:name;type:varchar(255);not null"`
	Value          string `gorm:"column:value;type:text"`
}

func (EmailHeader) TableName() string {
	return "email_headers"
}
