package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/utils"
)

type EmailAccount struct {
	ID           string `gorm:"column:id;type:varchar(50);primaryKey"`
	Tenant       string `gorm:"column:tenant;type:varchar(255);index;not null"`
	EmailAddress string `gorm:"column:email_address;type:varchar(255);index;not null"`
	IsAuthorized bool   `gorm:"column:is_authorized;type:boolean;default:false"`
	IsDeleted    bool   `gorm:"column:is_deleted;type:boolean;default:false"`

	// sync cursor, nil until the first full scan completes
	HistoryID *uint64 `gorm:"column:history_id;type:bigint"`
	// cursor staged by a limited full scan, adopted once the scan completes
	TempHistoryID *uint64 `gorm:"column:temp_history_id;type:bigint"`

	SyncState    enum.SyncState `gorm:"column:sync_state;type:varchar(50);default:'idle'"`
	SyncError    string         `gorm:"column:sync_error;type:text"`
	LastSyncedAt *time.Time     `gorm:"column:last_synced_at;type:timestamp"`

	AccessToken  string     `gorm:"column:access_token;type:text"`
	RefreshToken string     `gorm:"column:refresh_token;type:text"`
	TokenExpiry  *time.Time `gorm:"column:token_expiry;type:timestamp"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (EmailAccount) TableName() string {
	return "email_accounts"
}

func (a *EmailAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	return nil
}

// IsFirstSync reports whether the account still needs a full scan.
func (a *EmailAccount) IsFirstSync() bool {
	return a.HistoryID == nil
}
