package models

import "time"

type SyncLock struct {
	Key        string    `gorm:"column:key;type:varchar(255);primaryKey"`
	Owner      string    `gorm:"column:owner;type:varchar(64);not null"`
	AcquiredAt time.Time `gorm:"column:acquired_at;type:timestamp;not null"`
	ExpiresAt  time.Time `gorm:"column:expires_at;type:timestamp;not null;index"`
}

func (SyncLock) TableName() string {
	return "sync_locks"
}
