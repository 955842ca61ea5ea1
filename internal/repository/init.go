package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/models"
)

type Repositories struct {
	EmailAccountRepository     interfaces.EmailAccountRepository
	EmailMessageRepository     interfaces.EmailMessageRepository
	EmailLabelRepository       interfaces.EmailLabelRepository
	NoEmailMessageIDRepository interfaces.NoEmailMessageIDRepository
	EmailOutboxRepository      interfaces.EmailOutboxRepository
	SyncLockRepository         interfaces.SyncLockRepository
}

func InitRepositories(mailsyncDB *gorm.DB) *Repositories {
	return &Repositories{
		EmailAccountRepository:     NewEmailAccountRepository(mailsyncDB),
		EmailMessageRepository:     NewEmailMessageRepository(mailsyncDB),
		EmailLabelRepository:       NewEmailLabelRepository(mailsyncDB),
		NoEmailMessageIDRepository: NewNoEmailMessageIDRepository(mailsyncDB),
		EmailOutboxRepository:      NewEmailOutboxRepository(mailsyncDB),
		SyncLockRepository:         NewSyncLockRepository(mailsyncDB),
	}
}

func MigrateMailsyncDB(dbConfig *config.MailsyncDatabaseConfig, mailsyncDB *gorm.DB) error {
	db, err := mailsyncDB.DB()
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(5)

	err = mailsyncDB.AutoMigrate(
		&models.EmailAccount{},
		&models.EmailLabel{},
		&models.EmailMessage{},
		&models.EmailHeader{},
		&models.NoEmailMessageID{},
		&models.EmailOutboxMessage{},
		&models.EmailOutboxAttachment{},
		&models.SyncLock{},
	)

	db.SetMaxIdleConns(dbConfig.MaxIdleConn)
	db.SetMaxOpenConns(dbConfig.MaxConn)
	db.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}
