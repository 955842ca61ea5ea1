package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/repository/inmemory"
	"github.com/customeros/mailsync/services/gmail/composer"
	"github.com/customeros/mailsync/services/gmail/gmailtest"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishSyncEmailAccount(ctx context.Context, event dto.SyncEmailAccount) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) PublishFirstSyncEmailAccount(ctx context.Context, event dto.FirstSyncEmailAccount) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) PublishMessageAction(ctx context.Context, entityId string, action interface{}) error {
	return m.Called(ctx, entityId, action).Error(0)
}

func (m *mockPublisher) Close() error {
	return nil
}

func (m *mockPublisher) syncEvents() []dto.SyncEmailAccount {
	var events []dto.SyncEmailAccount
	for _, call := range m.Calls {
		if call.Method == "PublishSyncEmailAccount" {
			events = append(events, call.Arguments.Get(1).(dto.SyncEmailAccount))
		}
	}
	return events
}

func (m *mockPublisher) firstSyncEvents() []dto.FirstSyncEmailAccount {
	var events []dto.FirstSyncEmailAccount
	for _, call := range m.Calls {
		if call.Method == "PublishFirstSyncEmailAccount" {
			events = append(events, call.Arguments.Get(1).(dto.FirstSyncEmailAccount))
		}
	}
	return events
}

type testEnv struct {
	ctx       context.Context
	store     *inmemory.Store
	repos     *repository.Repositories
	mailbox   *gmailtest.Mailbox
	factory   *gmailtest.ConnectorFactory
	publisher *mockPublisher
	cfg       *config.GmailSyncConfig
	service   *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := inmemory.NewStore()
	repos := store.Repositories()

	mailbox := gmailtest.NewMailbox()
	for _, id := range []string{"INBOX", "UNREAD", "SENT", "TRASH", "DRAFT"} {
		mailbox.AddLabel(id, id, "system")
	}
	factory := &gmailtest.ConnectorFactory{Mailbox: mailbox}

	publisher := &mockPublisher{}
	publisher.On("PublishSyncEmailAccount", mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishFirstSyncEmailAccount", mock.Anything, mock.Anything).Return(nil)

	cfg := config.DefaultGmailSyncConfig()
	cfg.SyncDelayInterval = 2 * time.Second

	log := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	log.InitLogger()

	return &testEnv{
		ctx:       context.Background(),
		store:     store,
		repos:     repos,
		mailbox:   mailbox,
		factory:   factory,
		publisher: publisher,
		cfg:       cfg,
		service:   NewService(repos, factory, composer.NewComposer(nil, log), publisher, cfg, log),
	}
}

func (e *testEnv) createAccount(t *testing.T, authorized bool, historyID *uint64) *models.EmailAccount {
	t.Helper()
	account := &models.EmailAccount{
		Tenant:       "tenant",
		EmailAddress: "me@example.com",
		IsAuthorized: authorized,
		HistoryID:    historyID,
	}
	require.NoError(t, e.repos.EmailAccountRepository.Create(e.ctx, account))
	return account
}

func (e *testEnv) account(t *testing.T, id string) *models.EmailAccount {
	t.Helper()
	account, err := e.repos.EmailAccountRepository.GetByID(e.ctx, id)
	require.NoError(t, err)
	return account
}

func (e *testEnv) lockSet(t *testing.T, key string) bool {
	t.Helper()
	set, err := e.repos.SyncLockRepository.IsSet(e.ctx, key)
	require.NoError(t, err)
	return set
}

func (e *testEnv) message(t *testing.T, accountID, messageID string) *models.EmailMessage {
	t.Helper()
	msg, err := e.repos.EmailMessageRepository.GetByMessageID(e.ctx, accountID, messageID)
	require.NoError(t, err)
	return msg
}
