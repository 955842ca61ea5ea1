package manager

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/enum"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/repository/inmemory"
	"github.com/customeros/mailsync/internal/utils"
	"github.com/customeros/mailsync/services/gmail/composer"
	"github.com/customeros/mailsync/services/gmail/gmailtest"
)

type testEnv struct {
	ctx     context.Context
	store   *inmemory.Store
	repos   *repository.Repositories
	mailbox *gmailtest.Mailbox
	cfg     *config.GmailSyncConfig
	log     logger.Logger
	account *models.EmailAccount
}

func newTestEnv(t *testing.T, historyID *uint64) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := inmemory.NewStore()
	repos := store.Repositories()

	account := &models.EmailAccount{
		Tenant:       "tenant",
		EmailAddress: "me@example.com",
		IsAuthorized: true,
		HistoryID:    historyID,
	}
	require.NoError(t, repos.EmailAccountRepository.Create(ctx, account))

	mailbox := gmailtest.NewMailbox()
	for _, id := range []string{"INBOX", "UNREAD", "SENT", "TRASH", "DRAFT"} {
		mailbox.AddLabel(id, id, "system")
	}
	mailbox.AddLabel("Label_1", "Clients", "user")

	cfg := config.DefaultGmailSyncConfig()
	cfg.FullMessageBatchSize = 2
	cfg.LabelUpdateBatchSize = 2

	log := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	log.InitLogger()

	return &testEnv{
		ctx:     ctx,
		store:   store,
		repos:   repos,
		mailbox: mailbox,
		cfg:     cfg,
		log:     log,
		account: account,
	}
}

// manager returns a manager over a fresh copy of the stored account, as a task would.
func (e *testEnv) manager(t *testing.T) *Manager {
	t.Helper()
	account, err := e.repos.EmailAccountRepository.GetByID(e.ctx, e.account.ID)
	require.NoError(t, err)
	return NewManager(account, e.mailbox, e.repos, composer.NewComposer(nil, e.log), e.cfg, e.log)
}

func (e *testEnv) storedAccount(t *testing.T) *models.EmailAccount {
	t.Helper()
	account, err := e.repos.EmailAccountRepository.GetByID(e.ctx, e.account.ID)
	require.NoError(t, err)
	return account
}

func (e *testEnv) message(t *testing.T, messageID string) *models.EmailMessage {
	t.Helper()
	msg, err := e.repos.EmailMessageRepository.GetByMessageID(e.ctx, e.account.ID, messageID)
	require.NoError(t, err)
	return msg
}

func (e *testEnv) unread(labelID string) int {
	for _, label := range e.store.Labels(e.account.ID) {
		if label.LabelID == labelID {
			return label.Unread
		}
	}
	return -1
}

func (e *testEnv) fullSync(t *testing.T) {
	t.Helper()
	_, err := e.manager(t).Synchronize(e.ctx, SyncOptions{})
	require.NoError(t, err)
}

func TestSynchronize_FullScanSkipsNonMessageIDs(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mailbox.ListPageSize = 2
	first := env.mailbox.AddTextMessage("m1", "t1", "first", "one", "INBOX", "UNREAD")
	env.mailbox.AddTextMessage("m2", "t2", "second", "two", "INBOX")
	env.mailbox.AddTextMessage("m3", "t3", "chat", "three")
	require.NoError(t, env.repos.NoEmailMessageIDRepository.Create(env.ctx, env.account.ID, "m3"))

	result, err := env.manager(t).Synchronize(env.ctx, SyncOptions{})
	require.NoError(t, err)

	assert.True(t, result.FullScan)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, env.mailbox.CallCount("ListMessageIDs"))
	assert.NotContains(t, env.mailbox.Fetched, "m3")

	messages := env.store.Messages(env.account.ID)
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].MessageID)
	assert.Equal(t, "m2", messages[1].MessageID)

	account := env.storedAccount(t)
	require.NotNil(t, account.HistoryID)
	assert.Equal(t, first.HistoryID, *account.HistoryID)
	assert.Nil(t, account.TempHistoryID)
	assert.Equal(t, enum.SyncStateIdle, account.SyncState)
	assert.NotNil(t, account.LastSyncedAt)

	assert.Equal(t, 1, env.unread("INBOX"))
}

func TestSynchronize_FullScanRefreshesKnownMessages(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mailbox.AddTextMessage("m1", "t1", "first", "one", "INBOX", "UNREAD")
	env.fullSync(t)

	env.mailbox.SetLabels("m1", "Label_1")
	env.mailbox.AddTextMessage("m2", "t2", "second", "two", "INBOX")

	result, err := env.manager(t).Synchronize(env.ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, []string{"m1", "m2"}, env.mailbox.Fetched)

	m1 := env.message(t, "m1")
	assert.True(t, m1.Read)
	assert.Equal(t, []string{"Label_1"}, m1.LabelIDs())
	assert.Equal(t, 0, env.unread("INBOX"))
}

func TestSynchronize_FullScanDeletesMessagesGoneRemotely(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	env.mailbox.AddTextMessage("m2", "t2", "b", "b", "INBOX", "UNREAD")
	env.fullSync(t)
	require.Equal(t, 1, env.unread("INBOX"))

	env.mailbox.Vanish("m2")

	result, err := env.manager(t).Synchronize(env.ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.NotNil(t, env.message(t, "m1"))
	assert.Nil(t, env.message(t, "m2"))
	assert.Equal(t, 0, env.unread("INBOX"))
}

func TestSynchronize_PersistenceFailureSkipsOnlyThatMessage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	env.mailbox.AddTextMessage("m2", "t2", "b", "b", "INBOX")
	env.mailbox.AddTextMessage("m3", "t3", "c", "c", "INBOX")
	env.store.FailSaveFor["m2"] = errors.New("connection reset")

	result, err := env.manager(t).Synchronize(env.ctx, SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.NotNil(t, env.message(t, "m1"))
	assert.Nil(t, env.message(t, "m2"))
	assert.NotNil(t, env.message(t, "m3"))
	assert.NotNil(t, env.storedAccount(t).HistoryID)
}

func TestSynchronize_AuthErrorLeavesCursorUntouched(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	env.mailbox.Errors["GetMessageListInfo"] = fmt.Errorf("%w: token revoked", internalerrors.ErrAuth)

	_, err := env.manager(t).Synchronize(env.ctx, SyncOptions{})
	require.ErrorIs(t, err, internalerrors.ErrAuth)

	account := env.storedAccount(t)
	assert.Nil(t, account.HistoryID)
	assert.Equal(t, enum.SyncStateSyncFailed, account.SyncState)
	assert.NotEmpty(t, account.SyncError)
	assert.Empty(t, env.store.Messages(env.account.ID))
}

func TestSynchronize_LimitStagesCursorAndResumes(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	env.mailbox.AddTextMessage("m2", "t2", "b", "b", "INBOX")
	env.mailbox.AddTextMessage("m3", "t3", "c", "c", "INBOX")

	result, err := env.manager(t).Synchronize(env.ctx, SyncOptions{Limit: 2})
	require.ErrorIs(t, err, internalerrors.ErrSyncLimitReached)
	assert.Equal(t, 2, result.Created)

	account := env.storedAccount(t)
	assert.Nil(t, account.HistoryID)
	require.NotNil(t, account.TempHistoryID)
	assert.Equal(t, first.HistoryID, *account.TempHistoryID)
	assert.Equal(t, enum.SyncStateSyncLimited, account.SyncState)
	assert.Len(t, env.store.Messages(env.account.ID), 2)

	result, err = env.manager(t).Synchronize(env.ctx, SyncOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, env.mailbox.CallCount("GetLabelListInfo"))

	account = env.storedAccount(t)
	require.NotNil(t, account.HistoryID)
	assert.Equal(t, first.HistoryID, *account.HistoryID)
	assert.Nil(t, account.TempHistoryID)
	assert.Len(t, env.store.Messages(env.account.ID), 3)
}

func TestSynchronize_HistoryAddsMessage(t *testing.T) {
	env := newTestEnv(t, utils.ToPtr(uint64(1000)))
	env.mailbox.AddTextMessage("m1", "t1", "hello", "hi", "INBOX", "UNREAD")
	env.mailbox.History[""] = &dto.HistoryPage{
		HistoryID: 1020,
		Events: []dto.HistoryEvent{
			{ID: 1010, MessagesAdded: []dto.MessageIdentifier{{ID: "m1", ThreadID: "t1"}}},
		},
	}

	result, err := env.manager(t).Synchronize(env.ctx, SyncOptions{})
	require.NoError(t, err)

	assert.False(t, result.FullScan)
	assert.False(t, result.MorePages)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, []string{"m1"}, env.mailbox.Fetched)
	assert.Equal(t, []uint64{1000}, env.mailbox.HistoryStarts)
	assert.Equal(t, uint64(1020), *env.storedAccount(t).HistoryID)
	assert.Equal(t, "hello", env.message(t, "m1").Subject)
	assert.Equal(t, 1, env.unread("INBOX"))
}

func TestSynchronize_HistoryWithMorePagesAdvancesToLastEvent(t *testing.T) {
	env := newTestEnv(t, utils.ToPtr(uint64(1000)))
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	env.mailbox.AddTextMessage("m2", "t2", "b", "b", "INBOX")
	env.mailbox.History[""] = &dto.HistoryPage{
		HistoryID:     1100,
		NextPageToken: "page-2",
		Events: []dto.HistoryEvent{
			{ID: 1010, MessagesAdded: []dto.MessageIdentifier{{ID: "m1", ThreadID: "t1"}}},
			{ID: 1015, MessagesAdded: []dto.MessageIdentifier{{ID: "m2", ThreadID: "t2"}}},
		},
	}

	result, err := env.manager(t).Synchronize(env.ctx, SyncOptions{})
	require.NoError(t, err)

	assert.True(t, result.MorePages)
	assert.Equal(t, uint64(1015), *env.storedAccount(t).HistoryID)
	assert.Len(t, env.store.Messages(env.account.ID), 2)
}

func TestSynchronize_EmptyHistoryPageChangesNothing(t *testing.T) {
	env := newTestEnv(t, utils.ToPtr(uint64(1000)))
	env.mailbox.History[""] = &dto.HistoryPage{HistoryID: 2000}

	result, err := env.manager(t).Synchronize(env.ctx, SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, SyncResult{}, *result)
	assert.Equal(t, uint64(1000), *env.storedAccount(t).HistoryID)
	assert.Empty(t, env.store.Messages(env.account.ID))
	assert.Equal(t, 0, env.mailbox.CallCount("GetMessageListInfo"))
}

func TestSynchronize_HistoryLabelChangeAndDeletion(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX", "UNREAD")
	env.mailbox.AddTextMessage("m2", "t2", "b", "b", "INBOX")
	env.fullSync(t)
	require.Equal(t, 1, env.unread("INBOX"))
	cursor := *env.storedAccount(t).HistoryID

	env.mailbox.SetLabels("m1", "INBOX")
	env.mailbox.AddTextMessage("m3", "t3", "c", "c", "Label_1")
	require.NoError(t, env.mailbox.DeleteMessage(env.ctx, "m2"))
	env.mailbox.History[""] = &dto.HistoryPage{
		HistoryID: cursor + 50,
		Events: []dto.HistoryEvent{
			{ID: cursor + 1, LabelsRemoved: []dto.LabelChange{{Message: dto.MessageIdentifier{ID: "m1", ThreadID: "t1"}, LabelIDs: []string{"UNREAD"}}}},
			{ID: cursor + 2, LabelsAdded: []dto.LabelChange{{Message: dto.MessageIdentifier{ID: "m3", ThreadID: "t3"}, LabelIDs: []string{"Label_1"}}}},
			{ID: cursor + 3, MessagesDeleted: []dto.MessageIdentifier{{ID: "m2", ThreadID: "t2"}}},
		},
	}

	result, err := env.manager(t).Synchronize(env.ctx, SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.True(t, env.message(t, "m1").Read)
	assert.Nil(t, env.message(t, "m2"))
	assert.Equal(t, []string{"Label_1"}, env.message(t, "m3").LabelIDs())
	assert.Equal(t, 0, env.unread("INBOX"))
	assert.Equal(t, cursor+50, *env.storedAccount(t).HistoryID)
}

func TestSynchronize_ExpiredHistoryFallsBackToFullScan(t *testing.T) {
	env := newTestEnv(t, utils.ToPtr(uint64(5)))
	first := env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	env.mailbox.HistoryErr = fmt.Errorf("%w: start history id too old", internalerrors.ErrHistoryExpired)

	result, err := env.manager(t).Synchronize(env.ctx, SyncOptions{})
	require.NoError(t, err)

	assert.True(t, result.FullScan)
	assert.Equal(t, first.HistoryID, *env.storedAccount(t).HistoryID)
	assert.NotNil(t, env.message(t, "m1"))
}

func TestSynchronize_EmptyMailboxUsesProfileCursor(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.manager(t).Synchronize(env.ctx, SyncOptions{})
	require.NoError(t, err)

	account := env.storedAccount(t)
	require.NotNil(t, account.HistoryID)
	assert.Equal(t, 1, env.mailbox.CallCount("GetProfileHistoryID"))
	assert.Len(t, env.store.Labels(env.account.ID), 6)
}

func TestCollectHistoryChanges(t *testing.T) {
	id := func(v string) dto.MessageIdentifier { return dto.MessageIdentifier{ID: v, ThreadID: "t"} }
	added, deleted, changed := collectHistoryChanges([]dto.HistoryEvent{
		{MessagesAdded: []dto.MessageIdentifier{id("a"), id("b")}},
		{MessagesAdded: []dto.MessageIdentifier{id("a")}, LabelsAdded: []dto.LabelChange{{Message: id("c")}}},
		{MessagesDeleted: []dto.MessageIdentifier{id("b")}, LabelsRemoved: []dto.LabelChange{{Message: id("c")}, {Message: id("b")}}},
	})

	assert.Equal(t, []string{"a"}, added)
	assert.Equal(t, []string{"b"}, deleted)
	assert.Equal(t, []string{"c"}, changed)
}
