package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/enum"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/utils"
)

func TestSynchronizeEmailAccount_ChainsAcrossHistoryPages(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, true, utils.ToPtr(uint64(1000)))
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	env.mailbox.AddTextMessage("m2", "t2", "b", "b", "INBOX")
	env.mailbox.History[""] = &dto.HistoryPage{
		HistoryID:     1100,
		NextPageToken: "next",
		Events:        []dto.HistoryEvent{{ID: 1010, MessagesAdded: []dto.MessageIdentifier{{ID: "m1", ThreadID: "t1"}}}},
	}

	require.NoError(t, env.service.SynchronizeEmailAccount(env.ctx, dto.SyncEmailAccount{AccountID: account.ID}))

	syncs := env.publisher.syncEvents()
	require.Len(t, syncs, 1)
	assert.Equal(t, account.ID, syncs[0].AccountID)
	assert.True(t, syncs[0].Continuation)
	assert.NotEmpty(t, syncs[0].LockOwner)
	assert.True(t, env.lockSet(t, "email_sync:"+account.ID))
	assert.Equal(t, uint64(1010), *env.account(t, account.ID).HistoryID)
	assert.NotNil(t, env.message(t, account.ID, "m1"))

	env.mailbox.History[""] = &dto.HistoryPage{
		HistoryID: 1100,
		Events:    []dto.HistoryEvent{{ID: 1020, MessagesAdded: []dto.MessageIdentifier{{ID: "m2", ThreadID: "t2"}}}},
	}
	require.NoError(t, env.service.SynchronizeEmailAccount(env.ctx, syncs[0]))

	assert.Len(t, env.publisher.syncEvents(), 1)
	assert.False(t, env.lockSet(t, "email_sync:"+account.ID))
	assert.Equal(t, uint64(1100), *env.account(t, account.ID).HistoryID)
	assert.NotNil(t, env.message(t, account.ID, "m2"))
	assert.Equal(t, []uint64{1000, 1010}, env.mailbox.HistoryStarts)
}

func TestSynchronizeEmailAccount_SkipsWhenAlreadyRunning(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, true, utils.ToPtr(uint64(1000)))
	_, err := env.repos.SyncLockRepository.Acquire(env.ctx, "email_sync:"+account.ID, "other", time.Minute)
	require.NoError(t, err)

	require.NoError(t, env.service.SynchronizeEmailAccount(env.ctx, dto.SyncEmailAccount{AccountID: account.ID}))

	assert.Equal(t, 0, env.mailbox.CallCount("ListHistory"))
	assert.True(t, env.lockSet(t, "email_sync:"+account.ID))
}

func TestSynchronizeEmailAccount_AuthFailureDeauthorizes(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, true, utils.ToPtr(uint64(1000)))
	env.mailbox.Errors["ListHistory"] = internalerrors.ErrAuth

	require.NoError(t, env.service.SynchronizeEmailAccount(env.ctx, dto.SyncEmailAccount{AccountID: account.ID}))

	stored := env.account(t, account.ID)
	assert.False(t, stored.IsAuthorized)
	assert.Equal(t, uint64(1000), *stored.HistoryID)
	assert.Equal(t, enum.SyncStateSyncFailed, stored.SyncState)
	assert.False(t, env.lockSet(t, "email_sync:"+account.ID))
	assert.Empty(t, env.publisher.syncEvents())
}

func TestSynchronizeEmailAccount_MissingCredentials(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, true, utils.ToPtr(uint64(1000)))
	env.factory.Err = internalerrors.ErrAuth

	require.NoError(t, env.service.SynchronizeEmailAccount(env.ctx, dto.SyncEmailAccount{AccountID: account.ID}))

	assert.False(t, env.account(t, account.ID).IsAuthorized)
	assert.False(t, env.lockSet(t, "email_sync:"+account.ID))
}

func TestSynchronizeEmailAccount_UnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	assert.NoError(t, env.service.SynchronizeEmailAccount(env.ctx, dto.SyncEmailAccount{AccountID: "missing"}))
	assert.Equal(t, 0, env.mailbox.CallCount("ListHistory"))
}

func TestFirstSynchronizeEmailAccount_ResumesAfterLimit(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.PartialSyncLimit = 1
	account := env.createAccount(t, true, nil)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	env.mailbox.AddTextMessage("m2", "t2", "b", "b", "INBOX")

	_, err := env.repos.SyncLockRepository.Acquire(env.ctx, "first_sync:"+account.ID, "scheduler", time.Minute)
	require.NoError(t, err)
	require.NoError(t, env.service.FirstSynchronizeEmailAccount(env.ctx, dto.FirstSyncEmailAccount{AccountID: account.ID, LockOwner: "scheduler"}))

	stored := env.account(t, account.ID)
	assert.Nil(t, stored.HistoryID)
	require.NotNil(t, stored.TempHistoryID)
	assert.Equal(t, enum.SyncStateSyncLimited, stored.SyncState)
	assert.Len(t, env.store.Messages(account.ID), 1)
	assert.False(t, env.lockSet(t, "first_sync:"+account.ID))

	staged := *stored.TempHistoryID
	require.NoError(t, env.service.FirstSynchronizeEmailAccount(env.ctx, dto.FirstSyncEmailAccount{AccountID: account.ID}))

	stored = env.account(t, account.ID)
	require.NotNil(t, stored.HistoryID)
	assert.Equal(t, staged, *stored.HistoryID)
	assert.Nil(t, stored.TempHistoryID)
	assert.Equal(t, enum.SyncStateIdle, stored.SyncState)
	assert.Len(t, env.store.Messages(account.ID), 2)
}

func TestSynchronizeEmailAccount_ContinuationRenewsLock(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, true, utils.ToPtr(uint64(1000)))
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	env.mailbox.History[""] = &dto.HistoryPage{
		HistoryID:     1100,
		NextPageToken: "next",
		Events:        []dto.HistoryEvent{{ID: 1010, MessagesAdded: []dto.MessageIdentifier{{ID: "m1", ThreadID: "t1"}}}},
	}

	// the chain has outlived the lock ttl
	_, err := env.repos.SyncLockRepository.Acquire(env.ctx, "email_sync:"+account.ID, "chain", -time.Second)
	require.NoError(t, err)
	require.False(t, env.lockSet(t, "email_sync:"+account.ID))

	event := dto.SyncEmailAccount{AccountID: account.ID, Continuation: true, LockOwner: "chain"}
	require.NoError(t, env.service.SynchronizeEmailAccount(env.ctx, event))

	assert.Equal(t, 1, env.mailbox.CallCount("ListHistory"))
	assert.True(t, env.lockSet(t, "email_sync:"+account.ID))
	syncs := env.publisher.syncEvents()
	require.Len(t, syncs, 1)
	assert.Equal(t, "chain", syncs[0].LockOwner)

	scheduled, err := env.service.ScheduleEmailSync(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, scheduled)
}

func TestSynchronizeEmailAccount_ContinuationWithLostLockIsDropped(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, true, utils.ToPtr(uint64(1000)))
	_, err := env.repos.SyncLockRepository.Acquire(env.ctx, "email_sync:"+account.ID, "fresh", time.Minute)
	require.NoError(t, err)

	event := dto.SyncEmailAccount{AccountID: account.ID, Continuation: true, LockOwner: "chain"}
	require.NoError(t, env.service.SynchronizeEmailAccount(env.ctx, event))

	assert.Equal(t, 0, env.mailbox.CallCount("ListHistory"))
	assert.True(t, env.lockSet(t, "email_sync:"+account.ID))
	assert.Empty(t, env.publisher.syncEvents())
}

func TestFirstSynchronizeEmailAccount_SkipsWhenLockHeldByOther(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, true, nil)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	_, err := env.repos.SyncLockRepository.Acquire(env.ctx, "first_sync:"+account.ID, "worker-a", time.Minute)
	require.NoError(t, err)

	require.NoError(t, env.service.FirstSynchronizeEmailAccount(env.ctx, dto.FirstSyncEmailAccount{AccountID: account.ID}))
	require.NoError(t, env.service.FirstSynchronizeEmailAccount(env.ctx, dto.FirstSyncEmailAccount{AccountID: account.ID, LockOwner: "worker-b"}))

	assert.Equal(t, 0, env.mailbox.CallCount("ListMessageIDs"))
	assert.True(t, env.lockSet(t, "first_sync:"+account.ID))
	assert.Empty(t, env.store.Messages(account.ID))
}

func TestFirstSynchronizeEmailAccount_RunsWithScheduledLock(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, true, nil)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")

	_, err := env.service.ScheduleEmailSync(env.ctx)
	require.NoError(t, err)
	firstSyncs := env.publisher.firstSyncEvents()
	require.Len(t, firstSyncs, 1)

	require.NoError(t, env.service.FirstSynchronizeEmailAccount(env.ctx, firstSyncs[0]))

	assert.Equal(t, 1, env.mailbox.CallCount("ListMessageIDs"))
	assert.Len(t, env.store.Messages(account.ID), 1)
	assert.False(t, env.lockSet(t, "first_sync:"+account.ID))
}

func TestRunSync(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, true, nil)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX", "UNREAD")

	result, err := env.service.RunSync(env.ctx, account.ID, false)
	require.NoError(t, err)
	assert.True(t, result.FullScan)
	assert.Equal(t, 1, result.Created)
	assert.False(t, env.lockSet(t, "email_sync:"+account.ID))

	_, err = env.repos.SyncLockRepository.Acquire(env.ctx, "email_sync:"+account.ID, "other", time.Minute)
	require.NoError(t, err)
	_, err = env.service.RunSync(env.ctx, account.ID, false)
	assert.ErrorIs(t, err, internalerrors.ErrSyncInProgress)

	_, err = env.service.RunSync(env.ctx, "missing", false)
	assert.ErrorIs(t, err, internalerrors.ErrAccountNotFound)
}
