package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/internal/models"
)

func TestMessageSave_SameKeyUpdatesStoredMessage(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Repositories().EmailMessageRepository

	first := &models.EmailMessage{AccountID: "acc1", MessageID: "m1", Subject: "first"}
	require.NoError(t, repo.Save(ctx, first, nil, nil, false))

	second := &models.EmailMessage{AccountID: "acc1", MessageID: "m1", Subject: "second"}
	require.NoError(t, repo.Save(ctx, second, nil, nil, false))

	assert.Equal(t, first.ID, second.ID)
	messages := store.Messages("acc1")
	require.Len(t, messages, 1)
	assert.Equal(t, "second", messages[0].Subject)
}

func TestSyncLock_ReleaseAndExtendAreOwnerChecked(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Repositories().SyncLockRepository

	acquired, err := repo.Acquire(ctx, "email_sync:acc1", "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	extended, err := repo.Extend(ctx, "email_sync:acc1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)

	require.NoError(t, repo.Release(ctx, "email_sync:acc1", "owner-b"))
	set, err := repo.IsSet(ctx, "email_sync:acc1")
	require.NoError(t, err)
	assert.True(t, set)

	extended, err = repo.Extend(ctx, "email_sync:acc1", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)

	require.NoError(t, repo.Release(ctx, "email_sync:acc1", "owner-a"))
	set, err = repo.IsSet(ctx, "email_sync:acc1")
	require.NoError(t, err)
	assert.False(t, set)
}
