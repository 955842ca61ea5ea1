package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/dto"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/utils"
)

// syncedAccount creates an authorized account and runs a first full scan over the mailbox.
func (e *testEnv) syncedAccount(t *testing.T) *models.EmailAccount {
	t.Helper()
	account := e.createAccount(t, true, nil)
	_, err := e.service.RunSync(e.ctx, account.ID, false)
	require.NoError(t, err)
	return e.account(t, account.ID)
}

func TestToggleRead(t *testing.T) {
	env := newTestEnv(t)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX", "UNREAD")
	account := env.syncedAccount(t)
	msg := env.message(t, account.ID, "m1")
	require.False(t, msg.Read)

	require.NoError(t, env.service.ToggleRead(env.ctx, dto.ToggleReadEmailMessage{MessageID: msg.ID, Read: true}))
	assert.True(t, env.message(t, account.ID, "m1").Read)
}

func TestToggleRead_MessageGone(t *testing.T) {
	env := newTestEnv(t)
	assert.NoError(t, env.service.ToggleRead(env.ctx, dto.ToggleReadEmailMessage{MessageID: "missing", Read: true}))
	assert.Equal(t, 0, env.mailbox.CallCount("UpdateLabels"))
}

func TestMessageAction_TransportFailureIsReturned(t *testing.T) {
	env := newTestEnv(t)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	account := env.syncedAccount(t)
	msg := env.message(t, account.ID, "m1")
	env.mailbox.Errors["TrashMessage"] = internalerrors.ErrAuth

	err := env.service.Trash(env.ctx, dto.TrashEmailMessage{MessageID: msg.ID})
	assert.ErrorIs(t, err, internalerrors.ErrAuth)
	assert.False(t, env.account(t, account.ID).IsAuthorized)
	assert.Equal(t, []string{"INBOX"}, env.message(t, account.ID, "m1").LabelIDs())
}

func TestArchiveAndLabels(t *testing.T) {
	env := newTestEnv(t)
	env.mailbox.AddLabel("Label_1", "Clients", "user")
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	account := env.syncedAccount(t)
	msg := env.message(t, account.ID, "m1")

	require.NoError(t, env.service.AddAndRemoveLabels(env.ctx, dto.AddAndRemoveLabelsEmailMessage{MessageID: msg.ID, AddLabels: []string{"Label_1"}}))
	assert.ElementsMatch(t, []string{"INBOX", "Label_1"}, env.message(t, account.ID, "m1").LabelIDs())

	require.NoError(t, env.service.Archive(env.ctx, dto.ArchiveEmailMessage{MessageID: msg.ID}))
	assert.Empty(t, env.message(t, account.ID, "m1").LabelIDs())
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	account := env.syncedAccount(t)
	msg := env.message(t, account.ID, "m1")

	require.NoError(t, env.service.Delete(env.ctx, dto.DeleteEmailMessage{MessageID: msg.ID}))

	assert.Equal(t, 1, env.mailbox.CallCount("DeleteMessage"))
	assert.Nil(t, env.mailbox.Message("m1"))
	assert.Nil(t, env.message(t, account.ID, "m1"))
}

func TestDelete_AlreadyRemovedOutsideTrash(t *testing.T) {
	env := newTestEnv(t)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "INBOX")
	account := env.syncedAccount(t)
	msg := env.message(t, account.ID, "m1")
	require.NoError(t, env.repos.EmailMessageRepository.SetRemoved(env.ctx, msg.ID, true))

	require.NoError(t, env.service.Delete(env.ctx, dto.DeleteEmailMessage{MessageID: msg.ID}))

	assert.Equal(t, 0, env.mailbox.CallCount("DeleteMessage"))
	stored := env.message(t, account.ID, "m1")
	require.NotNil(t, stored)
	assert.True(t, stored.IsRemoved)
}

func TestDelete_RemovedMessageInTrash(t *testing.T) {
	env := newTestEnv(t)
	env.mailbox.AddTextMessage("m1", "t1", "a", "a", "TRASH")
	account := env.syncedAccount(t)
	msg := env.message(t, account.ID, "m1")
	require.NoError(t, env.repos.EmailMessageRepository.SetRemoved(env.ctx, msg.ID, true))

	require.NoError(t, env.service.Delete(env.ctx, dto.DeleteEmailMessage{MessageID: msg.ID}))

	assert.Equal(t, 1, env.mailbox.CallCount("DeleteMessage"))
	assert.Nil(t, env.message(t, account.ID, "m1"))
}

func (e *testEnv) outbox(t *testing.T, account *models.EmailAccount, subject string) *models.EmailOutboxMessage {
	t.Helper()
	outbox := &models.EmailOutboxMessage{
		AccountID: account.ID,
		To:        []string{"alice@example.com"},
		Subject:   subject,
		BodyText:  "body of " + subject,
	}
	require.NoError(t, e.repos.EmailOutboxRepository.Create(e.ctx, outbox))
	return outbox
}

func (e *testEnv) outboxExists(t *testing.T, id string) bool {
	t.Helper()
	outbox, err := e.repos.EmailOutboxRepository.GetByID(e.ctx, id)
	require.NoError(t, err)
	return outbox != nil
}

func TestSendMessage_ReplyStaysInThread(t *testing.T) {
	env := newTestEnv(t)
	env.mailbox.AddTextMessage("m1", "t1", "question", "a", "INBOX")
	account := env.syncedAccount(t)
	original := env.message(t, account.ID, "m1")

	outbox := env.outbox(t, account, "Re: question")
	outbox.ReplyToMessageID = original.ID
	require.NoError(t, env.repos.EmailOutboxRepository.Create(env.ctx, outbox))

	require.NoError(t, env.service.SendMessage(env.ctx, dto.SendEmailMessage{OutboxMessageID: outbox.ID}))

	require.Len(t, env.mailbox.SentRaw, 1)
	assert.False(t, env.outboxExists(t, outbox.ID))

	var sent *models.EmailMessage
	for _, msg := range env.store.Messages(account.ID) {
		if msg.Subject == "Re: question" {
			sent = msg
		}
	}
	require.NotNil(t, sent)
	assert.Equal(t, "t1", sent.ThreadID)
}

func TestSendMessage_ReplyToOtherAccountStartsNewThread(t *testing.T) {
	env := newTestEnv(t)
	env.mailbox.AddTextMessage("m1", "t1", "question", "a", "INBOX")
	other := env.syncedAccount(t)
	original := env.message(t, other.ID, "m1")

	account := env.createAccount(t, true, utils.ToPtr(uint64(1)))
	outbox := env.outbox(t, account, "Re: question")
	outbox.ReplyToMessageID = original.ID
	require.NoError(t, env.repos.EmailOutboxRepository.Create(env.ctx, outbox))

	require.NoError(t, env.service.SendMessage(env.ctx, dto.SendEmailMessage{OutboxMessageID: outbox.ID}))

	sent := env.store.Messages(account.ID)
	require.Len(t, sent, 1)
	assert.NotEqual(t, "t1", sent[0].ThreadID)
}

func TestSendMessage_UnknownOutbox(t *testing.T) {
	env := newTestEnv(t)
	err := env.service.SendMessage(env.ctx, dto.SendEmailMessage{OutboxMessageID: "missing"})
	assert.ErrorIs(t, err, internalerrors.ErrOutboxNotFound)
}

func TestSendMessage_FailureKeepsOutbox(t *testing.T) {
	env := newTestEnv(t)
	account := env.syncedAccount(t)
	outbox := env.outbox(t, account, "hello")
	env.mailbox.Errors["SendMessage"] = internalerrors.ErrRemoteValidation

	err := env.service.SendMessage(env.ctx, dto.SendEmailMessage{OutboxMessageID: outbox.ID})
	assert.ErrorIs(t, err, internalerrors.ErrRemoteValidation)
	assert.True(t, env.outboxExists(t, outbox.ID))
}

func TestDrafts(t *testing.T) {
	env := newTestEnv(t)
	account := env.syncedAccount(t)

	outbox := env.outbox(t, account, "v1")
	require.NoError(t, env.service.CreateDraft(env.ctx, dto.CreateDraftEmailMessage{OutboxMessageID: outbox.ID}))
	assert.False(t, env.outboxExists(t, outbox.ID))

	drafts := env.store.Messages(account.ID)
	require.Len(t, drafts, 1)
	require.NotEmpty(t, drafts[0].DraftID)

	update := env.outbox(t, account, "v2")
	update.DraftMessageID = drafts[0].ID
	require.NoError(t, env.repos.EmailOutboxRepository.Create(env.ctx, update))
	require.NoError(t, env.service.UpdateDraft(env.ctx, dto.UpdateDraftEmailMessage{OutboxMessageID: update.ID}))

	drafts = env.store.Messages(account.ID)
	require.Len(t, drafts, 1)
	assert.Equal(t, "v2", drafts[0].Subject)
	assert.Equal(t, 1, env.mailbox.CallCount("UpdateDraft"))
}

func TestUpdateDraft_WithoutDraftIDRecreates(t *testing.T) {
	env := newTestEnv(t)
	env.mailbox.AddTextMessage("m1", "t1", "old draft", "a", "DRAFT")
	account := env.syncedAccount(t)
	current := env.message(t, account.ID, "m1")
	require.Empty(t, current.DraftID)

	outbox := env.outbox(t, account, "new draft")
	outbox.DraftMessageID = current.ID
	require.NoError(t, env.repos.EmailOutboxRepository.Create(env.ctx, outbox))

	require.NoError(t, env.service.UpdateDraft(env.ctx, dto.UpdateDraftEmailMessage{OutboxMessageID: outbox.ID}))

	assert.Equal(t, 0, env.mailbox.CallCount("UpdateDraft"))
	assert.Equal(t, 1, env.mailbox.CallCount("CreateDraft"))
	assert.Nil(t, env.message(t, account.ID, "m1"))
	assert.Nil(t, env.mailbox.Message("m1"))

	drafts := env.store.Messages(account.ID)
	require.Len(t, drafts, 1)
	assert.Equal(t, "new draft", drafts[0].Subject)
	assert.NotEmpty(t, drafts[0].DraftID)
}
