package builders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/enum"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/repository/inmemory"
	"github.com/customeros/mailsync/services/gmail/gmailtest"
)

type fixture struct {
	ctx     context.Context
	store   *inmemory.Store
	repos   *repository.Repositories
	mailbox *gmailtest.Mailbox
	account *models.EmailAccount
	labels  *StoredLabelResolver
	builder *MessageBuilder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := inmemory.NewStore()
	repos := store.Repositories()

	account := &models.EmailAccount{Tenant: "tenant", EmailAddress: "me@example.com", IsAuthorized: true}
	require.NoError(t, repos.EmailAccountRepository.Create(ctx, account))

	mailbox := gmailtest.NewMailbox()
	mailbox.AddLabel("INBOX", "INBOX", "system")
	mailbox.AddLabel("Label_1", "Clients", "user")

	labels := NewStoredLabelResolver(repos.EmailLabelRepository, mailbox)
	return &fixture{
		ctx:     ctx,
		store:   store,
		repos:   repos,
		mailbox: mailbox,
		account: account,
		labels:  labels,
		builder: NewMessageBuilder(repos.EmailMessageRepository, labels, "UNREAD"),
	}
}

func TestLabelBuilder_GetOrCreateLabel(t *testing.T) {
	f := newFixture(t)
	builder := NewLabelBuilder(f.repos.EmailLabelRepository)

	label, created, err := builder.GetOrCreateLabel(f.ctx, f.account, &dto.LabelPayload{ID: "Label_1", Name: "Clients", Type: "user"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, enum.LabelTypeUser, label.LabelType)
	require.NoError(t, builder.Save(f.ctx, label))

	renamed, created, err := builder.GetOrCreateLabel(f.ctx, f.account, &dto.LabelPayload{ID: "Label_1", Name: "Customers", Type: "user"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, label.ID, renamed.ID)
	assert.Equal(t, "Customers", renamed.Name)
}

func TestLabelBuilder_InvalidPayload(t *testing.T) {
	f := newFixture(t)
	builder := NewLabelBuilder(f.repos.EmailLabelRepository)

	_, _, err := builder.GetOrCreateLabel(f.ctx, f.account, &dto.LabelPayload{ID: "Label_1", Name: "x"})
	assert.ErrorIs(t, err, internalerrors.ErrInvalidPayload)

	_, _, err = builder.GetOrCreateLabel(f.ctx, f.account, &dto.LabelPayload{ID: "Label_1", Type: "other"})
	assert.ErrorIs(t, err, internalerrors.ErrInvalidLabelPayload)
}

func TestMessageBuilder_GetOrCreateMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.builder.GetOrCreateMessage(f.ctx, f.account, dto.MessageIdentifier{ID: "m1"})
	assert.ErrorIs(t, err, internalerrors.ErrInvalidMessageIdentifier)

	built, err := f.builder.GetOrCreateMessage(f.ctx, f.account, dto.MessageIdentifier{ID: "m1", ThreadID: "t1"})
	require.NoError(t, err)
	assert.True(t, built.Created)
	assert.Empty(t, f.store.Messages(f.account.ID))

	require.NoError(t, f.builder.Save(f.ctx, built))
	assert.False(t, built.Created)

	again, err := f.builder.GetOrCreateMessage(f.ctx, f.account, dto.MessageIdentifier{ID: "m1", ThreadID: "t1"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, built.Message.ID, again.Message.ID)
}

func TestMessageBuilder_StoreMessageInfo(t *testing.T) {
	f := newFixture(t)
	info := f.mailbox.AddTextMessage("m1", "t1", "Hello", "hi there", "INBOX", "UNREAD", "Label_1")

	built, err := f.builder.StoreMessageInfo(f.ctx, f.account, info)
	require.NoError(t, err)
	require.NoError(t, f.builder.Save(f.ctx, built))

	messages := f.store.Messages(f.account.ID)
	require.Len(t, messages, 1)
	msg := messages[0]
	assert.Equal(t, "Hello", msg.Subject)
	assert.Equal(t, "hi there", msg.BodyText)
	assert.Equal(t, "hi there", msg.Snippet)
	assert.False(t, msg.Read)
	assert.NotNil(t, msg.SentDate)
	assert.ElementsMatch(t, []string{"INBOX", "Label_1"}, msg.LabelIDs())
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "From", msg.Headers[0].Name)

	// labels unknown locally were fetched and stored
	assert.Len(t, f.store.Labels(f.account.ID), 2)
}

func TestMessageBuilder_StoreMessageInfo_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.builder.StoreMessageInfo(f.ctx, f.account, &dto.MessageFullInfo{ID: "m1", ThreadID: "t1", LabelIDs: []string{}})
	assert.ErrorIs(t, err, internalerrors.ErrInvalidMessageInfo)

	_, err = f.builder.StoreMessageInfo(f.ctx, f.account, &dto.MessageFullInfo{ThreadID: "t1"})
	assert.ErrorIs(t, err, internalerrors.ErrInvalidMessageIdentifier)
}

func TestMessageBuilder_StoreLabelsForMessage(t *testing.T) {
	f := newFixture(t)
	info := f.mailbox.AddTextMessage("m1", "t1", "Hello", "hi", "INBOX", "UNREAD")
	built, err := f.builder.StoreMessageInfo(f.ctx, f.account, info)
	require.NoError(t, err)
	require.NoError(t, f.builder.Save(f.ctx, built))

	built, err = f.builder.StoreLabelsForMessage(f.ctx, f.account, &dto.MessageLabelUpdate{ID: "m1", ThreadID: "t1", LabelIDs: []string{"Label_1"}})
	require.NoError(t, err)
	require.NoError(t, f.builder.Save(f.ctx, built))

	msg := f.store.Messages(f.account.ID)[0]
	assert.True(t, msg.Read)
	assert.Equal(t, []string{"Label_1"}, msg.LabelIDs())
	// headers survive a label-only update
	assert.Len(t, msg.Headers, 1)
	assert.Equal(t, "Hello", msg.Subject)
}

func TestStoredLabelResolver_UnknownRemoteLabelIsSkipped(t *testing.T) {
	f := newFixture(t)

	label, err := f.labels.GetLabel(f.ctx, f.account, "Label_missing")
	require.NoError(t, err)
	assert.Nil(t, label)

	label, err = f.labels.GetLabel(f.ctx, f.account, "INBOX")
	require.NoError(t, err)
	require.NotNil(t, label)
	assert.Equal(t, enum.LabelTypeSystem, label.LabelType)

	// served from cache afterwards
	_, err = f.labels.GetLabel(f.ctx, f.account, "INBOX")
	require.NoError(t, err)
	assert.Equal(t, 2, f.mailbox.CallCount("GetLabelInfo"))
}

func TestStoredLabelResolver_PropagatesTransportErrors(t *testing.T) {
	f := newFixture(t)
	f.mailbox.Errors["GetLabelInfo"] = internalerrors.ErrAuth

	_, err := f.labels.GetLabel(f.ctx, f.account, "INBOX")
	assert.True(t, errors.Is(err, internalerrors.ErrAuth))
}
