package builders

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

// LabelResolver maps a remote label id to the locally stored label.
// A nil label with a nil error means the label is unknown and should be skipped.
type LabelResolver interface {
	GetLabel(ctx context.Context, account *models.EmailAccount, labelID string) (*models.EmailLabel, error)
}

type LabelResolverFunc func(ctx context.Context, account *models.EmailAccount, labelID string) (*models.EmailLabel, error)

func (f LabelResolverFunc) GetLabel(ctx context.Context, account *models.EmailAccount, labelID string) (*models.EmailLabel, error) {
	return f(ctx, account, labelID)
}

// BuiltMessage is a message prepared by the builder but not necessarily persisted yet.
type BuiltMessage struct {
	Message *models.EmailMessage
	// Created is true until the new message is saved for the first time
	Created        bool
	Labels         []*models.EmailLabel
	Headers        []models.EmailHeader
	ReplaceHeaders bool
}

type MessageBuilder struct {
	messages    interfaces.EmailMessageRepository
	labels      LabelResolver
	unreadLabel string
}

func NewMessageBuilder(messages interfaces.EmailMessageRepository, labels LabelResolver, unreadLabel string) *MessageBuilder {
	return &MessageBuilder{
		messages:    messages,
		labels:      labels,
		unreadLabel: unreadLabel,
	}
}

// GetOrCreateMessage loads the message for (account, remote id) or prepares a new one.
// No record is written until Save.
func (b *MessageBuilder) GetOrCreateMessage(ctx context.Context, account *models.EmailAccount, id dto.MessageIdentifier) (*BuiltMessage, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	existing, err := b.messages.GetByMessageID(ctx, account.ID, id.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &BuiltMessage{Message: existing, Labels: existing.Labels}, nil
	}

	return &BuiltMessage{
		Message: &models.EmailMessage{
			AccountID: account.ID,
			MessageID: id.ID,
			ThreadID:  id.ThreadID,
		},
		Created: true,
	}, nil
}

// StoreMessageInfo populates every field of the message from a full payload.
func (b *MessageBuilder) StoreMessageInfo(ctx context.Context, account *models.EmailAccount, info *dto.MessageFullInfo) (*BuiltMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MessageBuilder.StoreMessageInfo")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if info == nil {
		tracing.TraceErr(span, internalerrors.ErrInvalidMessageIdentifier)
		return nil, internalerrors.ErrInvalidMessageIdentifier
	}
	span.LogKV("messageId", info.ID)

	built, err := b.GetOrCreateMessage(ctx, account, info.Identifier())
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if err := info.Validate(); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	msg := built.Message
	msg.ThreadID = info.ThreadID
	msg.Snippet = info.Snippet

	labels, read, err := b.resolveLabels(ctx, account, info.LabelIDs)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	msg.Read = read
	built.Labels = labels

	headers := ExtractHeaders(info.Payload.Headers)
	if headers.SentDate != nil {
		msg.SentDate = headers.SentDate
	}
	msg.Subject = headers.Subject
	built.Headers = headers.Headers
	built.ReplaceHeaders = true

	body := DecodeBody(info.Payload)
	msg.BodyHTML = body.HTML
	msg.BodyText = body.Text

	return built, nil
}

// StoreLabelsForMessage refreshes only the label set and the read flag.
func (b *MessageBuilder) StoreLabelsForMessage(ctx context.Context, account *models.EmailAccount, update *dto.MessageLabelUpdate) (*BuiltMessage, error) {
	if update == nil {
		return nil, internalerrors.ErrInvalidMessageIdentifier
	}

	built, err := b.GetOrCreateMessage(ctx, account, update.Identifier())
	if err != nil {
		return nil, err
	}

	labels, read, err := b.resolveLabels(ctx, account, update.LabelIDs)
	if err != nil {
		return nil, err
	}
	built.Message.Read = read
	built.Labels = labels
	built.ReplaceHeaders = false

	return built, nil
}

func (b *MessageBuilder) Save(ctx context.Context, built *BuiltMessage) error {
	if err := b.messages.Save(ctx, built.Message, built.Labels, built.Headers, built.ReplaceHeaders); err != nil {
		return err
	}
	built.Created = false
	return nil
}

// resolveLabels maps remote label ids to local labels. The unread marker is not a
// label of its own: its presence only clears the read flag.
func (b *MessageBuilder) resolveLabels(ctx context.Context, account *models.EmailAccount, labelIDs []string) ([]*models.EmailLabel, bool, error) {
	read := true
	labels := make([]*models.EmailLabel, 0, len(labelIDs))
	seen := make(map[string]struct{}, len(labelIDs))

	for _, labelID := range labelIDs {
		if labelID == b.unreadLabel {
			read = false
			continue
		}
		if _, ok := seen[labelID]; ok {
			continue
		}
		seen[labelID] = struct{}{}

		label, err := b.labels.GetLabel(ctx, account, labelID)
		if err != nil {
			return nil, false, err
		}
		if label == nil {
			continue
		}
		labels = append(labels, label)
	}
	return labels, read, nil
}
