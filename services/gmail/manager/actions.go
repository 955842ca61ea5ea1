package manager

import (
	"context"
	"errors"
	"slices"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

// AddAndRemoveLabelsForMessage changes the labels of a message remotely and stores the result.
// Every attempt starts from the labels the message has remotely, so only missing labels are added
// and only present labels are removed. The sent label is managed by Gmail and is never changed.
// Rejected modifications are retried a bounded number of times and then abandoned.
func (m *Manager) AddAndRemoveLabelsForMessage(ctx context.Context, messageID string, addLabels, removeLabels []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Manager.AddAndRemoveLabelsForMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, m.account.ID)
	span.LogKV("messageId", messageID, "add", addLabels, "remove", removeLabels)

	if slices.Contains(addLabels, m.cfg.SentLabel) {
		m.log.Infof("not adding %s label for account %s, it is managed remotely", m.cfg.SentLabel, m.account.ID)
	}

	attempts := m.cfg.LabelMutationAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		existing, err := m.connector.GetLabelsFromMessage(ctx, messageID)
		if err != nil {
			tracing.TraceErr(span, err)
			return err
		}

		modification, err := m.labelModification(ctx, existing, addLabels, removeLabels)
		if err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		if modification.IsEmpty() {
			break
		}

		_, err = m.connector.UpdateLabels(ctx, messageID, modification)
		if err == nil {
			if _, err := m.refreshMessage(ctx, messageID, ""); err != nil {
				tracing.TraceErr(span, err)
				return err
			}
			break
		}
		if !errors.Is(err, internalerrors.ErrRemoteValidation) {
			tracing.TraceErr(span, err)
			return err
		}

		if attempt == attempts {
			m.log.Errorf("giving up label modification of message %s for account %s after %d attempts: %v", messageID, m.account.ID, attempts, err)
		} else {
			m.log.Warnf("label modification of message %s for account %s rejected, attempt %d: %v", messageID, m.account.ID, attempt, err)
		}
	}

	if err := m.UpdateUnreadCount(ctx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// labelModification filters the requested change against the labels the message has.
// Only known labels and the unread marker are added.
func (m *Manager) labelModification(ctx context.Context, existing, addLabels, removeLabels []string) (dto.LabelModification, error) {
	var modification dto.LabelModification

	for _, labelID := range removeLabels {
		if labelID == m.cfg.SentLabel || !slices.Contains(existing, labelID) {
			continue
		}
		modification.Remove = append(modification.Remove, labelID)
	}

	for _, labelID := range addLabels {
		if labelID == m.cfg.SentLabel || slices.Contains(existing, labelID) {
			continue
		}
		if labelID != m.cfg.UnreadLabel {
			label, err := m.repos.EmailLabelRepository.GetByLabelID(ctx, m.account.ID, labelID)
			if err != nil {
				return modification, err
			}
			if label == nil {
				m.log.Warnf("not adding unknown label %s for account %s", labelID, m.account.ID)
				continue
			}
		}
		modification.Add = append(modification.Add, labelID)
	}
	return modification, nil
}

func (m *Manager) ToggleRead(ctx context.Context, messageID string, read bool) error {
	if read {
		return m.AddAndRemoveLabelsForMessage(ctx, messageID, nil, []string{m.cfg.UnreadLabel})
	}
	return m.AddAndRemoveLabelsForMessage(ctx, messageID, []string{m.cfg.UnreadLabel}, nil)
}

// Archive takes every label off the message except the unread marker.
func (m *Manager) Archive(ctx context.Context, messageID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Manager.Archive")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, m.account.ID)
	span.LogKV("messageId", messageID)

	existing, err := m.connector.GetLabelsFromMessage(ctx, messageID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	remove := make([]string, 0, len(existing))
	for _, labelID := range existing {
		if labelID != m.cfg.UnreadLabel {
			remove = append(remove, labelID)
		}
	}
	return m.AddAndRemoveLabelsForMessage(ctx, messageID, nil, remove)
}

func (m *Manager) Trash(ctx context.Context, messageID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Manager.Trash")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, m.account.ID)
	span.LogKV("messageId", messageID)

	if _, err := m.connector.TrashMessage(ctx, messageID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if _, err := m.refreshMessage(ctx, messageID, ""); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return m.UpdateUnreadCount(ctx)
}

// Delete removes the message remotely and then locally. A message already gone
// remotely is still removed locally.
func (m *Manager) Delete(ctx context.Context, messageID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Manager.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, m.account.ID)
	span.LogKV("messageId", messageID)

	if err := m.connector.DeleteMessage(ctx, messageID); err != nil && !errors.Is(err, internalerrors.ErrMessageNotFound) {
		tracing.TraceErr(span, err)
		return err
	}
	if err := m.deleteLocalMessage(ctx, messageID, nil); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return m.UpdateUnreadCount(ctx)
}

// Send composes and sends the outbox message, threadID is empty for a new conversation.
func (m *Manager) Send(ctx context.Context, outbox *models.EmailOutboxMessage, threadID string) (*models.EmailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Manager.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, m.account.ID)
	tracing.TagEntity(span, outbox.ID)

	raw, err := m.composer.Compose(ctx, m.account, outbox)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	sent, err := m.connector.SendMessage(ctx, raw, threadID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	message, err := m.refreshMessage(ctx, sent.ID, "")
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return message, m.UpdateUnreadCount(ctx)
}

func (m *Manager) CreateDraft(ctx context.Context, outbox *models.EmailOutboxMessage) (*models.EmailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Manager.CreateDraft")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, m.account.ID)
	tracing.TagEntity(span, outbox.ID)

	raw, err := m.composer.Compose(ctx, m.account, outbox)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	draft, err := m.connector.CreateDraft(ctx, raw)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	message, err := m.refreshMessage(ctx, draft.Message.ID, draft.DraftID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return message, m.UpdateUnreadCount(ctx)
}

// UpdateDraft replaces the content of an existing remote draft. Gmail issues a new message
// for the draft, the local message of the previous version is removed.
func (m *Manager) UpdateDraft(ctx context.Context, outbox *models.EmailOutboxMessage, draftID string) (*models.EmailMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Manager.UpdateDraft")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, m.account.ID)
	tracing.TagEntity(span, outbox.ID)
	span.LogKV("draftId", draftID)

	raw, err := m.composer.Compose(ctx, m.account, outbox)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	draft, err := m.connector.UpdateDraft(ctx, raw, draftID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	message, err := m.refreshMessage(ctx, draft.Message.ID, draft.DraftID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if outbox.DraftMessageID != "" && outbox.DraftMessageID != message.ID {
		if err := m.repos.EmailMessageRepository.Delete(ctx, outbox.DraftMessageID); err != nil {
			m.log.Errorf("failed to delete previous draft message %s for account %s: %v", outbox.DraftMessageID, m.account.ID, err)
		}
	}
	return message, m.UpdateUnreadCount(ctx)
}

// refreshMessage re-fetches the authoritative remote state of a message and stores it.
// A message gone remotely is deleted locally and ErrMessageNotFound is returned.
func (m *Manager) refreshMessage(ctx context.Context, messageID, draftID string) (*models.EmailMessage, error) {
	info, err := m.connector.GetMessageInfo(ctx, messageID)
	if errors.Is(err, internalerrors.ErrMessageNotFound) {
		if derr := m.deleteLocalMessage(ctx, messageID, nil); derr != nil {
			return nil, derr
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if _, err := m.storeMessageInfo(ctx, info, draftID); err != nil {
		return nil, err
	}
	return m.repos.EmailMessageRepository.GetByMessageID(ctx, m.account.ID, messageID)
}
