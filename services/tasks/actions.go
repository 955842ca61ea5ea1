package tasks

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/services/gmail/manager"
)

type messageAction func(ctx context.Context, mgr *manager.Manager, message *models.EmailMessage) error

// withMessage loads a stored message and its account and runs the action against the account's mailbox.
// Messages or accounts that no longer exist are skipped.
func (s *Service) withMessage(ctx context.Context, operation, id string, action messageAction) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TasksService."+operation)
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, id)

	message, err := s.repos.EmailMessageRepository.GetByID(ctx, id)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if message == nil {
		s.log.Warnf("email message no longer exists: %s", id)
		return nil
	}
	tracing.TagAccount(span, message.AccountID)

	account, err := s.loadAccount(ctx, message.AccountID)
	if err != nil || account == nil {
		tracing.TraceErr(span, err)
		return err
	}
	if !account.IsAuthorized {
		s.log.Warnf("not running %s for message %s, account %s is not authorized", operation, id, account.EmailAddress)
		return nil
	}

	mgr, err := s.newManager(ctx, account)
	if err == nil {
		err = action(ctx, mgr, message)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("failed %s for message %s: %v", operation, id, err)
		s.handleAuthError(ctx, account, err)
		return err
	}
	return nil
}

func (s *Service) ToggleRead(ctx context.Context, event dto.ToggleReadEmailMessage) error {
	return s.withMessage(ctx, "ToggleRead", event.MessageID, func(ctx context.Context, mgr *manager.Manager, message *models.EmailMessage) error {
		return mgr.ToggleRead(ctx, message.MessageID, event.Read)
	})
}

func (s *Service) Archive(ctx context.Context, event dto.ArchiveEmailMessage) error {
	return s.withMessage(ctx, "Archive", event.MessageID, func(ctx context.Context, mgr *manager.Manager, message *models.EmailMessage) error {
		return mgr.Archive(ctx, message.MessageID)
	})
}

func (s *Service) Trash(ctx context.Context, event dto.TrashEmailMessage) error {
	return s.withMessage(ctx, "Trash", event.MessageID, func(ctx context.Context, mgr *manager.Manager, message *models.EmailMessage) error {
		return mgr.Trash(ctx, message.MessageID)
	})
}

func (s *Service) AddAndRemoveLabels(ctx context.Context, event dto.AddAndRemoveLabelsEmailMessage) error {
	return s.withMessage(ctx, "AddAndRemoveLabels", event.MessageID, func(ctx context.Context, mgr *manager.Manager, message *models.EmailMessage) error {
		return mgr.AddAndRemoveLabelsForMessage(ctx, message.MessageID, event.AddLabels, event.RemoveLabels)
	})
}

// Delete flags the message removed and deletes it remotely the first time, or again once it sits in trash.
func (s *Service) Delete(ctx context.Context, event dto.DeleteEmailMessage) error {
	return s.withMessage(ctx, "Delete", event.MessageID, func(ctx context.Context, mgr *manager.Manager, message *models.EmailMessage) error {
		removed := message.IsRemoved
		inTrash := message.HasLabel(s.cfg.TrashLabel)
		if err := s.repos.EmailMessageRepository.SetRemoved(ctx, message.ID, true); err != nil {
			return err
		}
		if removed && !inTrash {
			return nil
		}
		return mgr.Delete(ctx, message.MessageID)
	})
}

type outboxAction func(ctx context.Context, mgr *manager.Manager, account *models.EmailAccount, outbox *models.EmailOutboxMessage) error

// withOutbox runs the action for an outbox message and deletes the outbox entry once it succeeds.
func (s *Service) withOutbox(ctx context.Context, operation, id string, action outboxAction) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TasksService."+operation)
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, id)

	outbox, err := s.repos.EmailOutboxRepository.GetByID(ctx, id)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if outbox == nil {
		err := fmt.Errorf("%w: %s", internalerrors.ErrOutboxNotFound, id)
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagAccount(span, outbox.AccountID)

	account, err := s.loadAccount(ctx, outbox.AccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if account == nil {
		err := fmt.Errorf("%w: %s", internalerrors.ErrAccountNotFound, outbox.AccountID)
		tracing.TraceErr(span, err)
		return err
	}
	if !account.IsAuthorized {
		s.log.Errorf("not running %s for outbox message %s, account %s is not authorized", operation, id, account.EmailAddress)
		return nil
	}

	mgr, err := s.newManager(ctx, account)
	if err == nil {
		err = action(ctx, mgr, account, outbox)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("failed %s for outbox message %s: %v", operation, id, err)
		s.handleAuthError(ctx, account, err)
		return err
	}

	if err := s.repos.EmailOutboxRepository.Delete(ctx, outbox.ID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// SendMessage sends an outbox message. Replies stay in the original thread when it belongs to the same account.
func (s *Service) SendMessage(ctx context.Context, event dto.SendEmailMessage) error {
	return s.withOutbox(ctx, "SendMessage", event.OutboxMessageID, func(ctx context.Context, mgr *manager.Manager, account *models.EmailAccount, outbox *models.EmailOutboxMessage) error {
		threadID := ""
		if outbox.ReplyToMessageID != "" {
			original, err := s.repos.EmailMessageRepository.GetByID(ctx, outbox.ReplyToMessageID)
			if err != nil {
				return err
			}
			if original == nil {
				return fmt.Errorf("%w: %s", internalerrors.ErrMessageNotFound, outbox.ReplyToMessageID)
			}
			if original.AccountID == account.ID {
				threadID = original.ThreadID
			}
		}

		if _, err := mgr.Send(ctx, outbox, threadID); err != nil {
			return err
		}
		s.log.Debugf("message sent from %s", account.EmailAddress)
		return nil
	})
}

func (s *Service) CreateDraft(ctx context.Context, event dto.CreateDraftEmailMessage) error {
	return s.withOutbox(ctx, "CreateDraft", event.OutboxMessageID, func(ctx context.Context, mgr *manager.Manager, account *models.EmailAccount, outbox *models.EmailOutboxMessage) error {
		_, err := mgr.CreateDraft(ctx, outbox)
		return err
	})
}

// UpdateDraft replaces the current draft of an outbox message. A current draft without a remote
// draft id cannot be updated, a new draft is created and the old message deleted instead.
func (s *Service) UpdateDraft(ctx context.Context, event dto.UpdateDraftEmailMessage) error {
	return s.withOutbox(ctx, "UpdateDraft", event.OutboxMessageID, func(ctx context.Context, mgr *manager.Manager, account *models.EmailAccount, outbox *models.EmailOutboxMessage) error {
		var current *models.EmailMessage
		if outbox.DraftMessageID != "" {
			var err error
			current, err = s.repos.EmailMessageRepository.GetByID(ctx, outbox.DraftMessageID)
			if err != nil {
				return err
			}
		}

		if current != nil && current.DraftID != "" {
			_, err := mgr.UpdateDraft(ctx, outbox, current.DraftID)
			return err
		}

		if _, err := mgr.CreateDraft(ctx, outbox); err != nil {
			return err
		}
		if current != nil {
			return mgr.Delete(ctx, current.MessageID)
		}
		return nil
	})
}
