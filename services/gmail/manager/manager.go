// Package manager keeps the local copy of one Gmail account in step with the remote mailbox.
package manager

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/services/gmail/builders"
)

type Manager struct {
	account   *models.EmailAccount
	connector interfaces.GmailConnector
	repos     *repository.Repositories
	composer  interfaces.MessageComposer
	cfg       *config.GmailSyncConfig
	log       logger.Logger

	labels         *builders.StoredLabelResolver
	labelBuilder   *builders.LabelBuilder
	messageBuilder *builders.MessageBuilder
}

func NewManager(account *models.EmailAccount, connector interfaces.GmailConnector, repos *repository.Repositories, composer interfaces.MessageComposer, cfg *config.GmailSyncConfig, log logger.Logger) *Manager {
	labels := builders.NewStoredLabelResolver(repos.EmailLabelRepository, connector)
	return &Manager{
		account:        account,
		connector:      connector,
		repos:          repos,
		composer:       composer,
		cfg:            cfg,
		log:            log,
		labels:         labels,
		labelBuilder:   builders.NewLabelBuilder(repos.EmailLabelRepository),
		messageBuilder: builders.NewMessageBuilder(repos.EmailMessageRepository, labels, cfg.UnreadLabel),
	}
}

// SynchronizeLabels refreshes the whole label catalogue of the account.
func (m *Manager) SynchronizeLabels(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Manager.SynchronizeLabels")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, m.account.ID)

	payloads, err := m.connector.ListLabels(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	for _, payload := range payloads {
		label, _, err := m.labelBuilder.GetOrCreateLabel(ctx, m.account, payload)
		if err != nil {
			m.log.Warnf("skipping label %v for account %s: %v", payload, m.account.ID, err)
			continue
		}
		if err := m.labelBuilder.Save(ctx, label); err != nil {
			m.log.Errorf("failed to save label %s for account %s: %v", label.LabelID, m.account.ID, err)
		}
	}
	m.labels.Forget()

	span.LogKV("labels", len(payloads))
	return nil
}

// GetLabel returns the local label for a remote label id, fetching and storing it when unknown.
func (m *Manager) GetLabel(ctx context.Context, labelID string) (*models.EmailLabel, error) {
	return m.labels.GetLabel(ctx, m.account, labelID)
}

func (m *Manager) UpdateUnreadCount(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Manager.UpdateUnreadCount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if err := m.repos.EmailLabelRepository.RecomputeUnreadCounts(ctx, m.account.ID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// isFatal reports errors that must abort a pass instead of being skipped per record.
func isFatal(err error) bool {
	return errors.Is(err, internalerrors.ErrAuth) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
