// Package tasks holds the queue-driven units of work: the sync scheduler, the per-account
// sync passes and the message actions.
package tasks

import (
	"context"
	"errors"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/services/gmail/manager"
)

type Service struct {
	repos      *repository.Repositories
	connectors interfaces.GmailConnectorFactory
	composer   interfaces.MessageComposer
	publisher  interfaces.EventPublisher
	cfg        *config.GmailSyncConfig
	log        logger.Logger
}

func NewService(
	repos *repository.Repositories,
	connectors interfaces.GmailConnectorFactory,
	composer interfaces.MessageComposer,
	publisher interfaces.EventPublisher,
	cfg *config.GmailSyncConfig,
	log logger.Logger,
) *Service {
	return &Service{
		repos:      repos,
		connectors: connectors,
		composer:   composer,
		publisher:  publisher,
		cfg:        cfg,
		log:        log,
	}
}

func (s *Service) newManager(ctx context.Context, account *models.EmailAccount) (*manager.Manager, error) {
	connector, err := s.connectors.NewConnector(ctx, account)
	if err != nil {
		return nil, err
	}
	return manager.NewManager(account, connector, s.repos, s.composer, s.cfg, s.log), nil
}

// handleAuthError marks the account unauthorized so the scheduler stops picking it up.
func (s *Service) handleAuthError(ctx context.Context, account *models.EmailAccount, err error) {
	if !errors.Is(err, internalerrors.ErrAuth) {
		return
	}
	s.log.Warnf("account %s (%s) is no longer authorized: %v", account.ID, account.EmailAddress, err)
	if err := s.repos.EmailAccountRepository.SetAuthorized(ctx, account.ID, false); err != nil {
		s.log.Errorf("failed to mark account %s unauthorized: %v", account.ID, err)
	}
}
