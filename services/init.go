package services

import (
	"github.com/pkg/errors"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/services/events"
	"github.com/customeros/mailsync/services/gmail"
	"github.com/customeros/mailsync/services/gmail/composer"
	"github.com/customeros/mailsync/services/storage"
	"github.com/customeros/mailsync/services/tasks"
)

type Services struct {
	EventsService    *events.EventsService
	StorageService   interfaces.StorageService
	Composer         interfaces.MessageComposer
	Credentials      interfaces.CredentialsProvider
	ConnectorFactory interfaces.GmailConnectorFactory
	Tasks            *tasks.Service
}

// InitServices wires the service graph. Without a RabbitMQ url the events service is
// skipped, which leaves a task service that can only run syncs inline.
func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	s := &Services{}

	var publisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		publisherConfig := &events.PublisherConfig{
			MessageTTL:          events.DefaultMessageTTL,
			MaxRetries:          events.DefaultMaxRetries,
			PublishTimeout:      events.DefaultPublishTimeout,
			ReconnectBackoff:    events.DefaultReconnectBackoff,
			MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
		}

		subscriberConfig := &events.SubscriberConfig{
			MaxRetries:          events.DefaultMaxRetries,
			ReconnectBackoff:    events.DefaultReconnectBackoff,
			MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
			PrefetchCount:       1,
		}

		eventsService, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, publisherConfig, subscriberConfig)
		if err != nil {
			return nil, errors.Wrap(err, "failed to init events service")
		}
		s.EventsService = eventsService
		publisher = eventsService.Publisher
	}

	storageService, err := storage.NewR2StorageService(cfg.R2StorageConfig)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.StorageService = storageService

	s.Composer = composer.NewComposer(s.StorageService, log)
	s.Credentials = gmail.NewAccountCredentials(cfg.GoogleOAuthConfig, repos.EmailAccountRepository, log)
	s.ConnectorFactory = gmail.NewConnectorFactory(s.Credentials, cfg.GmailSyncConfig, log)
	s.Tasks = tasks.NewService(repos, s.ConnectorFactory, s.Composer, publisher, cfg.GmailSyncConfig, log)

	return s, nil
}

func (s *Services) Close() error {
	if s.EventsService != nil {
		return s.EventsService.Close()
	}
	return nil
}
