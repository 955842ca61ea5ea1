// Package handlers exposes the REST surface of the synchronizer. Mutations are not applied
// inline: each request is checked against the caller's tenant and enqueued as a task.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type APIHandlers struct {
	repos       *repository.Repositories
	publisher   interfaces.EventPublisher
	syncLockTTL time.Duration
	log         logger.Logger
}

func InitHandlers(repos *repository.Repositories, publisher interfaces.EventPublisher, syncLockTTL time.Duration, log logger.Logger) *APIHandlers {
	return &APIHandlers{
		repos:       repos,
		publisher:   publisher,
		syncLockTTL: syncLockTTL,
		log:         log,
	}
}

// tenantAccount returns the account when it exists, is live and belongs to the caller's tenant.
func (h *APIHandlers) tenantAccount(ctx context.Context, accountID string) (*models.EmailAccount, error) {
	account, err := h.repos.EmailAccountRepository.GetByID(ctx, accountID)
	if err != nil || account == nil {
		return nil, err
	}
	if account.IsDeleted || account.Tenant != utils.GetTenantFromContext(ctx) {
		return nil, nil
	}
	return account, nil
}

func (h *APIHandlers) tenantMessage(ctx context.Context, id string) (*models.EmailMessage, error) {
	message, err := h.repos.EmailMessageRepository.GetByID(ctx, id)
	if err != nil || message == nil {
		return nil, err
	}
	account, err := h.tenantAccount(ctx, message.AccountID)
	if err != nil || account == nil {
		return nil, err
	}
	return message, nil
}

func (h *APIHandlers) tenantOutbox(ctx context.Context, id string) (*models.EmailOutboxMessage, error) {
	outbox, err := h.repos.EmailOutboxRepository.GetByID(ctx, id)
	if err != nil || outbox == nil {
		return nil, err
	}
	account, err := h.tenantAccount(ctx, outbox.AccountID)
	if err != nil || account == nil {
		return nil, err
	}
	return outbox, nil
}

func (h *APIHandlers) enqueue(c *gin.Context, action enum.MessageAction, entityID string, event interface{}) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "APIHandlers.enqueue")
	defer span.Finish()
	tracing.TagComponentRest(span)
	tracing.TagEntity(span, entityID)
	span.SetTag("action", action.String())

	if err := h.publisher.PublishMessageAction(ctx, entityID, event); err != nil {
		tracing.TraceErr(span, err)
		h.log.Errorf("failed to enqueue %s for %s: %v", action, entityID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue action"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "action": action.String(), "id": entityID})
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

func internalError(c *gin.Context, span opentracing.Span, err error) {
	tracing.TraceErr(span, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
