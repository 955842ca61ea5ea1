package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
	"github.com/customeros/mailsync/services/synclock"
)

type AccountStatusResponse struct {
	ID           string     `json:"id"`
	EmailAddress string     `json:"emailAddress"`
	IsAuthorized bool       `json:"isAuthorized"`
	SyncState    string     `json:"syncState"`
	SyncError    string     `json:"syncError,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	FirstSync    bool       `json:"firstSync"`
}

// GetAccount returns the sync status of one account
func (h *APIHandlers) GetAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "APIHandlers.GetAccount")
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagAccount(span, c.Param("id"))

		account, err := h.tenantAccount(ctx, c.Param("id"))
		if err != nil {
			internalError(c, span, err)
			return
		}
		if account == nil {
			notFound(c, "account")
			return
		}

		c.JSON(http.StatusOK, AccountStatusResponse{
			ID:           account.ID,
			EmailAddress: account.EmailAddress,
			IsAuthorized: account.IsAuthorized,
			SyncState:    account.SyncState.String(),
			SyncError:    account.SyncError,
			LastSyncedAt: account.LastSyncedAt,
			FirstSync:    account.IsFirstSync(),
		})
	}
}

// SyncAccount enqueues an immediate sync pass for one account
func (h *APIHandlers) SyncAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "APIHandlers.SyncAccount")
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagAccount(span, c.Param("id"))

		account, err := h.tenantAccount(ctx, c.Param("id"))
		if err != nil {
			internalError(c, span, err)
			return
		}
		if account == nil {
			notFound(c, "account")
			return
		}
		if !account.IsAuthorized {
			c.JSON(http.StatusConflict, gin.H{"error": "account is not authorized"})
			return
		}

		if account.IsFirstSync() {
			h.enqueueFirstSync(c, span, account.ID)
			return
		}
		if err := h.publisher.PublishSyncEmailAccount(ctx, dto.SyncEmailAccount{AccountID: account.ID, NotBefore: utils.Now()}); err != nil {
			internalError(c, span, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "id": account.ID})
	}
}

// enqueueFirstSync hands the first sync lock over to the task, so at most one full scan runs.
func (h *APIHandlers) enqueueFirstSync(c *gin.Context, span opentracing.Span, accountID string) {
	ctx := opentracing.ContextWithSpan(c.Request.Context(), span)

	lock := synclock.NewFirstSyncLock(h.repos.SyncLockRepository, accountID, h.syncLockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		internalError(c, span, err)
		return
	}
	if !acquired {
		c.JSON(http.StatusConflict, gin.H{"error": "first sync already running"})
		return
	}

	event := dto.FirstSyncEmailAccount{AccountID: accountID, LockOwner: lock.Owner(), NotBefore: utils.Now()}
	if err := h.publisher.PublishFirstSyncEmailAccount(ctx, event); err != nil {
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			h.log.Errorf("failed to release first sync lock for account %s: %v", accountID, releaseErr)
		}
		internalError(c, span, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "id": accountID})
}
