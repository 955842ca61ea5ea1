package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/tracing"
)

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status reports how many syncable accounts are in each sync state
func Status(accounts interfaces.EmailAccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "Status", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		syncable, err := accounts.ListSyncable(ctx)
		if err != nil {
			internalError(c, span, err)
			return
		}

		states := make(map[string]int)
		for _, account := range syncable {
			states[account.SyncState.String()]++
		}
		c.JSON(http.StatusOK, gin.H{"accounts": len(syncable), "syncState": states})
	}
}
