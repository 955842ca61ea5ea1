package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/api/handlers"
	"github.com/customeros/mailsync/api/middleware"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
)

const AppSource = "mailsync"

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, repos *repository.Repositories, publisher interfaces.EventPublisher, syncLockTTL time.Duration, log logger.Logger, apikey string) {
	if repos == nil {
		panic("Repositories cannot be nil")
	}
	if publisher == nil {
		panic("Publisher cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	apiHandlers := handlers.InitHandlers(repos, publisher, syncLockTTL, log)

	// Health check and status endpoints (no custom context needed)
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(repos.EmailAccountRepository))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.APIKeyHeader,
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.TenantValidationMiddleware())
	api.Use(middleware.UserIdMiddleware())
	api.Use(middleware.CustomContextMiddleware(AppSource))
	api.Use(middleware.TracingMiddleware())
	{
		accounts := api.Group("/accounts")
		{
			accounts.GET("/:id", apiHandlers.GetAccount())
			accounts.POST("/:id/sync", apiHandlers.SyncAccount())
		}

		messages := api.Group("/messages")
		{
			messages.POST("/:id/read", apiHandlers.ToggleRead())
			messages.POST("/:id/archive", apiHandlers.Archive())
			messages.POST("/:id/trash", apiHandlers.Trash())
			messages.POST("/:id/labels", apiHandlers.Labels())
			messages.DELETE("/:id", apiHandlers.Delete())
		}

		outbox := api.Group("/outbox")
		{
			outbox.POST("/:id/send", apiHandlers.Send())
			outbox.POST("/:id/draft", apiHandlers.CreateDraft())
			outbox.PUT("/:id/draft", apiHandlers.UpdateDraft())
		}
	}
}
