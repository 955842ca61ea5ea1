package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/tracing"
)

func (h *APIHandlers) outboxAction(operation string, action enum.MessageAction, build func(outboxID string) interface{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "APIHandlers."+operation)
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagEntity(span, c.Param("id"))

		outbox, err := h.tenantOutbox(ctx, c.Param("id"))
		if err != nil {
			internalError(c, span, err)
			return
		}
		if outbox == nil {
			notFound(c, "outbox message")
			return
		}

		h.enqueue(c, action, outbox.ID, build(outbox.ID))
	}
}

func (h *APIHandlers) Send() gin.HandlerFunc {
	return h.outboxAction("Send", enum.MessageActionSend, func(id string) interface{} {
		return dto.SendEmailMessage{OutboxMessageID: id}
	})
}

func (h *APIHandlers) CreateDraft() gin.HandlerFunc {
	return h.outboxAction("CreateDraft", enum.MessageActionDraft, func(id string) interface{} {
		return dto.CreateDraftEmailMessage{OutboxMessageID: id}
	})
}

func (h *APIHandlers) UpdateDraft() gin.HandlerFunc {
	return h.outboxAction("UpdateDraft", enum.MessageActionDraft, func(id string) interface{} {
		return dto.UpdateDraftEmailMessage{OutboxMessageID: id}
	})
}
