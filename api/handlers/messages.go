package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/tracing"
)

type ToggleReadRequest struct {
	Read bool `json:"read"`
}

type LabelsRequest struct {
	AddLabels    []string `json:"addLabels"`
	RemoveLabels []string `json:"removeLabels"`
}

// messageAction resolves the message in the path and enqueues the event built for it
func (h *APIHandlers) messageAction(operation string, action enum.MessageAction, build func(c *gin.Context, messageID string) (interface{}, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "APIHandlers."+operation)
		defer span.Finish()
		tracing.TagComponentRest(span)
		tracing.TagEntity(span, c.Param("id"))

		message, err := h.tenantMessage(ctx, c.Param("id"))
		if err != nil {
			internalError(c, span, err)
			return
		}
		if message == nil {
			notFound(c, "message")
			return
		}

		event, ok := build(c, message.ID)
		if !ok {
			return
		}
		h.enqueue(c, action, message.ID, event)
	}
}

func (h *APIHandlers) ToggleRead() gin.HandlerFunc {
	return h.messageAction("ToggleRead", enum.MessageActionToggleRead, func(c *gin.Context, id string) (interface{}, bool) {
		var request ToggleReadRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, false
		}
		return dto.ToggleReadEmailMessage{MessageID: id, Read: request.Read}, true
	})
}

func (h *APIHandlers) Archive() gin.HandlerFunc {
	return h.messageAction("Archive", enum.MessageActionArchive, func(_ *gin.Context, id string) (interface{}, bool) {
		return dto.ArchiveEmailMessage{MessageID: id}, true
	})
}

func (h *APIHandlers) Trash() gin.HandlerFunc {
	return h.messageAction("Trash", enum.MessageActionTrash, func(_ *gin.Context, id string) (interface{}, bool) {
		return dto.TrashEmailMessage{MessageID: id}, true
	})
}

func (h *APIHandlers) Delete() gin.HandlerFunc {
	return h.messageAction("Delete", enum.MessageActionDelete, func(_ *gin.Context, id string) (interface{}, bool) {
		return dto.DeleteEmailMessage{MessageID: id}, true
	})
}

func (h *APIHandlers) Labels() gin.HandlerFunc {
	return h.messageAction("Labels", enum.MessageActionLabels, func(c *gin.Context, id string) (interface{}, bool) {
		var request LabelsRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, false
		}
		if len(request.AddLabels) == 0 && len(request.RemoveLabels) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no labels to add or remove"})
			return nil, false
		}
		return dto.AddAndRemoveLabelsEmailMessage{
			MessageID:    id,
			AddLabels:    request.AddLabels,
			RemoveLabels: request.RemoveLabels,
		}, true
	})
}
