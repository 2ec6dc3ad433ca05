// internal/handlers/user.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/idsee/registry-backend/internal/i18n"
	"github.com/idsee/registry-backend/internal/services"
	"github.com/idsee/registry-backend/internal/utils"
)

// UserHandler serves the caller's own in-app notifications.
type UserHandler struct {
	notificationService *services.NotificationService
}

func NewUserHandler(notificationService *services.NotificationService) *UserHandler {
	return &UserHandler{
		notificationService: notificationService,
	}
}

// GET /notifications
func (h *UserHandler) Notifications(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c, 20)
	notifications, err := h.notificationService.List(c.Request.Context(), actor.ID, params.ToPage())
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, notifications, gin.H{
		"page":  params.Page,
		"limit": params.Limit,
	})
}

// PUT /notifications/:id/read
func (h *UserHandler) MarkNotificationRead(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), actor, id); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyNotificationMarked),
	})
}
