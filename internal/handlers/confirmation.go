// internal/handlers/confirmation.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/idsee/registry-backend/internal/i18n"
	"github.com/idsee/registry-backend/internal/services"
	"github.com/idsee/registry-backend/internal/utils"
)

type ConfirmationHandler struct {
	confirmationService *services.ConfirmationService
}

func NewConfirmationHandler(confirmationService *services.ConfirmationService) *ConfirmationHandler {
	return &ConfirmationHandler{
		confirmationService: confirmationService,
	}
}

// GET /confirmations/pending
func (h *ConfirmationHandler) ListPending(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	pending, err := h.confirmationService.ListPending(c.Request.Context(), actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"registrations": pending,
	})
}

// GET /confirmations/history
func (h *ConfirmationHandler) History(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	history, err := h.confirmationService.History(c.Request.Context(), actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"registrations": history,
	})
}

// POST /confirmations/:registrationId/confirm
func (h *ConfirmationHandler) Confirm(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	registrationID, ok := uuidParam(c, "registrationId")
	if !ok {
		return
	}

	reg, err := h.confirmationService.Confirm(c.Request.Context(), actor, registrationID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":            i18n.T(lang, i18n.KeyRegistrationConfirmed),
		"status":             reg.Status,
		"external_reference": reg.ExternalReference,
	})
}

// POST /confirmations/:registrationId/reject
func (h *ConfirmationHandler) Reject(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	registrationID, ok := uuidParam(c, "registrationId")
	if !ok {
		return
	}

	var req services.RejectRequest
	if !bindJSON(c, &req) {
		return
	}

	reg, err := h.confirmationService.Reject(c.Request.Context(), actor, registrationID, req.Reason)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyRegistrationRejected),
		"status":  reg.Status,
	})
}
