// internal/handlers/admin.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/idsee/registry-backend/internal/i18n"
	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/services"
	"github.com/idsee/registry-backend/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// GET /admin/stats
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /admin/users
func (h *AdminHandler) GetUsers(c *gin.Context) {
	params := utils.GetPaginationParams(c, 20)

	filter := services.AdminUserFilter{
		Page: params.ToPage(),
	}
	if role := c.Query("role"); role != "" {
		filter.Role = models.Role(strings.ToUpper(role))
	}
	if status := c.Query("status"); status != "" {
		filter.Status = models.VerificationStatus(strings.ToUpper(status))
	}

	users, total, err := h.adminService.ListUsers(c.Request.Context(), filter)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(users, total, params))
}

// GET /admin/users/pending
func (h *AdminHandler) GetPendingUsers(c *gin.Context) {
	users, err := h.adminService.PendingUsers(c.Request.Context())
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"users": users,
	})
}

// PUT /admin/users/:id/verification
func (h *AdminHandler) UpdateUserVerification(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	admin, ok := currentActor(c)
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req services.SetVerificationStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.adminService.SetVerificationStatus(c.Request.Context(), admin, userID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyUserStatusUpdated),
		"user":    user,
	})
}

// PUT /admin/users/:id/suspension
func (h *AdminHandler) UpdateUserSuspension(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	admin, ok := currentActor(c)
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req services.SetSuspensionRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.adminService.SetSuspension(c.Request.Context(), admin, userID, req.Suspended)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyUserStatusUpdated),
		"user":    user,
	})
}

// POST /admin/credits/grant
func (h *AdminHandler) GrantCredits(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	admin, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.GrantCreditsRequest
	if !bindJSON(c, &req) {
		return
	}

	balance, err := h.adminService.GrantCredits(c.Request.Context(), admin, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyCreditsGranted),
		"balance": balance,
	})
}

// POST /admin/bonds/:id/forfeit
func (h *AdminHandler) ForfeitBond(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	admin, ok := currentActor(c)
	if !ok {
		return
	}
	verificationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req services.ForfeitBondRequest
	if !bindJSON(c, &req) {
		return
	}

	verification, err := h.adminService.ForfeitBond(c.Request.Context(), admin, verificationID, req.Reason)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":      i18n.T(lang, i18n.KeyBondForfeited),
		"verification": verification,
	})
}

// GET /admin/registrations
func (h *AdminHandler) GetRegistrations(c *gin.Context) {
	status := models.RegistrationStatus(strings.ToUpper(c.Query("status")))

	registrations, err := h.adminService.ListRegistrations(c.Request.Context(), status)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"registrations": registrations,
	})
}
