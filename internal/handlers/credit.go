// internal/handlers/credit.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/idsee/registry-backend/internal/i18n"
	"github.com/idsee/registry-backend/internal/services"
	"github.com/idsee/registry-backend/internal/utils"
)

type CreditHandler struct {
	creditService *services.CreditService
}

func NewCreditHandler(creditService *services.CreditService) *CreditHandler {
	return &CreditHandler{
		creditService: creditService,
	}
}

// GET /credits/bundles
func (h *CreditHandler) Bundles(c *gin.Context) {
	utils.SuccessResponse(c, gin.H{
		"bundles": h.creditService.Bundles(),
	})
}

// GET /credits
func (h *CreditHandler) Balance(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	balance, err := h.creditService.Balance(c.Request.Context(), actor.ID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, balance)
}

// GET /credits/transactions
func (h *CreditHandler) Transactions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c, 50)
	entries, err := h.creditService.Transactions(c.Request.Context(), actor.ID, params.ToPage())
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, entries, gin.H{
		"page":  params.Page,
		"limit": params.Limit,
	})
}

// POST /credits/purchase
func (h *CreditHandler) Purchase(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.PurchaseRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.creditService.Purchase(c.Request.Context(), actor, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyCreditsPurchased),
		"bundle":  result.Bundle,
		"balance": result.Balance,
	})
}
