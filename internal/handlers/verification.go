// internal/handlers/verification.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/idsee/registry-backend/internal/i18n"
	"github.com/idsee/registry-backend/internal/services"
	"github.com/idsee/registry-backend/internal/utils"
)

type VerificationHandler struct {
	peerService *services.PeerVerificationService
}

func NewVerificationHandler(peerService *services.PeerVerificationService) *VerificationHandler {
	return &VerificationHandler{
		peerService: peerService,
	}
}

// POST /verification/request
func (h *VerificationHandler) SubmitRequest(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.SubmitVerificationRequest
	if !bindJSON(c, &req) {
		return
	}

	request, err := h.peerService.SubmitRequest(c.Request.Context(), actor, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyVerificationSubmitted),
		"request": request,
	})
}

// POST /verification/request/evidence
func (h *VerificationHandler) UploadEvidence(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "file"), nil)
		return
	}
	defer file.Close()

	request, err := h.peerService.AddEvidence(c.Request.Context(), actor,
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyEvidenceUploaded),
		"request": request,
	})
}

// GET /verification/requests
func (h *VerificationHandler) ListRequests(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	requests, err := h.peerService.ListPendingRequests(c.Request.Context(), actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"requests": requests,
	})
}

// POST /verification/peer/:requestId
func (h *VerificationHandler) PeerVerify(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	requestID, ok := uuidParam(c, "requestId")
	if !ok {
		return
	}

	result, err := h.peerService.PeerVerify(c.Request.Context(), actor, requestID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":           i18n.T(lang, i18n.KeyVerificationApproved),
		"verification_id":   result.VerificationID,
		"bond_amount":       result.BondAmount,
		"bond_locked_until": result.BondLockedUntil,
	})
}

// GET /verification/my-verifications
func (h *VerificationHandler) MyVerifications(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	verifications, err := h.peerService.MyVerifications(c.Request.Context(), actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"verifications": verifications,
	})
}

// POST /verification/release-bond/:verificationId
func (h *VerificationHandler) ReleaseBond(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	verificationID, ok := uuidParam(c, "verificationId")
	if !ok {
		return
	}

	verification, err := h.peerService.ReleaseBond(c.Request.Context(), actor, verificationID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":      i18n.T(lang, i18n.KeyBondReleased),
		"verification": verification,
	})
}
