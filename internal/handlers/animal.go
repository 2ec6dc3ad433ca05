// internal/handlers/animal.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/idsee/registry-backend/internal/i18n"
	"github.com/idsee/registry-backend/internal/services"
	"github.com/idsee/registry-backend/internal/utils"
)

type AnimalHandler struct {
	registryService *services.RegistryService
}

func NewAnimalHandler(registryService *services.RegistryService) *AnimalHandler {
	return &AnimalHandler{
		registryService: registryService,
	}
}

// POST /animals
func (h *AnimalHandler) Register(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.RegisterAnimalRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.registryService.RegisterAnimal(c.Request.Context(), actor, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":         i18n.T(lang, i18n.KeyAnimalRegistered),
		"animal_id":       result.AnimalID,
		"registration_id": result.RegistrationID,
		"status":          result.Status,
	})
}

// GET /animals
func (h *AnimalHandler) ListOwn(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	registrations, err := h.registryService.ListOwnRegistrations(c.Request.Context(), actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"animals": registrations,
	})
}

// GET /animals/:id
func (h *AnimalHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	animalID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	animal, err := h.registryService.GetAnimal(c.Request.Context(), actor, animalID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, animal)
}

// POST /animals/:id/health-records
func (h *AnimalHandler) AddHealthRecord(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	animalID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req services.AddHealthRecordRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.registryService.AddHealthRecord(c.Request.Context(), actor, animalID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyHealthRecordAdded),
		"record":  record,
	})
}

// GET /animals/:id/health-records
func (h *AnimalHandler) ListHealthRecords(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	animalID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	records, err := h.registryService.ListHealthRecords(c.Request.Context(), actor, animalID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"records": records,
	})
}

// GET /verify/:chipId
func (h *AnimalHandler) PublicVerify(c *gin.Context) {
	result, err := h.registryService.PublicVerify(c.Request.Context(), c.Param("chipId"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}
