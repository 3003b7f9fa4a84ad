package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/application"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/middleware"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/response"
)

// PetHandler handles HTTP requests for the owner's pets.
type PetHandler struct {
	service *application.PetService
}

// NewPetHandler creates a new PetHandler.
func NewPetHandler(service *application.PetService) *PetHandler {
	return &PetHandler{service: service}
}

// RegisterRoutes registers all pet routes.
func (h *PetHandler) RegisterRoutes(r gin.IRouter, verifier middleware.TokenVerifier) {
	pets := r.Group("/api/v1/pets")
	pets.Use(middleware.AuthMiddleware(verifier))
	{
		pets.GET("", h.ListPets)
		pets.POST("", h.CreatePet)
		pets.PUT("/:id", h.UpdatePet)
		pets.DELETE("/:id", h.DeletePet)
	}
}

// ListPets returns the current owner's pets, newest first.
func (h *PetHandler) ListPets(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	result, err := h.service.ListPets(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreatePet creates a pet owned by the caller.
func (h *PetHandler) CreatePet(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.CreatePetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, req.Input.Validate))
		return
	}

	result, err := h.service.CreatePet(c.Request.Context(), ownerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// UpdatePet replaces the editable fields of a pet.
func (h *PetHandler) UpdatePet(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	petID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid pet ID")
		return
	}

	var req application.UpdatePetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, req.Input.Validate))
		return
	}

	result, err := h.service.UpdatePet(c.Request.Context(), ownerID, petID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeletePet removes a pet.
func (h *PetHandler) DeletePet(c *gin.Context) {
	ownerID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	petID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid pet ID")
		return
	}

	if err := h.service.DeletePet(c.Request.Context(), ownerID, petID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"id": petID})
}
