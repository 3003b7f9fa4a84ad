package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/application"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/middleware"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/response"
)

// AuthHandler exposes the auth provider endpoints.
type AuthHandler struct {
	service *application.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service *application.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// RegisterRoutes registers the auth routes. The service doubles as the
// token verifier for the authenticated ones.
func (h *AuthHandler) RegisterRoutes(r gin.IRouter) {
	a := r.Group("/api/v1/auth")
	{
		a.POST("/signup", h.SignUp)
		a.POST("/signin", h.SignIn)
		a.POST("/refresh", h.Refresh)

		authed := a.Group("")
		authed.Use(middleware.AuthMiddleware(h.service))
		authed.POST("/signout", h.SignOut)
		authed.GET("/session", h.Session)
	}
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req application.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email and password are required")
		return
	}
	result, err := h.service.SignUp(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req application.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email and password are required")
		return
	}
	result, err := h.service.SignIn(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req application.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "refresh_token is required")
		return
	}
	result, err := h.service.Refresh(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// SignOut revokes the caller's tokens. The body is optional.
func (h *AuthHandler) SignOut(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	var req application.SignOutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
	}
	if err := h.service.SignOut(c.Request.Context(), claims, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"signed_out": true})
}

// Session returns the authenticated user.
func (h *AuthHandler) Session(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	user, err := h.service.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"user": user})
}
