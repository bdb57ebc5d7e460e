package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	appidentity "github.com/schoolbill/backend/internal/application/identity"
)

// AuthHandler handles login, token refresh and logout
type AuthHandler struct {
	BaseHandler
	auth *appidentity.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth *appidentity.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login authenticates a user and issues a token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req appidentity.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Username and password are required")
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, resp)
}

// Refresh exchanges a refresh token for a new token pair. The presented
// refresh token is revoked in the process.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req appidentity.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Refresh token is required")
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, pair)
}

// LogoutRequest is the payload for logout
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout revokes the caller's access token and, when provided, the
// refresh token too.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	// Body is optional; logout with just the access token is allowed.
	_ = c.ShouldBindJSON(&req)

	accessToken := bearerToken(c)
	if accessToken == "" {
		h.BadRequest(c, "Missing access token")
		return
	}

	if err := h.auth.Logout(c.Request.Context(), accessToken, req.RefreshToken); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, gin.H{"message": "Logged out"})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
	}
}
