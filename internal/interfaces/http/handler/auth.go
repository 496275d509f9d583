package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/invoicer/backend/internal/application/identity"
	"github.com/invoicer/backend/internal/interfaces/http/middleware"
)

// SessionService is the sign-in collaborator used by AuthHandler
type SessionService interface {
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(ctx context.Context, accessToken, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*identity.Session, error)
	CurrentUser(ctx context.Context) (*identity.UserInfo, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	BaseHandler
	sessions SessionService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// Login authenticates with email and password and returns a token pair.
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	session, err := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, ToSessionResponse(session))
}

// RefreshToken exchanges a refresh token for a new pair. The old refresh token is revoked.
// POST /auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	session, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, ToSessionResponse(session))
}

// Logout revokes the bearer token and the optional refresh token in the body.
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.GetJWTToken(c)
	if token == "" {
		h.Unauthorized(c, "User not authenticated")
		return
	}

	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.ValidationError(c, err)
		return
	}

	if err := h.sessions.SignOut(c.Request.Context(), token, req.RefreshToken); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, LogoutResponse{Message: "Logged out successfully"})
}

// GetCurrentUser returns the authenticated user.
// GET /auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.sessions.CurrentUser(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, ToAuthUserResponse(*user))
}
