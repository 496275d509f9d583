package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/application/identity"
)

// =====================
// Auth Request DTOs
// =====================

// LoginRequest represents the request body for user login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,max=128"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest optionally names the refresh token to revoke with the access token
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// =====================
// Auth Response DTOs
// =====================

// TokenResponse represents the token data in auth responses
type TokenResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token,omitempty"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at,omitzero"`
	TokenType             string    `json:"token_type"`
}

// AuthUserResponse represents user data in auth responses
type AuthUserResponse struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// SessionResponse represents the response body for login and refresh
type SessionResponse struct {
	Token TokenResponse    `json:"token"`
	User  AuthUserResponse `json:"user"`
}

// LogoutResponse represents the response body for logout
type LogoutResponse struct {
	Message string `json:"message"`
}

// ToAuthUserResponse converts user info
func ToAuthUserResponse(u identity.UserInfo) AuthUserResponse {
	return AuthUserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		LastLoginAt: u.LastLoginAt,
	}
}

// ToSessionResponse converts a session
func ToSessionResponse(s *identity.Session) SessionResponse {
	return SessionResponse{
		Token: TokenResponse{
			AccessToken:           s.AccessToken,
			RefreshToken:          s.RefreshToken,
			AccessTokenExpiresAt:  s.ExpiresAt,
			RefreshTokenExpiresAt: s.RefreshTokenExpiresAt,
			TokenType:             s.TokenType,
		},
		User: ToAuthUserResponse(s.User),
	}
}
