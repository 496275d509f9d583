package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/identity"
)

// EventType names a session change
type EventType string

// Session change notifications
const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Session is an authenticated user with the tokens that prove it
type Session struct {
	User                  UserInfo
	AccessToken           string
	RefreshToken          string
	ExpiresAt             time.Time
	RefreshTokenExpiresAt time.Time
	TokenType             string
}

// UserInfo contains the user fields exposed to clients
type UserInfo struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
	LastLoginAt *time.Time
}

// SessionEvent is delivered to subscribers on every session change
type SessionEvent struct {
	Type   EventType
	UserID uuid.UUID
	At     time.Time
}

// ToUserInfo converts a domain user
func ToUserInfo(u *identity.User) UserInfo {
	return UserInfo{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		LastLoginAt: u.LastLoginAt,
	}
}
