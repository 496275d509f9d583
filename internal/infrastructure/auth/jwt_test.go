package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-at-least-32-chars",
		RefreshSecret:          "test-refresh-secret-key-32-chars",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "test-issuer",
	})
}

func TestNewJWTService_UsesSecretForRefreshIfNotProvided(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "test-secret"})
	assert.Equal(t, []byte("test-secret"), svc.refreshSecret)
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()

	pair, err := svc.GenerateTokenPair(userID, "owner@atob.example")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), pair.AccessTokenExpiresAt, 5*time.Second)

	t.Run("access token", func(t *testing.T) {
		claims, err := svc.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)

		id, err := claims.GetUserUUID()
		require.NoError(t, err)
		assert.Equal(t, userID, id)
		assert.Equal(t, "owner@atob.example", claims.Email)
		assert.Equal(t, TokenTypeAccess, claims.TokenType)
		assert.NotEmpty(t, claims.ID)
		assert.True(t, claims.GetRemainingTTL() > 14*time.Minute)
	})

	t.Run("refresh token", func(t *testing.T) {
		claims, err := svc.ValidateRefreshToken(pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, TokenTypeRefresh, claims.TokenType)
		assert.Empty(t, claims.Email)
	})

	t.Run("token types are not interchangeable", func(t *testing.T) {
		_, err := svc.ValidateAccessToken(pair.RefreshToken)
		assert.Error(t, err)

		_, err = svc.ValidateRefreshToken(pair.AccessToken)
		assert.Error(t, err)
	})
}

func TestJWTService_ValidateErrors(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateAccessToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "another-secret-key-at-least-32-chars", Issuer: "test-issuer", AccessTokenExpiration: time.Minute})
		pair, err := other.GenerateTokenPair(userID, "")
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		issued := newTestJWTService()
		issued.now = func() time.Time { return time.Now().Add(-time.Hour) }
		pair, err := issued.GenerateTokenPair(userID, "")
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		issued := newTestJWTService()
		issued.now = func() time.Time { return time.Now().Add(time.Hour) }
		pair, err := issued.GenerateTokenPair(userID, "")
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenNotYetValid)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		other := newTestJWTService()
		other.issuer = "someone-else"
		pair, err := other.GenerateTokenPair(userID, "")
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user id", func(t *testing.T) {
		claims := svc.claims(time.Now(), userID, "", TokenTypeAccess, time.Minute)
		claims.UserID = ""
		token, err := svc.sign(claims, svc.accessSecret)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrMissingUserID)
	})

	t.Run("non HMAC algorithm", func(t *testing.T) {
		claims := svc.claims(time.Now(), userID, "", TokenTypeAccess, time.Minute)
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestJWTService_RefreshTokenPair(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()

	pair, err := svc.GenerateTokenPair(userID, "owner@atob.example")
	require.NoError(t, err)

	refreshed, old, err := svc.RefreshTokenPair(pair.RefreshToken, "owner@atob.example")
	require.NoError(t, err)
	assert.Equal(t, userID.String(), old.UserID)

	claims, err := svc.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "owner@atob.example", claims.Email)

	// Access tokens are signed with the other secret
	_, _, err = svc.RefreshTokenPair(pair.AccessToken, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_SharedSecretChecksTokenType(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{
		Secret:                 "shared-secret-key-at-least-32-char",
		AccessTokenExpiration:  time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "test-issuer",
	})
	pair, err := svc.GenerateTokenPair(uuid.New(), "owner@atob.example")
	require.NoError(t, err)

	_, _, err = svc.RefreshTokenPair(pair.AccessToken, "")
	assert.ErrorIs(t, err, ErrInvalidTokenType)

	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}
