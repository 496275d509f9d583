package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/identity"
	"github.com/invoicer/backend/internal/infrastructure/auth"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/invoicer/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(accessTTL time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-at-least-32-chars",
		RefreshSecret:          "test-refresh-secret-key-32-chars",
		AccessTokenExpiration:  accessTTL,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "invoicer-test",
	})
}

func newAuthRouter(cfg JWTMiddlewareConfig, handler gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), JWTAuthMiddlewareWithConfig(cfg))
	router.GET("/api/v1/invoices", handler)
	router.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func serveWithToken(router *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set(AuthHeaderKey, header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.False(t, resp.Success)
	return resp.Error
}

func TestJWTAuthMiddleware_ValidTokenSetsPrincipal(t *testing.T) {
	jwtService := newTestJWTService(15 * time.Minute)
	userID := uuid.New()
	pair, err := jwtService.GenerateTokenPair(userID, "owner@example.com")
	require.NoError(t, err)

	var principal uuid.UUID
	router := newAuthRouter(DefaultJWTConfig(jwtService), func(c *gin.Context) {
		id, ok := identity.PrincipalFromContext(c.Request.Context())
		assert.True(t, ok)
		principal = id

		claims := GetJWTClaims(c)
		require.NotNil(t, claims)
		assert.Equal(t, "owner@example.com", claims.Email)
		assert.Equal(t, userID.String(), GetJWTUserID(c))
		assert.Equal(t, pair.AccessToken, GetJWTToken(c))
		c.Status(http.StatusOK)
	})

	w := serveWithToken(router, "/api/v1/invoices", BearerPrefix+pair.AccessToken)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, principal)
}

func TestJWTAuthMiddleware_Rejects(t *testing.T) {
	jwtService := newTestJWTService(15 * time.Minute)
	pair, err := jwtService.GenerateTokenPair(uuid.New(), "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", dto.ErrCodeTokenInvalid},
		{"wrong scheme", "Basic " + pair.AccessToken, dto.ErrCodeTokenInvalid},
		{"empty bearer", BearerPrefix + "  ", dto.ErrCodeTokenInvalid},
		{"garbage token", BearerPrefix + "not.a.jwt", dto.ErrCodeTokenInvalid},
		{"refresh token used as access", BearerPrefix + pair.RefreshToken, dto.ErrCodeTokenInvalid},
	}

	router := newAuthRouter(DefaultJWTConfig(jwtService), func(c *gin.Context) {
		t.Fatal("handler must not run")
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveWithToken(router, "/api/v1/invoices", tt.header)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			errInfo := decodeError(t, w)
			assert.Equal(t, tt.code, errInfo.Code)
			assert.NotEmpty(t, errInfo.RequestID)
		})
	}
}

func TestJWTAuthMiddleware_ExpiredToken(t *testing.T) {
	jwtService := newTestJWTService(-time.Minute)
	pair, err := jwtService.GenerateTokenPair(uuid.New(), "")
	require.NoError(t, err)

	router := newAuthRouter(DefaultJWTConfig(jwtService), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := serveWithToken(router, "/api/v1/invoices", BearerPrefix+pair.AccessToken)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeTokenExpired, decodeError(t, w).Code)
}

func TestJWTAuthMiddleware_RevokedToken(t *testing.T) {
	jwtService := newTestJWTService(15 * time.Minute)
	pair, err := jwtService.GenerateTokenPair(uuid.New(), "")
	require.NoError(t, err)

	claims, err := jwtService.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)

	blacklist := auth.NewInMemoryTokenBlacklist()
	require.NoError(t, blacklist.AddToBlacklist(context.Background(), claims.ID, time.Hour))

	cfg := DefaultJWTConfig(jwtService)
	cfg.TokenBlacklist = blacklist
	router := newAuthRouter(cfg, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := serveWithToken(router, "/api/v1/invoices", BearerPrefix+pair.AccessToken)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeTokenRevoked, decodeError(t, w).Code)
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	router := newAuthRouter(DefaultJWTConfig(newTestJWTService(time.Minute)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := serveWithToken(router, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthMiddleware_PreflightPasses(t *testing.T) {
	router := gin.New()
	router.Use(JWTAuthMiddleware(newTestJWTService(time.Minute)))
	router.OPTIONS("/api/v1/invoices", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/invoices", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestGetJWTClaims_Absent(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetJWTClaims(c))
	assert.Empty(t, GetJWTUserID(c))
}
