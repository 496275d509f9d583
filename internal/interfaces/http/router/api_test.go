package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/application/export"
	"github.com/invoicer/backend/internal/application/identity"
	"github.com/invoicer/backend/internal/domain/invoice"
	"github.com/invoicer/backend/internal/domain/shared"
	"github.com/invoicer/backend/internal/infrastructure/auth"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/invoicer/backend/internal/interfaces/http/dto"
	"github.com/invoicer/backend/internal/interfaces/http/handler"
	"github.com/invoicer/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

type stubSessions struct{}

func (stubSessions) SignIn(context.Context, string, string) (*identity.Session, error) {
	return nil, shared.NewDomainError(shared.CodeUnauthenticated, identity.MsgInvalidCredentials)
}

func (stubSessions) SignOut(context.Context, string, string) error { return nil }

func (stubSessions) Refresh(context.Context, string) (*identity.Session, error) {
	return nil, shared.NewDomainError(shared.CodeUnauthenticated, "Invalid refresh token")
}

func (stubSessions) CurrentUser(context.Context) (*identity.UserInfo, error) {
	return nil, shared.NewDomainError(shared.CodeUnauthenticated, "User not authenticated")
}

type stubInvoices struct {
	listed []*invoice.Invoice
}

func (s *stubInvoices) ListAll(context.Context) ([]*invoice.Invoice, error) { return s.listed, nil }

func (s *stubInvoices) GetByID(context.Context, uuid.UUID) (*invoice.Invoice, error) {
	return nil, shared.NewDomainError(shared.CodeNotFound, "Invoice not found")
}

func (s *stubInvoices) GenerateNextNumber(context.Context) (string, error) { return "20240115001", nil }

func (s *stubInvoices) Create(_ context.Context, draft *invoice.Invoice) (*invoice.Invoice, error) {
	return draft, nil
}

func (s *stubInvoices) Update(_ context.Context, inv *invoice.Invoice) (*invoice.Invoice, error) {
	return inv, nil
}

func (s *stubInvoices) Delete(context.Context, uuid.UUID) error { return nil }

type stubExporter struct{}

func (stubExporter) Export(context.Context, uuid.UUID) (*export.Artifact, error) {
	return &export.Artifact{Filename: "Invoice-1.pdf", Data: []byte("%PDF-1.7")}, nil
}

func (stubExporter) Capture(context.Context, export.CaptureRequest) (*export.Artifact, error) {
	return nil, errors.New("not used")
}

type apiFixture struct {
	handler http.Handler
	jwt     *auth.JWTService
	dbErr   error
}

func newAPIFixture(t *testing.T, httpCfg config.HTTPConfig) *apiFixture {
	t.Helper()

	f := &apiFixture{
		jwt: auth.NewJWTService(config.JWTConfig{
			Secret:                 "router-test-secret-that-is-long-enough",
			AccessTokenExpiration:  time.Hour,
			RefreshTokenExpiration: 24 * time.Hour,
			Issuer:                 "invoice-backend",
		}),
	}

	limiter := middleware.NewRateLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)

	engine, err := NewAPIEngine(APIConfig{
		HTTP:         httpCfg,
		JWT:          middleware.DefaultJWTConfig(f.jwt),
		LoginLimiter: limiter,
	}, APIHandlers{
		Auth:    handler.NewAuthHandler(stubSessions{}),
		Invoice: handler.NewInvoiceHandler(&stubInvoices{listed: []*invoice.Invoice{}}),
		Export:  handler.NewExportHandler(stubExporter{}),
		System: handler.NewSystemHandler(pingerFunc(func(context.Context) error {
			return f.dbErr
		}), "test"),
	})
	require.NoError(t, err)
	f.handler = engine
	return f
}

func (f *apiFixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) bearer(t *testing.T) map[string]string {
	t.Helper()
	pair, err := f.jwt.GenerateTokenPair(uuid.New(), "owner@atob.example")
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + pair.AccessToken}
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAPIEngine_Health(t *testing.T) {
	f := newAPIFixture(t, config.HTTPConfig{})

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := f.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	}

	f.dbErr = errors.New("connection refused")
	w := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, decodeEnvelope(t, w).Success)
}

func TestAPIEngine_InvoicesRequireToken(t *testing.T) {
	f := newAPIFixture(t, config.HTTPConfig{})

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/invoices"},
		{http.MethodGet, "/api/v1/invoices/next-number"},
		{http.MethodGet, "/api/v1/invoices/" + uuid.NewString()},
		{http.MethodPost, "/api/v1/invoices"},
		{http.MethodDelete, "/api/v1/invoices/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/invoices/" + uuid.NewString() + "/pdf"},
		{http.MethodPost, "/api/v1/exports/capture"},
		{http.MethodPost, "/api/v1/auth/logout"},
		{http.MethodGet, "/api/v1/auth/me"},
	}
	for _, r := range routes {
		w := f.do(r.method, r.path, "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", r.method, r.path)
		assert.Equal(t, dto.ErrCodeTokenInvalid, decodeEnvelope(t, w).Error.Code)
	}
}

func TestAPIEngine_AuthenticatedRoutes(t *testing.T) {
	f := newAPIFixture(t, config.HTTPConfig{})
	headers := f.bearer(t)

	w := f.do(http.MethodGet, "/api/v1/invoices", "", headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())

	w = f.do(http.MethodGet, "/api/v1/invoices/next-number", "", headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "20240115001")

	w = f.do(http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), "", headers)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decodeEnvelope(t, w).Error.Code)

	w = f.do(http.MethodGet, "/api/v1/invoices/"+uuid.NewString()+"/pdf", "", headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestAPIEngine_LoginIsThrottled(t *testing.T) {
	f := newAPIFixture(t, config.HTTPConfig{})
	body := `{"email":"owner@atob.example","password":"wrong-password"}`

	for range 2 {
		w := f.do(http.MethodPost, "/api/v1/auth/login", body, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := f.do(http.MethodPost, "/api/v1/auth/login", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, dto.ErrCodeRateLimited, decodeEnvelope(t, w).Error.Code)
}

func TestAPIEngine_NotFoundAndMethodNotAllowed(t *testing.T) {
	f := newAPIFixture(t, config.HTTPConfig{})

	w := f.do(http.MethodGet, "/api/v1/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decodeEnvelope(t, w).Error.Code)

	w = f.do(http.MethodPatch, "/api/v1/invoices", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, dto.ErrCodeMethodNotAllowed, decodeEnvelope(t, w).Error.Code)
}

func TestAPIEngine_CORS(t *testing.T) {
	preflight := map[string]string{
		"Origin":                         "https://app.atob.example",
		"Access-Control-Request-Method":  http.MethodPut,
		"Access-Control-Request-Headers": "Authorization, Content-Type",
	}

	t.Run("listed origin", func(t *testing.T) {
		f := newAPIFixture(t, config.HTTPConfig{
			CORSAllowOrigins: []string{"https://app.atob.example"},
			CORSAllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			CORSAllowHeaders: []string{"Authorization", "Content-Type"},
		})

		w := f.do(http.MethodOptions, "/api/v1/invoices/"+uuid.NewString(), "", preflight)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.atob.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unlisted origin", func(t *testing.T) {
		f := newAPIFixture(t, config.HTTPConfig{
			CORSAllowOrigins: []string{"https://other.example"},
			CORSAllowMethods: []string{"GET"},
		})

		w := f.do(http.MethodGet, "/health", "", map[string]string{"Origin": "https://app.atob.example"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("wildcard exposes download headers", func(t *testing.T) {
		f := newAPIFixture(t, config.HTTPConfig{CORSAllowOrigins: []string{"*"}, CORSAllowMethods: []string{"GET"}})

		w := f.do(http.MethodGet, "/health", "", map[string]string{"Origin": "https://app.atob.example"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
	})
}
