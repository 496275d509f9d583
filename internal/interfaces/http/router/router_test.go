package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func request(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	invoices := NewDomainGroup("invoices", "/invoices").
		GET("", func(c *gin.Context) { c.String(http.StatusOK, "list") }).
		POST("", func(c *gin.Context) { c.String(http.StatusCreated, "created") }).
		PUT("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) }).
		DELETE("/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	NewRouter(engine).Register(invoices).Setup()

	tests := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{http.MethodGet, "/api/v1/invoices", http.StatusOK, "list"},
		{http.MethodPost, "/api/v1/invoices", http.StatusCreated, "created"},
		{http.MethodPut, "/api/v1/invoices/42", http.StatusOK, "42"},
		{http.MethodDelete, "/api/v1/invoices/42", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := request(engine, tt.method, tt.path)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestDomainGroup_Middleware(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("exports", "/exports").
		Use(func(c *gin.Context) {
			c.Header("X-Guard", "applied")
			c.Next()
		})
	g.POST("/capture", func(c *gin.Context) { c.Status(http.StatusOK) })
	g.RegisterRoutes(engine.Group("/api/v1"))

	w := request(engine, http.MethodPost, "/api/v1/exports/capture")
	assert.Equal(t, "applied", w.Header().Get("X-Guard"))
}

func TestDomainGroup_SubgroupInheritsMiddleware(t *testing.T) {
	engine := gin.New()
	auth := NewDomainGroup("auth", "/auth")
	auth.POST("/login", func(c *gin.Context) { c.String(http.StatusOK, "open") })
	auth.Group("session", "").
		Use(func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }).
		GET("/me", func(c *gin.Context) { c.String(http.StatusOK, "me") })

	NewRouter(engine).Register(auth).Setup()

	assert.Equal(t, http.StatusOK, request(engine, http.MethodPost, "/api/v1/auth/login").Code)
	assert.Equal(t, http.StatusUnauthorized, request(engine, http.MethodGet, "/api/v1/auth/me").Code)
}

func TestDomainGroup_Routes(t *testing.T) {
	noop := func(c *gin.Context) {}
	g := NewDomainGroup("invoices", "/invoices")
	g.GET("", noop).GET("/:id/pdf", noop)
	g.Group("drafts", "/drafts").POST("", noop)

	assert.Equal(t, "invoices", g.Name())
	assert.Equal(t, "/invoices", g.Prefix())
	assert.Equal(t, []string{
		"GET /api/v1/invoices",
		"GET /api/v1/invoices/:id/pdf",
		"POST /api/v1/invoices/drafts",
	}, g.Routes("/api/v1"))
}
