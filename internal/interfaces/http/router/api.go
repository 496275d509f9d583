package router

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/invoicer/backend/internal/infrastructure/logger"
	"github.com/invoicer/backend/internal/interfaces/http/dto"
	"github.com/invoicer/backend/internal/interfaces/http/handler"
	"github.com/invoicer/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// APIHandlers are the handlers mounted by NewAPIEngine
type APIHandlers struct {
	Auth    *handler.AuthHandler
	Invoice *handler.InvoiceHandler
	Export  *handler.ExportHandler
	System  *handler.SystemHandler
}

// APIConfig holds the settings of the invoice API engine
type APIConfig struct {
	HTTP config.HTTPConfig
	// JWT authenticates every route outside the auth and health endpoints
	JWT middleware.JWTMiddlewareConfig
	// LoginLimiter throttles sign-in and refresh, nil disables it
	LoginLimiter *middleware.RateLimiter
	Logger       *zap.Logger
}

// NewAPIEngine builds the invoice API: /health plus the /api/v1 routes
func NewAPIEngine(cfg APIConfig, h APIHandlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Secure())
	engine.Use(cors.New(corsConfig(cfg.HTTP)))
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeMethodNotAllowed, "Method not allowed", middleware.GetRequestID(c)))
	})

	engine.GET("/health", h.System.Health)

	middleware.SetupValidator()
	jwtAuth := middleware.JWTAuthMiddlewareWithConfig(cfg.JWT)

	throttle := func(c *gin.Context) { c.Next() }
	if cfg.LoginLimiter != nil {
		throttle = middleware.RateLimit(cfg.LoginLimiter)
	}

	authRoutes := NewDomainGroup("auth", "/auth")
	authRoutes.POST("/login", throttle, h.Auth.Login)
	authRoutes.POST("/refresh", throttle, h.Auth.RefreshToken)
	authRoutes.Group("session", "").
		Use(jwtAuth).
		POST("/logout", h.Auth.Logout).
		GET("/me", h.Auth.GetCurrentUser)

	invoiceRoutes := NewDomainGroup("invoices", "/invoices").Use(jwtAuth)
	invoiceRoutes.GET("", h.Invoice.List)
	invoiceRoutes.GET("/next-number", h.Invoice.NextNumber)
	invoiceRoutes.GET("/:id", h.Invoice.Get)
	invoiceRoutes.POST("", h.Invoice.Create)
	invoiceRoutes.PUT("/:id", h.Invoice.Update)
	invoiceRoutes.DELETE("/:id", h.Invoice.Delete)
	invoiceRoutes.GET("/:id/pdf", h.Export.Download)

	exportRoutes := NewDomainGroup("exports", "/exports").Use(jwtAuth)
	exportRoutes.POST("/capture", h.Export.Capture)

	systemRoutes := NewDomainGroup("system", "")
	systemRoutes.GET("/health", h.System.Health)

	groups := []*DomainGroup{systemRoutes, authRoutes, invoiceRoutes, exportRoutes}
	r := NewRouter(engine, WithAPIVersion("v1"))
	for _, g := range groups {
		r.Register(g)
		log.Debug("Registered routes", zap.String("group", g.Name()), zap.Strings("routes", g.Routes("/api/v1")))
	}
	r.Setup()

	return engine, nil
}

func corsConfig(cfg config.HTTPConfig) cors.Config {
	c := cors.Config{
		AllowMethods:  cfg.CORSAllowMethods,
		AllowHeaders:  cfg.CORSAllowHeaders,
		ExposeHeaders: []string{"Content-Disposition", middleware.RequestIDHeader, handler.ArchiveURLHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSAllowOrigins) == 0 || slices.Contains(cfg.CORSAllowOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORSAllowOrigins
		c.AllowCredentials = true
	}
	return c
}
