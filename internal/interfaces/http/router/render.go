package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/invoicer/backend/internal/infrastructure/logger"
	"github.com/invoicer/backend/internal/interfaces/http/handler"
	"github.com/invoicer/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// maxDocumentBytes bounds the HTML accepted by the rendering service
const maxDocumentBytes = 20 << 20

// NewRenderEngine builds the rendering service. The endpoint is mounted at
// /api/generate-pdf and /generate-pdf and answers any origin.
func NewRenderEngine(h *handler.RenderHandler, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type"},
		ExposeHeaders:   []string{"Content-Disposition"},
	}))
	engine.Use(middleware.BodyLimit(maxDocumentBytes))

	engine.NoMethod(h.MethodNotAllowed)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	engine.GET("/health", h.Health)
	for _, path := range []string{"/api/generate-pdf", "/generate-pdf"} {
		engine.POST(path, h.GeneratePDF)
	}
	return engine
}
