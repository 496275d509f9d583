package handler

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/invoicer/backend/internal/domain/shared"
	"github.com/invoicer/backend/internal/infrastructure/logger"
	"github.com/invoicer/backend/internal/infrastructure/printing"
	"go.uber.org/zap"
)

const defaultPDFName = "invoice.pdf"

// RenderHandler is the rendering service endpoint. Its bodies use the
// plain {"error": ...} shape that browser clients of the service expect.
type RenderHandler struct {
	renderer printing.PDFRenderer
	base64   bool
	logger   *zap.Logger
}

// NewRenderHandler creates a render handler. With asBase64 set, PDFs are returned
// inside a JSON envelope for hosts that cannot return binary bodies.
func NewRenderHandler(renderer printing.PDFRenderer, asBase64 bool, log *zap.Logger) *RenderHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RenderHandler{renderer: renderer, base64: asBase64, logger: log}
}

// GeneratePDF prints the posted HTML document.
// POST /api/generate-pdf
func (h *RenderHandler) GeneratePDF(c *gin.Context) {
	var req printing.GeneratePDFRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.HTML) == "" {
		c.JSON(http.StatusBadRequest, printing.ErrorResponse{Error: "HTML content is required"})
		return
	}
	if req.Filename == "" {
		req.Filename = defaultPDFName
	}

	log := logger.Or(c.Request.Context(), h.logger).With(zap.String("filename", req.Filename))

	result, err := h.renderer.Render(c.Request.Context(), &printing.RenderRequest{
		HTML:     req.HTML,
		Filename: req.Filename,
	})
	if err == nil && !printing.IsPDF(result.PDFData) {
		err = shared.NewDomainError(shared.CodeInvalidArtifact, "Renderer produced no PDF")
	}
	if err != nil {
		log.Error("PDF generation failed", zap.String("code", shared.CodeOf(err)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, printing.ErrorResponse{
			Error:   "Failed to generate PDF",
			Details: err.Error(),
		})
		return
	}
	log.Info("PDF generated",
		zap.Int("bytes", len(result.PDFData)),
		zap.Duration("duration", result.RenderDuration))

	if h.base64 {
		c.JSON(http.StatusOK, printing.Base64Envelope{
			IsBase64Encoded: true,
			Body:            base64.StdEncoding.EncodeToString(result.PDFData),
			Filename:        req.Filename,
		})
		return
	}

	c.Header("Content-Disposition", attachment(req.Filename))
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "application/pdf", result.PDFData)
}

// MethodNotAllowed answers requests using a method the route does not serve
func (h *RenderHandler) MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, printing.ErrorResponse{Error: "Method not allowed"})
}

// Health is the liveness probe of the rendering service.
// GET /health
func (h *RenderHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
