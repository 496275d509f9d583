package handler

import (
	"context"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/application/export"
)

// ArchiveURLHeader carries the presigned link of an archived copy
const ArchiveURLHeader = "X-Archive-URL"

// Exporter turns invoices into PDF documents
type Exporter interface {
	Export(ctx context.Context, id uuid.UUID) (*export.Artifact, error)
	Capture(ctx context.Context, req export.CaptureRequest) (*export.Artifact, error)
}

// CaptureRequest is an invoice preview rendered by the client
type CaptureRequest struct {
	HTML     string `json:"html" binding:"required"`
	BaseURL  string `json:"baseUrl" binding:"omitempty,url"`
	Filename string `json:"filename" binding:"max=255"`
}

// ExportHandler serves invoice PDFs
type ExportHandler struct {
	BaseHandler
	exporter Exporter
}

// NewExportHandler creates a new export handler
func NewExportHandler(exporter Exporter) *ExportHandler {
	return &ExportHandler{exporter: exporter}
}

// Download renders a stored invoice as a PDF attachment.
// GET /invoices/:id/pdf
func (h *ExportHandler) Download(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	artifact, err := h.exporter.Export(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.sendPDF(c, artifact)
}

// Capture renders the invoice preview posted by the client.
// POST /exports/capture
func (h *ExportHandler) Capture(c *gin.Context) {
	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	artifact, err := h.exporter.Capture(c.Request.Context(), export.CaptureRequest{
		HTML:     req.HTML,
		BaseURL:  req.BaseURL,
		Filename: req.Filename,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.sendPDF(c, artifact)
}

func (h *ExportHandler) sendPDF(c *gin.Context, artifact *export.Artifact) {
	c.Header("Content-Disposition", attachment(artifact.Filename))
	c.Header("Cache-Control", "no-store")
	if artifact.ArchiveURL != "" {
		c.Header(ArchiveURLHeader, artifact.ArchiveURL)
	}
	c.Data(http.StatusOK, "application/pdf", artifact.Data)
}

// attachment builds a Content-Disposition value, quoting or RFC 2231 encoding the
// filename as needed
func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
