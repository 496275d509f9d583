package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/invoice"
)

// InvoiceService is the invoice lifecycle used by InvoiceHandler
type InvoiceService interface {
	ListAll(ctx context.Context) ([]*invoice.Invoice, error)
	GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
	GenerateNextNumber(ctx context.Context) (string, error)
	Create(ctx context.Context, draft *invoice.Invoice) (*invoice.Invoice, error)
	Update(ctx context.Context, inv *invoice.Invoice) (*invoice.Invoice, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// InvoiceHandler handles invoice-related HTTP requests
type InvoiceHandler struct {
	BaseHandler
	invoices InvoiceService
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoices InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// List returns the caller's invoices, newest first.
// GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	invoices, err := h.invoices.ListAll(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, ToInvoiceResponses(invoices))
}

// Get returns one invoice with its line items.
// GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	inv, err := h.invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, ToInvoiceResponse(inv))
}

// NextNumber proposes the next free invoice number for today.
// GET /invoices/next-number
func (h *InvoiceHandler) NextNumber(c *gin.Context) {
	number, err := h.invoices.GenerateNextNumber(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, NextNumberResponse{InvoiceNumber: number})
}

// Create saves a new invoice.
// POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	draft, err := req.ToDomain(uuid.Nil)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	inv, err := h.invoices.Create(c.Request.Context(), draft)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, ToInvoiceResponse(inv))
}

// Update overwrites an invoice. An id the server never saw is created instead
// unless the request carries a createdAt.
// PUT /invoices/:id
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	next, err := req.ToDomain(id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	inv, err := h.invoices.Update(c.Request.Context(), next)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, ToInvoiceResponse(inv))
}

// Delete removes an invoice with its line items.
// DELETE /invoices/:id
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	if err := h.invoices.Delete(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}
