package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/invoice"
	"github.com/invoicer/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// =====================
// Invoice Request DTOs
// =====================

// LineItemRequest is one line of an invoice save request
type LineItemRequest struct {
	ID          string          `json:"id" binding:"omitempty,uuid"`
	ItemName    string          `json:"itemName"`
	Description string          `json:"description"`
	Size        string          `json:"size"`
	Quantity    int             `json:"quantity" binding:"min=1"`
	UnitCost    decimal.Decimal `json:"unitCost" binding:"nonnegative"`
}

// InvoiceRequest is the body of create and update.
// CreatedAt is echoed back by clients for invoices they loaded from the server.
type InvoiceRequest struct {
	InvoiceNumber   string            `json:"invoiceNumber"`
	Date            string            `json:"date" binding:"omitempty,datetime=2006-01-02"`
	DueDate         string            `json:"dueDate" binding:"omitempty,datetime=2006-01-02"`
	BusinessName    string            `json:"businessName"`
	BusinessEmail   string            `json:"businessEmail" binding:"omitempty,email"`
	BusinessPhone   string            `json:"businessPhone"`
	BusinessAddress string            `json:"businessAddress"`
	CustomerName    string            `json:"customerName"`
	CustomerEmail   string            `json:"customerEmail" binding:"omitempty,email"`
	CustomerAddress string            `json:"customerAddress"`
	LineItems       []LineItemRequest `json:"lineItems" binding:"dive"`
	Notes           string            `json:"notes"`
	TaxRate         decimal.Decimal   `json:"taxRate" binding:"nonnegative"`
	Discount        decimal.Decimal   `json:"discount" binding:"nonnegative"`
	AdvancePaid     decimal.Decimal   `json:"advancePaid" binding:"nonnegative"`
	CreatedAt       *time.Time        `json:"createdAt,omitempty"`
}

// ToDomain builds the invoice to save. id is the invoice being updated, uuid.Nil on create.
func (r InvoiceRequest) ToDomain(id uuid.UUID) (*invoice.Invoice, error) {
	items := make([]invoice.LineItem, 0, len(r.LineItems))
	for _, li := range r.LineItems {
		item, err := invoice.NewLineItem(li.ItemName, li.Description, li.Size, li.Quantity, li.UnitCost)
		if err != nil {
			return nil, err
		}
		if li.ID != "" {
			parsed, err := uuid.Parse(li.ID)
			if err != nil {
				return nil, shared.NewDomainError(shared.CodeValidation, "Invalid line item id")
			}
			item.ID = parsed
		}
		items = append(items, *item)
	}

	inv := &invoice.Invoice{
		BaseEntity:      shared.BaseEntity{ID: id, CreatedAt: r.CreatedAt},
		InvoiceNumber:   r.InvoiceNumber,
		Date:            r.Date,
		DueDate:         r.DueDate,
		BusinessName:    r.BusinessName,
		BusinessEmail:   r.BusinessEmail,
		BusinessPhone:   r.BusinessPhone,
		BusinessAddress: r.BusinessAddress,
		CustomerName:    r.CustomerName,
		CustomerEmail:   r.CustomerEmail,
		CustomerAddress: r.CustomerAddress,
		LineItems:       items,
		Notes:           r.Notes,
		TaxRate:         r.TaxRate,
		Discount:        r.Discount,
		AdvancePaid:     r.AdvancePaid,
	}
	return inv, nil
}

// =====================
// Invoice Response DTOs
// =====================

// LineItemResponse is one line of an invoice as returned to clients
type LineItemResponse struct {
	ID          uuid.UUID   `json:"id"`
	ItemName    string      `json:"itemName"`
	Description string      `json:"description"`
	Size        string      `json:"size"`
	Quantity    int         `json:"quantity"`
	UnitCost    json.Number `json:"unitCost"`
	LineTotal   json.Number `json:"lineTotal"`
}

// TotalsResponse holds the derived figures of an invoice
type TotalsResponse struct {
	Subtotal  json.Number `json:"subtotal"`
	Tax       json.Number `json:"tax"`
	Total     json.Number `json:"total"`
	DueAmount json.Number `json:"dueAmount"`
}

// InvoiceResponse is an invoice as returned to clients
type InvoiceResponse struct {
	ID              uuid.UUID          `json:"id"`
	InvoiceNumber   string             `json:"invoiceNumber"`
	Date            string             `json:"date"`
	DueDate         string             `json:"dueDate"`
	BusinessName    string             `json:"businessName"`
	BusinessEmail   string             `json:"businessEmail"`
	BusinessPhone   string             `json:"businessPhone"`
	BusinessAddress string             `json:"businessAddress"`
	CustomerName    string             `json:"customerName"`
	CustomerEmail   string             `json:"customerEmail"`
	CustomerAddress string             `json:"customerAddress"`
	LineItems       []LineItemResponse `json:"lineItems"`
	Notes           string             `json:"notes"`
	TaxRate         json.Number        `json:"taxRate"`
	Discount        json.Number        `json:"discount"`
	AdvancePaid     json.Number        `json:"advancePaid"`
	Totals          TotalsResponse     `json:"totals"`
	CreatedAt       *time.Time         `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time         `json:"updatedAt,omitempty"`
}

// NextNumberResponse carries a proposed invoice number
type NextNumberResponse struct {
	InvoiceNumber string `json:"invoiceNumber"`
}

// number renders d exactly as a JSON number
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// ToInvoiceResponse converts a domain invoice
func ToInvoiceResponse(inv *invoice.Invoice) InvoiceResponse {
	items := make([]LineItemResponse, len(inv.LineItems))
	for i, li := range inv.LineItems {
		items[i] = LineItemResponse{
			ID:          li.ID,
			ItemName:    li.ItemName,
			Description: li.Description,
			Size:        li.Size,
			Quantity:    li.Quantity,
			UnitCost:    number(li.UnitCost),
			LineTotal:   number(li.LineTotal()),
		}
	}

	totals := inv.Totals()
	return InvoiceResponse{
		ID:              inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		Date:            inv.Date,
		DueDate:         inv.DueDate,
		BusinessName:    inv.BusinessName,
		BusinessEmail:   inv.BusinessEmail,
		BusinessPhone:   inv.BusinessPhone,
		BusinessAddress: inv.BusinessAddress,
		CustomerName:    inv.CustomerName,
		CustomerEmail:   inv.CustomerEmail,
		CustomerAddress: inv.CustomerAddress,
		LineItems:       items,
		Notes:           inv.Notes,
		TaxRate:         number(inv.TaxRate),
		Discount:        number(inv.Discount),
		AdvancePaid:     number(inv.AdvancePaid),
		Totals: TotalsResponse{
			Subtotal:  number(totals.Subtotal),
			Tax:       number(totals.Tax),
			Total:     number(totals.Total),
			DueAmount: number(totals.Due),
		},
		CreatedAt: inv.CreatedAt,
		UpdatedAt: inv.UpdatedAt,
	}
}

// ToInvoiceResponses converts a list of domain invoices
func ToInvoiceResponses(invoices []*invoice.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		out[i] = ToInvoiceResponse(inv)
	}
	return out
}
