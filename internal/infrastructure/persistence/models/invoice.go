package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate header.
type InvoiceModel struct {
	BaseModel
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceNumber   string          `gorm:"type:varchar(32);not null;index"`
	Date            *time.Time      `gorm:"type:date"`
	DueDate         *time.Time      `gorm:"type:date"`
	BusinessName    string          `gorm:"type:varchar(200);not null"`
	BusinessEmail   *string         `gorm:"type:varchar(200)"`
	BusinessPhone   *string         `gorm:"type:varchar(50)"`
	BusinessAddress *string         `gorm:"type:text"`
	CustomerName    string          `gorm:"type:varchar(200);not null"`
	CustomerEmail   *string         `gorm:"type:varchar(200)"`
	CustomerAddress *string         `gorm:"type:text"`
	Notes           *string         `gorm:"type:text"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(9,4);not null;default:0"`
	Discount        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AdvancePaid     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the header row to a domain Invoice without line items.
func (m *InvoiceModel) ToDomain() *invoice.Invoice {
	return &invoice.Invoice{
		BaseEntity:      m.BaseModel.ToDomain(),
		OwnerID:         m.UserID,
		InvoiceNumber:   m.InvoiceNumber,
		Date:            fromDate(m.Date),
		DueDate:         fromDate(m.DueDate),
		BusinessName:    m.BusinessName,
		BusinessEmail:   deref(m.BusinessEmail),
		BusinessPhone:   deref(m.BusinessPhone),
		BusinessAddress: deref(m.BusinessAddress),
		CustomerName:    m.CustomerName,
		CustomerEmail:   deref(m.CustomerEmail),
		CustomerAddress: deref(m.CustomerAddress),
		LineItems:       []invoice.LineItem{},
		Notes:           deref(m.Notes),
		TaxRate:         m.TaxRate,
		Discount:        m.Discount,
		AdvancePaid:     m.AdvancePaid,
	}
}

// FromDomain populates the header row from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *invoice.Invoice) {
	m.FromDomainBaseEntity(inv.BaseEntity)
	m.UserID = inv.OwnerID
	m.InvoiceNumber = inv.InvoiceNumber
	m.Date = toDate(inv.Date)
	m.DueDate = toDate(inv.DueDate)
	m.BusinessName = inv.BusinessName
	m.BusinessEmail = nullable(inv.BusinessEmail)
	m.BusinessPhone = nullable(inv.BusinessPhone)
	m.BusinessAddress = nullable(inv.BusinessAddress)
	m.CustomerName = inv.CustomerName
	m.CustomerEmail = nullable(inv.CustomerEmail)
	m.CustomerAddress = nullable(inv.CustomerAddress)
	m.Notes = nullable(inv.Notes)
	m.TaxRate = inv.TaxRate
	m.Discount = inv.Discount
	m.AdvancePaid = inv.AdvancePaid
}

// UpdateColumns returns the mutable header columns, NULLs and zeros included,
// for a full-document update.
func (m *InvoiceModel) UpdateColumns() map[string]any {
	return map[string]any{
		"invoice_number":   m.InvoiceNumber,
		"date":             m.Date,
		"due_date":         m.DueDate,
		"business_name":    m.BusinessName,
		"business_email":   m.BusinessEmail,
		"business_phone":   m.BusinessPhone,
		"business_address": m.BusinessAddress,
		"customer_name":    m.CustomerName,
		"customer_email":   m.CustomerEmail,
		"customer_address": m.CustomerAddress,
		"notes":            m.Notes,
		"tax_rate":         m.TaxRate,
		"discount":         m.Discount,
		"advance_paid":     m.AdvancePaid,
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *invoice.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// LineItemModel is the persistence model for a LineItem.
// Position keeps the input order when several rows share one created_at.
type LineItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemName    string          `gorm:"type:varchar(200);not null"`
	Description *string         `gorm:"type:text"`
	Size        *string         `gorm:"type:varchar(50)"`
	Quantity    int             `gorm:"not null;default:1"`
	UnitCost    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Position    int             `gorm:"not null;default:0"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LineItemModel) TableName() string {
	return "line_items"
}

// ToDomain converts the row to a domain LineItem.
func (m *LineItemModel) ToDomain() invoice.LineItem {
	return invoice.LineItem{
		ID:          m.ID,
		ItemName:    m.ItemName,
		Description: deref(m.Description),
		Size:        deref(m.Size),
		Quantity:    m.Quantity,
		UnitCost:    m.UnitCost,
	}
}

// LineItemModelFromDomain creates a row for the item at the given position.
// Every row gets a fresh id: items only exist through their invoice, and the id
// a client read back from an earlier save may still be stored under another invoice.
func LineItemModelFromDomain(invoiceID uuid.UUID, position int, item invoice.LineItem) *LineItemModel {
	return &LineItemModel{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		ItemName:    item.ItemName,
		Description: nullable(item.Description),
		Size:        nullable(item.Size),
		Quantity:    item.Quantity,
		UnitCost:    item.UnitCost,
		Position:    position,
	}
}

// LineItemPayload is one element of the JSON array accepted by the
// insert_line_items_for_invoice routine, which assigns row ids itself.
type LineItemPayload struct {
	ItemName    string          `json:"item_name"`
	Description *string         `json:"description"`
	Size        *string         `json:"size"`
	Quantity    int             `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Position    int             `json:"position"`
}

// LineItemPayloads builds the routine payload. Quantities below 1 are sent as 1.
func LineItemPayloads(items []invoice.LineItem) []LineItemPayload {
	out := make([]LineItemPayload, len(items))
	for i, item := range items {
		m := LineItemModelFromDomain(uuid.Nil, i, item)
		qty := m.Quantity
		if qty < 1 {
			qty = 1
		}
		out[i] = LineItemPayload{
			ItemName:    m.ItemName,
			Description: m.Description,
			Size:        m.Size,
			Quantity:    qty,
			UnitCost:    m.UnitCost,
			Position:    i,
		}
	}
	return out
}
