package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Validation messages returned to callers verbatim
const (
	MsgMissingRequiredFields = "Missing required fields"
	MsgLineItemsRequired     = "At least one line item is required"
)

// DateLayout is the form of Invoice.Date and Invoice.DueDate
const DateLayout = "2006-01-02"

// LineItem represents one billed line of an invoice.
// It has no lifecycle of its own and is replaced wholesale when the invoice is saved.
type LineItem struct {
	ID          uuid.UUID
	ItemName    string
	Description string
	Size        string
	Quantity    int
	UnitCost    decimal.Decimal
}

// NewLineItem creates a line item, rejecting non-positive quantities and negative costs
func NewLineItem(itemName, description, size string, quantity int, unitCost decimal.Decimal) (*LineItem, error) {
	if quantity < 1 {
		return nil, shared.NewDomainError(shared.CodeValidation, "Quantity must be at least 1")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Unit cost cannot be negative")
	}
	return &LineItem{
		ID:          uuid.New(),
		ItemName:    itemName,
		Description: description,
		Size:        size,
		Quantity:    quantity,
		UnitCost:    unitCost,
	}, nil
}

// LineTotal returns quantity * unit cost
func (li LineItem) LineTotal() decimal.Decimal {
	return decimal.NewFromInt(int64(li.Quantity)).Mul(li.UnitCost)
}

// Invoice is the aggregate root: header fields plus its ordered line items.
// Date and DueDate are calendar dates in YYYY-MM-DD form.
type Invoice struct {
	shared.BaseEntity
	OwnerID         uuid.UUID
	InvoiceNumber   string
	Date            string
	DueDate         string
	BusinessName    string
	BusinessEmail   string
	BusinessPhone   string
	BusinessAddress string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	LineItems       []LineItem
	Notes           string
	TaxRate         decimal.Decimal // percent
	Discount        decimal.Decimal // absolute amount
	AdvancePaid     decimal.Decimal
}

// Validate checks the fields required before any store write
func (inv *Invoice) Validate() error {
	if inv.InvoiceNumber == "" || inv.BusinessName == "" || inv.CustomerName == "" {
		return shared.NewDomainError(shared.CodeValidation, MsgMissingRequiredFields)
	}
	if len(inv.LineItems) == 0 {
		return shared.NewDomainError(shared.CodeValidation, MsgLineItemsRequired)
	}
	if inv.TaxRate.IsNegative() || inv.Discount.IsNegative() || inv.AdvancePaid.IsNegative() {
		return shared.NewDomainError(shared.CodeValidation, "Tax rate, discount and advance paid cannot be negative")
	}
	for _, d := range []string{inv.Date, inv.DueDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d); err != nil {
			return shared.NewDomainError(shared.CodeValidation, "Dates must use the YYYY-MM-DD format")
		}
	}
	for _, li := range inv.LineItems {
		if li.Quantity < 1 {
			return shared.NewDomainError(shared.CodeValidation, "Quantity must be at least 1")
		}
		if li.UnitCost.IsNegative() {
			return shared.NewDomainError(shared.CodeValidation, "Unit cost cannot be negative")
		}
	}
	return nil
}

// AsDraft returns a copy stripped of identity and timestamps, ready to be created anew
func (inv *Invoice) AsDraft() *Invoice {
	draft := *inv
	draft.BaseEntity = shared.BaseEntity{}
	draft.LineItems = make([]LineItem, len(inv.LineItems))
	copy(draft.LineItems, inv.LineItems)
	return &draft
}

// Totals computes the derived financial figures of the invoice
func (inv *Invoice) Totals() Totals {
	return ComputeTotals(inv)
}
