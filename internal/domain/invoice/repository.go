package invoice

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the owner-scoped persistence operations the invoicing
// protocol is built from. Every invoice row belongs to exactly one owner; line
// item rows are reachable only through their invoice.
type Repository interface {
	// InsertInvoice writes the header row and stamps CreatedAt/UpdatedAt on inv
	InsertInvoice(ctx context.Context, inv *Invoice) error

	// FindInvoice reads a header row for the owner. Line items are not loaded.
	// Returns shared.ErrNotFound when absent or owned by someone else.
	FindInvoice(ctx context.Context, ownerID, id uuid.UUID) (*Invoice, error)

	// ListInvoices returns the owner's header rows, newest first
	ListInvoices(ctx context.Context, ownerID uuid.UUID) ([]*Invoice, error)

	// UpdateInvoice overwrites the header row of an owned invoice
	UpdateInvoice(ctx context.Context, inv *Invoice) error

	// DeleteInvoice removes an owned invoice and its line items
	DeleteInvoice(ctx context.Context, ownerID, id uuid.UUID) error

	// ListInvoiceNumbers returns the owner's invoice numbers starting with prefix
	ListInvoiceNumbers(ctx context.Context, ownerID uuid.UUID, prefix string) ([]string, error)

	// FindLineItems loads the items of several invoices in one query, grouped by
	// invoice id and kept in insertion order
	FindLineItems(ctx context.Context, invoiceIDs []uuid.UUID) (map[uuid.UUID][]LineItem, error)

	// DeleteLineItems removes every item of an invoice
	DeleteLineItems(ctx context.Context, invoiceID uuid.UUID) error

	// InsertLineItemsViaRoutine inserts items through the server-side batch routine
	InsertLineItemsViaRoutine(ctx context.Context, invoiceID uuid.UUID, items []LineItem) error

	// InsertLineItems inserts items with a direct batched insert
	InsertLineItems(ctx context.Context, invoiceID uuid.UUID, items []LineItem) error
}
