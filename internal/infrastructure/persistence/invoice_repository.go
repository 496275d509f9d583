package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/invoice"
	"github.com/invoicer/backend/internal/domain/shared"
	"github.com/invoicer/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// insertLineItemsRoutine is the server-side batch insert created by the migrations.
// It runs with the definer's rights so row-level security does not reject the batch.
const insertLineItemsRoutine = "SELECT insert_line_items_for_invoice(?, ?::jsonb)"

// lineItemBatchSize bounds a single INSERT statement
const lineItemBatchSize = 100

// GormInvoiceRepository implements invoice.Repository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// InsertInvoice writes the header row and stamps the store-assigned timestamps on inv
func (r *GormInvoiceRepository) InsertInvoice(ctx context.Context, inv *invoice.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	inv.Stamp(model.CreatedAt, model.UpdatedAt)
	return nil
}

// FindInvoice reads the owner's header row
func (r *GormInvoiceRepository) FindInvoice(ctx context.Context, ownerID, id uuid.UUID) (*invoice.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}
	return model.ToDomain(), nil
}

// ListInvoices returns the owner's header rows, newest first
func (r *GormInvoiceRepository) ListInvoices(ctx context.Context, ownerID uuid.UUID) ([]*invoice.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	invoices := make([]*invoice.Invoice, len(rows))
	for i := range rows {
		invoices[i] = rows[i].ToDomain()
	}
	return invoices, nil
}

// UpdateInvoice overwrites every mutable header column of an owned invoice
func (r *GormInvoiceRepository) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND user_id = ?", inv.ID, inv.OwnerID).
		Updates(model.UpdateColumns())
	if result.Error != nil {
		return fmt.Errorf("failed to update invoice: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteInvoice removes an owned invoice and its line items in one transaction
func (r *GormInvoiceRepository) DeleteInvoice(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.InvoiceModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete invoice: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}

		// Cascades in Postgres; explicit for stores without enforced foreign keys
		if err := tx.Where("invoice_id = ?", id).Delete(&models.LineItemModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete line items: %w", err)
		}
		return nil
	})
}

// ListInvoiceNumbers returns the owner's invoice numbers that start with prefix
func (r *GormInvoiceRepository) ListInvoiceNumbers(ctx context.Context, ownerID uuid.UUID, prefix string) ([]string, error) {
	var numbers []string
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("user_id = ? AND invoice_number LIKE ?", ownerID, prefix+"%").
		Pluck("invoice_number", &numbers).Error; err != nil {
		return nil, fmt.Errorf("failed to list invoice numbers: %w", err)
	}
	return numbers, nil
}

// FindLineItems loads the items of all given invoices with one query
func (r *GormInvoiceRepository) FindLineItems(ctx context.Context, invoiceIDs []uuid.UUID) (map[uuid.UUID][]invoice.LineItem, error) {
	grouped := make(map[uuid.UUID][]invoice.LineItem, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return grouped, nil
	}

	var rows []models.LineItemModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id IN ?", invoiceIDs).
		Order("position ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load line items: %w", err)
	}

	for i := range rows {
		grouped[rows[i].InvoiceID] = append(grouped[rows[i].InvoiceID], rows[i].ToDomain())
	}
	return grouped, nil
}

// DeleteLineItems removes every item of an invoice
func (r *GormInvoiceRepository) DeleteLineItems(ctx context.Context, invoiceID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Delete(&models.LineItemModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete line items: %w", err)
	}
	return nil
}

// InsertLineItemsViaRoutine inserts the whole set through insert_line_items_for_invoice
func (r *GormInvoiceRepository) InsertLineItemsViaRoutine(ctx context.Context, invoiceID uuid.UUID, items []invoice.LineItem) error {
	payload, err := json.Marshal(models.LineItemPayloads(items))
	if err != nil {
		return fmt.Errorf("failed to encode line items: %w", err)
	}
	if err := r.db.WithContext(ctx).Exec(insertLineItemsRoutine, invoiceID, string(payload)).Error; err != nil {
		return fmt.Errorf("insert_line_items_for_invoice failed: %w", err)
	}
	return nil
}

// InsertLineItems inserts the set directly. Any rows left by an earlier partial
// attempt are cleared first, so the call can be retried safely.
func (r *GormInvoiceRepository) InsertLineItems(ctx context.Context, invoiceID uuid.UUID, items []invoice.LineItem) error {
	rows := make([]*models.LineItemModel, len(items))
	for i, item := range items {
		rows[i] = models.LineItemModelFromDomain(invoiceID, i, item)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoiceID).Delete(&models.LineItemModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear line items: %w", err)
		}
		if err := tx.CreateInBatches(rows, lineItemBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert line items: %w", err)
		}
		return nil
	})
}

var _ invoice.Repository = (*GormInvoiceRepository)(nil)
