package invoicing

import (
	"context"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/invoice"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a mock implementation of invoice.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) InsertInvoice(ctx context.Context, inv *invoice.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockRepository) FindInvoice(ctx context.Context, ownerID, id uuid.UUID) (*invoice.Invoice, error) {
	args := m.Called(ctx, ownerID, id)
	if fn, ok := args.Get(0).(func(ownerID, id uuid.UUID) (*invoice.Invoice, error)); ok {
		return fn(ownerID, id)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func (m *MockRepository) ListInvoices(ctx context.Context, ownerID uuid.UUID) ([]*invoice.Invoice, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*invoice.Invoice), args.Error(1)
}

func (m *MockRepository) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockRepository) DeleteInvoice(ctx context.Context, ownerID, id uuid.UUID) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

func (m *MockRepository) ListInvoiceNumbers(ctx context.Context, ownerID uuid.UUID, prefix string) ([]string, error) {
	args := m.Called(ctx, ownerID, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRepository) FindLineItems(ctx context.Context, invoiceIDs []uuid.UUID) (map[uuid.UUID][]invoice.LineItem, error) {
	args := m.Called(ctx, invoiceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]invoice.LineItem), args.Error(1)
}

func (m *MockRepository) DeleteLineItems(ctx context.Context, invoiceID uuid.UUID) error {
	args := m.Called(ctx, invoiceID)
	return args.Error(0)
}

func (m *MockRepository) InsertLineItemsViaRoutine(ctx context.Context, invoiceID uuid.UUID, items []invoice.LineItem) error {
	args := m.Called(ctx, invoiceID, items)
	return args.Error(0)
}

func (m *MockRepository) InsertLineItems(ctx context.Context, invoiceID uuid.UUID, items []invoice.LineItem) error {
	args := m.Called(ctx, invoiceID, items)
	return args.Error(0)
}

var _ invoice.Repository = (*MockRepository)(nil)
