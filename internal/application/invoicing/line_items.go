package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/invoice"
	"github.com/invoicer/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LineItemStore is the part of invoice.Repository the writer needs
type LineItemStore interface {
	InsertLineItemsViaRoutine(ctx context.Context, invoiceID uuid.UUID, items []invoice.LineItem) error
	InsertLineItems(ctx context.Context, invoiceID uuid.UUID, items []invoice.LineItem) error
}

// LineItemWriter persists a full item set: the server-side routine first,
// then the direct insert under bounded retries.
type LineItemWriter struct {
	store    LineItemStore
	attempts int
	step     time.Duration
	logger   *zap.Logger
}

// NewLineItemWriter creates a writer using the insert half of policy
func NewLineItemWriter(store LineItemStore, policy RetryPolicy, log *zap.Logger) *LineItemWriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &LineItemWriter{
		store:    store,
		attempts: policy.InsertAttempts,
		step:     policy.InsertStep,
		logger:   log,
	}
}

// Write returns the last direct-insert error when every path failed
func (w *LineItemWriter) Write(ctx context.Context, invoiceID uuid.UUID, items []invoice.LineItem) error {
	ctx, log := logger.WithInvoiceID(ctx, w.logger, invoiceID.String())

	err := w.store.InsertLineItemsViaRoutine(ctx, invoiceID, items)
	if err == nil {
		log.Debug("Line items inserted via routine", zap.Int("count", len(items)))
		return nil
	}
	log.Warn("Routine call failed, trying direct insert", zap.Error(err))

	attempt := 0
	err = retry(ctx, w.attempts, w.step, func() error {
		attempt++
		return w.store.InsertLineItems(ctx, invoiceID, items)
	}, func(err error, wait time.Duration) {
		log.Warn("Direct line item insert failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		log.Error("Line item insert failed on every attempt",
			zap.Int("attempts", attempt),
			zap.Error(err))
		return err
	}

	log.Debug("Line items inserted via direct insert",
		zap.Int("count", len(items)),
		zap.Int("attempt", attempt))
	return nil
}
