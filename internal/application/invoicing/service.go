package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/invoice"
	"github.com/invoicer/backend/internal/domain/shared"
	"github.com/invoicer/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Messages surfaced to the client
const (
	MsgNotAccessible = "Invoice was created but is not accessible. This may be a database configuration issue."
	MsgInvoiceGone   = "Invoice not found. It may have been deleted or the ID is incorrect."
)

// State is a step of one persistence attempt
type State string

// Persistence states, in protocol order
const (
	StateDraft            State = "draft"
	StateInserted         State = "inserted"
	StateVerified         State = "verified"
	StateLineItemsPending State = "line_items_pending"
	StateCommitted        State = "committed"
	StateRolledBack       State = "rolled_back"
)

// Service owns the invoice lifecycle of the authenticated principal
type Service struct {
	repo      invoice.Repository
	principal PrincipalResolver
	items     *LineItemWriter
	policy    RetryPolicy
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the clock used for invoice numbers
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithPrincipalResolver overrides how the owning user is identified
func WithPrincipalResolver(r PrincipalResolver) Option {
	return func(s *Service) {
		s.principal = r
	}
}

// NewService creates a new invoicing service
func NewService(repo invoice.Repository, policy RetryPolicy, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		repo:      repo,
		principal: ContextPrincipalResolver{},
		policy:    policy,
		now:       time.Now,
		logger:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.items = NewLineItemWriter(repo, policy, log)
	return s
}

// ListAll returns the principal's invoices newest first, with their line items
func (s *Service) ListAll(ctx context.Context) ([]*invoice.Invoice, error) {
	ownerID, err := s.principal.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	invoices, err := s.repo.ListInvoices(ctx, ownerID)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodePersistence, "Failed to load invoices", err)
	}
	if len(invoices) == 0 {
		return []*invoice.Invoice{}, nil
	}

	ids := make([]uuid.UUID, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	items, err := s.repo.FindLineItems(ctx, ids)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodePersistence, "Failed to load line items", err)
	}
	for _, inv := range invoices {
		inv.LineItems = nonNil(items[inv.ID])
	}
	return invoices, nil
}

// GetByID returns one of the principal's invoices
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	ownerID, err := s.principal.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, ownerID, id)
}

// GenerateNextNumber proposes the next invoice number for today (UTC)
func (s *Service) GenerateNextNumber(ctx context.Context) (string, error) {
	ownerID, err := s.principal.Resolve(ctx)
	if err != nil {
		return "", err
	}

	prefix := invoice.DatePrefix(s.now())
	numbers, err := s.repo.ListInvoiceNumbers(ctx, ownerID, prefix)
	if err != nil {
		return "", shared.WrapDomainError(shared.CodePersistence, "Failed to generate invoice number", err)
	}
	return invoice.NextNumber(prefix, numbers), nil
}

// Create persists a new invoice and its line items.
// A failure after the header row is written deletes the row again.
func (s *Service) Create(ctx context.Context, draft *invoice.Invoice) (*invoice.Invoice, error) {
	ownerID, err := s.principal.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, ownerID, draft)
}

// Update overwrites an existing invoice and replaces its line items.
// An invoice that was never saved is created instead.
func (s *Service) Update(ctx context.Context, inv *invoice.Invoice) (*invoice.Invoice, error) {
	ownerID, err := s.principal.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	ctx, log := logger.WithInvoiceID(ctx, s.logger, inv.ID.String())

	existing, err := s.repo.FindInvoice(ctx, ownerID, inv.ID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, shared.WrapDomainError(shared.CodePersistence, "Failed to verify invoice: "+err.Error(), err)
		}
		if inv.IsPersisted() {
			return nil, shared.NewDomainError(shared.CodeNotFound, MsgInvoiceGone)
		}
		log.Warn("Invoice id not in store, treating as new invoice")
		return s.create(ctx, ownerID, inv.AsDraft())
	}

	previous, err := s.repo.FindLineItems(ctx, []uuid.UUID{existing.ID})
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodePersistence, "Failed to load line items", err)
	}
	existing.LineItems = previous[existing.ID]

	next := *inv
	next.BaseEntity = existing.BaseEntity
	next.OwnerID = ownerID
	if err := s.repo.UpdateInvoice(ctx, &next); err != nil {
		return nil, shared.WrapDomainError(shared.CodePersistence, "Failed to update invoice", err)
	}
	log.Debug("Invoice header updated", zap.String("state", string(StateLineItemsPending)))

	if err := s.repo.DeleteLineItems(ctx, existing.ID); err != nil {
		s.restore(ctx, log, existing)
		return nil, shared.WrapDomainError(shared.CodePersistenceInconsistency, "Failed to replace line items: "+err.Error(), err)
	}
	if err := s.items.Write(ctx, existing.ID, next.LineItems); err != nil {
		s.restore(ctx, log, existing)
		return nil, shared.WrapDomainError(shared.CodePersistenceInconsistency, "Failed to insert line items: "+err.Error(), err)
	}
	log.Debug("Invoice updated", zap.String("state", string(StateCommitted)))

	return s.fetch(ctx, ownerID, existing.ID)
}

// Delete removes one of the principal's invoices with its line items
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ownerID, err := s.principal.Resolve(ctx)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteInvoice(ctx, ownerID, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError(shared.CodeNotFound, "Invoice not found")
		}
		return shared.WrapDomainError(shared.CodePersistence, "Failed to delete invoice", err)
	}
	s.log(ctx).Info("Invoice deleted", zap.String("invoice_id", id.String()))
	return nil
}

func (s *Service) create(ctx context.Context, ownerID uuid.UUID, draft *invoice.Invoice) (*invoice.Invoice, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	inv := draft.AsDraft()
	inv.BaseEntity = shared.NewBaseEntity()
	inv.OwnerID = ownerID

	ctx, log := logger.WithInvoiceID(ctx, s.logger, inv.ID.String())
	log.Debug("Invoice save started", zap.String("state", string(StateDraft)))

	if err := s.repo.InsertInvoice(ctx, inv); err != nil {
		return nil, shared.WrapDomainError(shared.CodePersistence, "Failed to create invoice", err)
	}
	log.Debug("Invoice row inserted", zap.String("state", string(StateInserted)))

	if err := s.verify(ctx, log, ownerID, inv.ID); err != nil {
		s.rollback(ctx, log, ownerID, inv.ID)
		return nil, shared.WrapDomainError(shared.CodePersistenceInconsistency, MsgNotAccessible, err)
	}
	log.Debug("Invoice row verified", zap.String("state", string(StateVerified)))

	log.Debug("Inserting line items",
		zap.String("state", string(StateLineItemsPending)),
		zap.Int("count", len(inv.LineItems)))
	if err := s.items.Write(ctx, inv.ID, inv.LineItems); err != nil {
		s.rollback(ctx, log, ownerID, inv.ID)
		msg := fmt.Sprintf("Failed to insert line items: %v. Invoice has been rolled back.", err)
		return nil, shared.WrapDomainError(shared.CodePersistenceInconsistency, msg, err)
	}
	log.Info("Invoice created",
		zap.String("state", string(StateCommitted)),
		zap.String("invoice_number", inv.InvoiceNumber))

	return s.fetch(ctx, ownerID, inv.ID)
}

// verify polls until the freshly inserted row is readable by its owner
func (s *Service) verify(ctx context.Context, log *logger.ContextLogger, ownerID, id uuid.UUID) error {
	attempt := 0
	return retry(ctx, s.policy.VerifyAttempts, s.policy.VerifyStep, func() error {
		attempt++
		_, err := s.repo.FindInvoice(ctx, ownerID, id)
		return err
	}, func(err error, wait time.Duration) {
		log.Debug("Invoice not yet readable",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
}

// rollback removes a partially created invoice. Failures are logged only.
func (s *Service) rollback(ctx context.Context, log *logger.ContextLogger, ownerID, id uuid.UUID) {
	if err := s.repo.DeleteInvoice(context.WithoutCancel(ctx), ownerID, id); err != nil && !errors.Is(err, shared.ErrNotFound) {
		log.Error("Compensating delete failed", zap.Error(err))
		return
	}
	log.Debug("Invoice rolled back", zap.String("state", string(StateRolledBack)))
}

// restore puts back the header and line items captured before an update
func (s *Service) restore(ctx context.Context, log *logger.ContextLogger, snapshot *invoice.Invoice) {
	ctx = context.WithoutCancel(ctx)
	if err := s.repo.UpdateInvoice(ctx, snapshot); err != nil {
		log.Error("Failed to restore invoice header", zap.Error(err))
		return
	}
	if len(snapshot.LineItems) > 0 {
		if err := s.repo.InsertLineItems(ctx, snapshot.ID, snapshot.LineItems); err != nil {
			log.Error("Failed to restore line items", zap.Error(err))
			return
		}
	}
	log.Debug("Invoice restored", zap.String("state", string(StateRolledBack)))
}

func (s *Service) fetch(ctx context.Context, ownerID, id uuid.UUID) (*invoice.Invoice, error) {
	inv, err := s.repo.FindInvoice(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Invoice not found")
		}
		return nil, shared.WrapDomainError(shared.CodePersistence, "Failed to load invoice", err)
	}

	items, err := s.repo.FindLineItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodePersistence, "Failed to load line items", err)
	}
	inv.LineItems = nonNil(items[id])
	return inv, nil
}

func (s *Service) log(ctx context.Context) *logger.ContextLogger {
	return logger.Or(ctx, s.logger)
}

func nonNil(items []invoice.LineItem) []invoice.LineItem {
	if items == nil {
		return []invoice.LineItem{}
	}
	return items
}
