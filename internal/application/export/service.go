// Package export turns invoices into downloadable PDF documents.
package export

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/identity"
	"github.com/invoicer/backend/internal/domain/invoice"
	"github.com/invoicer/backend/internal/domain/shared"
	"github.com/invoicer/backend/internal/infrastructure/logger"
	"github.com/invoicer/backend/internal/infrastructure/printing"
	"go.uber.org/zap"
)

const defaultCaptureFilename = "invoice.pdf"

// InvoiceReader loads an invoice of the current principal
type InvoiceReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
}

// LayoutRenderer produces the invoice page
type LayoutRenderer interface {
	Render(inv *invoice.Invoice) (string, error)
}

// DocumentCapturer reduces a page to a self-contained invoice document
type DocumentCapturer interface {
	Capture(ctx context.Context, doc, baseURL string) (string, error)
}

// Archive keeps a copy of every exported document
type Archive interface {
	Key(ownerID uuid.UUID, filename string) string
	Archive(ctx context.Context, key string, data []byte) error
	DownloadURL(ctx context.Context, key string) (string, time.Time, error)
}

// Artifact is a rendered PDF ready for download
type Artifact struct {
	Filename string
	Data     []byte
	// ArchiveURL is a presigned link to the archived copy, empty when not archived
	ArchiveURL string
}

// CaptureRequest carries a page serialised by a client
type CaptureRequest struct {
	HTML     string
	BaseURL  string
	Filename string
}

// Exporter runs the layout, capture, render and archive steps
type Exporter struct {
	invoices InvoiceReader
	layout   LayoutRenderer
	capturer DocumentCapturer
	renderer printing.PDFRenderer
	archive  Archive
	baseURL  string
	logger   *zap.Logger
}

// Option configures an Exporter
type Option func(*Exporter)

// WithArchive stores every exported invoice in archive
func WithArchive(archive Archive) Option {
	return func(e *Exporter) {
		e.archive = archive
	}
}

// WithAssetBaseURL sets the URL relative asset references of the layout resolve against
func WithAssetBaseURL(baseURL string) Option {
	return func(e *Exporter) {
		e.baseURL = baseURL
	}
}

// NewExporter creates an Exporter
func NewExporter(
	invoices InvoiceReader,
	layout LayoutRenderer,
	capturer DocumentCapturer,
	renderer printing.PDFRenderer,
	log *zap.Logger,
	opts ...Option,
) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Exporter{
		invoices: invoices,
		layout:   layout,
		capturer: capturer,
		renderer: renderer,
		logger:   log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Filename returns the download name of an invoice document
func Filename(invoiceNumber string) string {
	return "Invoice-" + invoiceNumber + ".pdf"
}

// Export renders the invoice id as a PDF named Invoice-{number}.pdf
func (e *Exporter) Export(ctx context.Context, id uuid.UUID) (*Artifact, error) {
	inv, err := e.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	log := logger.Or(ctx, e.logger).With(zap.String("invoice_id", id.String()), zap.String("invoice_number", inv.InvoiceNumber))

	page, err := e.layout.Render(inv)
	if err != nil {
		log.Error("Failed to render invoice layout", zap.Error(err))
		return nil, shared.WrapDomainError(shared.CodeRenderFailure, "Failed to prepare invoice document", err)
	}

	artifact, err := e.render(ctx, page, e.baseURL, Filename(inv.InvoiceNumber))
	if err != nil {
		log.Error("Failed to export invoice", zap.Error(err))
		return nil, err
	}

	if e.archive != nil {
		e.store(ctx, log, inv.OwnerID, artifact)
	}

	log.Info("Invoice exported", zap.Int("bytes", len(artifact.Data)))
	return artifact, nil
}

// Capture renders a page the client serialised itself.
// The document must contain the invoice subtree; it is not archived.
func (e *Exporter) Capture(ctx context.Context, req CaptureRequest) (*Artifact, error) {
	if _, ok := identity.PrincipalFromContext(ctx); !ok {
		return nil, shared.ErrUnauthenticated
	}
	if strings.TrimSpace(req.HTML) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "HTML content is required")
	}
	filename := sanitizeFilename(req.Filename)
	return e.render(ctx, req.HTML, req.BaseURL, filename)
}

func (e *Exporter) render(ctx context.Context, page, baseURL, filename string) (*Artifact, error) {
	doc, err := e.capturer.Capture(ctx, page, baseURL)
	if err != nil {
		return nil, err
	}
	result, err := e.renderer.Render(ctx, &printing.RenderRequest{HTML: doc, Filename: filename})
	if err != nil {
		return nil, err
	}
	if !printing.IsPDF(result.PDFData) {
		return nil, shared.NewDomainError(shared.CodeInvalidArtifact, "Invalid PDF received from server")
	}
	return &Artifact{Filename: filename, Data: result.PDFData}, nil
}

// store archives the artifact; failures are logged and never fail the export
func (e *Exporter) store(ctx context.Context, log *logger.ContextLogger, ownerID uuid.UUID, artifact *Artifact) {
	key := e.archive.Key(ownerID, artifact.Filename)
	if err := e.archive.Archive(ctx, key, artifact.Data); err != nil {
		log.Warn("Failed to archive invoice document", zap.String("key", key), zap.Error(err))
		return
	}
	url, _, err := e.archive.DownloadURL(ctx, key)
	if err != nil {
		log.Warn("Failed to presign archived document", zap.String("key", key), zap.Error(err))
		return
	}
	artifact.ArchiveURL = url
}

// sanitizeFilename keeps a client supplied name safe for Content-Disposition
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" {
		return defaultCaptureFilename
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
