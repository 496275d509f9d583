package printing

import (
	"bytes"
	"context"
	"time"
)

// pdfMagic opens every PDF document
var pdfMagic = []byte("%PDF")

// A4 in inches, the only paper size printed
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
)

// RenderRequest contains the parameters for rendering HTML to PDF
type RenderRequest struct {
	// HTML is a complete, self-contained document
	HTML string
	// Filename is used for logging and the download name
	Filename string
}

// RenderResult contains the output from PDF rendering
type RenderResult struct {
	// PDFData is the raw PDF file content
	PDFData []byte
	// RenderDuration is how long the rendering took
	RenderDuration time.Duration
}

// PDFRenderer converts a self-contained HTML document to a PDF
type PDFRenderer interface {
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
}

// IsPDF reports whether data is non-empty and starts with the PDF signature
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}
