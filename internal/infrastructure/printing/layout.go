package printing

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"github.com/invoicer/backend/internal/domain/invoice"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/invoice.html
var invoiceTemplate string

const thankYou = "Thank you for your business!"

// Layout renders the fixed invoice document the preview shows.
// The output is a complete HTML page whose #invoice-preview subtree is the printable invoice.
type Layout struct {
	tmpl     *template.Template
	branding config.BrandingConfig
}

// layoutData is the view model bound to the invoice template
type layoutData struct {
	Invoice    *invoice.Invoice
	Totals     invoice.Totals
	LogoURL    string
	FooterText string
}

// NewLayout parses the embedded invoice template with the given branding
func NewLayout(branding config.BrandingConfig) (*Layout, error) {
	if branding.CurrencySymbol == "" {
		branding.CurrencySymbol = "৳"
	}

	funcMap := template.FuncMap{
		"formatMoney": func(d decimal.Decimal) string {
			return invoice.FormatCurrency(branding.CurrencySymbol, d)
		},
		"formatPercent":  formatPercent,
		"formatDate":     formatDate,
		"formatQuantity": formatQuantity,
		"upper":          upperCase,
	}

	tmpl, err := template.New("invoice").Funcs(funcMap).Parse(invoiceTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse invoice layout: %w", err)
	}
	return &Layout{tmpl: tmpl, branding: branding}, nil
}

// Render produces the invoice page for inv
func (l *Layout) Render(inv *invoice.Invoice) (string, error) {
	data := layoutData{
		Invoice: inv,
		Totals:  inv.Totals(),
		LogoURL: l.branding.LogoURL,
	}
	// The thank-you line is always printed; only distinct branding text gets its own row
	if l.branding.FooterText != thankYou {
		data.FooterText = l.branding.FooterText
	}

	var buf bytes.Buffer
	if err := l.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return buf.String(), nil
}

// formatQuantity groups thousands, e.g. 1200 -> "1,200"
func formatQuantity(n int) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// upperCase is built per call since a Caser keeps state
func upperCase(s string) string {
	return cases.Upper(language.English).String(s)
}

// formatPercent renders a tax rate such as 7.5 as "7.5%"
func formatPercent(rate decimal.Decimal) string {
	return rate.String() + "%"
}

// formatDate renders a YYYY-MM-DD date the way the preview does (M/D/YYYY).
// Unparseable input is returned unchanged.
func formatDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(invoice.DateLayout, s)
	if err != nil {
		return s
	}
	return t.Format("1/2/2006")
}
