package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	hundred       = decimal.NewFromInt(100)
	amountPrinter = message.NewPrinter(language.English)
)

// Totals holds the figures derived from an invoice. None of them are stored.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Due      decimal.Decimal
}

// ComputeTotals derives subtotal, tax, total and due amount.
// Results are exact decimals and may be negative, e.g. when the discount exceeds the total.
func ComputeTotals(inv *Invoice) Totals {
	subtotal := decimal.Zero
	for _, li := range inv.LineItems {
		subtotal = subtotal.Add(li.LineTotal())
	}
	tax := subtotal.Mul(inv.TaxRate).Div(hundred)
	total := subtotal.Add(tax).Sub(inv.Discount)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    total,
		Due:      total.Sub(inv.AdvancePaid),
	}
}

// FormatAmount renders d with two decimals and comma thousands separators.
// Example: -1234.5 -> "-1,234.50"
func FormatAmount(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	fixed := d.StringFixed(2)
	fraction := fixed[len(fixed)-2:]

	whole := d.Truncate(0).BigInt()
	grouped := whole.String()
	if whole.IsInt64() {
		grouped = amountPrinter.Sprintf("%d", whole.Int64())
	}
	return sign + grouped + "." + fraction
}

// FormatCurrency prefixes the formatted amount with a currency symbol, keeping the sign first
func FormatCurrency(symbol string, d decimal.Decimal) string {
	s := FormatAmount(d)
	if strings.HasPrefix(s, "-") {
		return "-" + symbol + s[1:]
	}
	return symbol + s
}
