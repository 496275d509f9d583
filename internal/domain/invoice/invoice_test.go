package invoice

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoice(items ...LineItem) *Invoice {
	return &Invoice{
		BaseEntity:    shared.NewBaseEntity(),
		OwnerID:       uuid.New(),
		InvoiceNumber: "20240115001",
		Date:          "2024-01-15",
		DueDate:       "2024-02-15",
		BusinessName:  "AtoB Traders",
		CustomerName:  "Rahim Uddin",
		LineItems:     items,
	}
}

func item(qty int, cost string) LineItem {
	return LineItem{ID: uuid.New(), ItemName: "Item", Quantity: qty, UnitCost: decimal.RequireFromString(cost)}
}

// ============================================
// Validation Tests
// ============================================

func TestInvoice_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(inv *Invoice)
		wantMsg string
	}{
		{"valid", func(inv *Invoice) {}, ""},
		{"missing number", func(inv *Invoice) { inv.InvoiceNumber = "" }, MsgMissingRequiredFields},
		{"missing business", func(inv *Invoice) { inv.BusinessName = "" }, MsgMissingRequiredFields},
		{"missing customer", func(inv *Invoice) { inv.CustomerName = "" }, MsgMissingRequiredFields},
		{"no line items", func(inv *Invoice) { inv.LineItems = nil }, MsgLineItemsRequired},
		{"bad date", func(inv *Invoice) { inv.DueDate = "15/02/2024" }, "Dates must use the YYYY-MM-DD format"},
		{"empty dates allowed", func(inv *Invoice) { inv.Date, inv.DueDate = "", "" }, ""},
		{"negative discount", func(inv *Invoice) { inv.Discount = decimal.NewFromInt(-1) }, "Tax rate, discount and advance paid cannot be negative"},
		{"zero quantity", func(inv *Invoice) { inv.LineItems = append(inv.LineItems, item(0, "5")) }, "Quantity must be at least 1"},
		{"negative unit cost", func(inv *Invoice) { inv.LineItems[0] = item(2, "-0.01") }, "Unit cost cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := newTestInvoice(item(1, "10"))
			tt.mutate(inv)
			err := inv.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrValidation))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestNewLineItem(t *testing.T) {
	li, err := NewLineItem("Shirt", "Cotton", "XL", 2, decimal.NewFromInt(350))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, li.ID)
	assert.True(t, li.LineTotal().Equal(decimal.NewFromInt(700)))

	_, err = NewLineItem("Shirt", "", "", 0, decimal.NewFromInt(1))
	assert.Error(t, err)

	_, err = NewLineItem("Shirt", "", "", 1, decimal.NewFromInt(-1))
	assert.Error(t, err)
}

func TestInvoice_AsDraft(t *testing.T) {
	inv := newTestInvoice(item(1, "10"))
	inv.Stamp(time.Now(), time.Now())
	require.True(t, inv.IsPersisted())

	draft := inv.AsDraft()
	assert.Equal(t, uuid.Nil, draft.ID)
	assert.False(t, draft.IsPersisted())
	assert.Nil(t, draft.UpdatedAt)
	assert.Equal(t, inv.InvoiceNumber, draft.InvoiceNumber)

	draft.LineItems[0].ItemName = "changed"
	assert.Equal(t, "Item", inv.LineItems[0].ItemName)
}

// ============================================
// Totals Tests
// ============================================

func TestComputeTotals(t *testing.T) {
	inv := newTestInvoice(item(2, "100.50"), item(3, "0.10"))
	inv.TaxRate = decimal.RequireFromString("7.5")
	inv.Discount = decimal.RequireFromString("10")
	inv.AdvancePaid = decimal.RequireFromString("50")

	totals := ComputeTotals(inv)

	assert.Equal(t, "201.3", totals.Subtotal.String())
	assert.Equal(t, "15.0975", totals.Tax.String())
	assert.Equal(t, "206.3975", totals.Total.String())
	assert.Equal(t, "156.3975", totals.Due.String())
}

func TestComputeTotals_Identity(t *testing.T) {
	inv := newTestInvoice(item(7, "19.99"), item(1, "0.01"), item(12, "3.333"))
	inv.TaxRate = decimal.RequireFromString("15")
	inv.Discount = decimal.RequireFromString("4.2")
	inv.AdvancePaid = decimal.RequireFromString("1")

	totals := inv.Totals()

	sum := decimal.Zero
	for _, li := range inv.LineItems {
		sum = sum.Add(decimal.NewFromInt(int64(li.Quantity)).Mul(li.UnitCost))
	}
	expectedTotal := sum.Mul(decimal.NewFromInt(1).Add(inv.TaxRate.Div(decimal.NewFromInt(100)))).Sub(inv.Discount)
	assert.True(t, expectedTotal.Equal(totals.Total), "total %s != %s", totals.Total, expectedTotal)
	assert.True(t, totals.Due.Equal(totals.Total.Sub(inv.AdvancePaid)))
}

func TestComputeTotals_NegativeDueNotClamped(t *testing.T) {
	inv := newTestInvoice(item(1, "100"))
	inv.Discount = decimal.NewFromInt(150)
	inv.AdvancePaid = decimal.NewFromInt(20)

	totals := ComputeTotals(inv)

	assert.True(t, totals.Total.Equal(decimal.NewFromInt(-50)))
	assert.True(t, totals.Due.Equal(decimal.NewFromInt(-70)))
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"5", "5.00"},
		{"999.999", "1,000.00"},
		{"1234.5", "1,234.50"},
		{"1234567.891", "1,234,567.89"},
		{"-70", "-70.00"},
		{"-1234.5", "-1,234.50"},
		{"-0.001", "0.00"},
		{"0.005", "0.01"},
		{"9876543210.5", "9,876,543,210.50"},
		{"12345678901234567890.1", "12345678901234567890.10"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "৳1,500.00", FormatCurrency("৳", decimal.NewFromInt(1500)))
	assert.Equal(t, "-৳70.00", FormatCurrency("৳", decimal.NewFromInt(-70)))
}

// ============================================
// Number Tests
// ============================================

func TestDatePrefix_UsesUTC(t *testing.T) {
	dhaka := time.FixedZone("BST", 6*60*60)
	local := time.Date(2024, 3, 2, 3, 0, 0, 0, dhaka)
	assert.Equal(t, "20240301", DatePrefix(local))
}

func TestNextNumber(t *testing.T) {
	prefix := "20240115"

	assert.Equal(t, "20240115001", NextNumber(prefix, nil))
	assert.Equal(t, "20240115004", NextNumber(prefix, []string{"20240115001", "20240115003"}))
	assert.Equal(t, "20240115002", NextNumber(prefix, []string{"20240115abc", "20240115001"}))
	assert.Equal(t, "202401151000", NextNumber(prefix, []string{"20240115999"}))
	assert.Equal(t, "202401151001", NextNumber(prefix, []string{"202401151000", "20240115999"}))
}

func TestSequenceOf(t *testing.T) {
	assert.Equal(t, 0, SequenceOf("2024"))
	assert.Equal(t, 0, SequenceOf("20240115"))
	assert.Equal(t, 7, SequenceOf("20240115007"))
	assert.Equal(t, 12, SequenceOf("2024011512x4"))
}
