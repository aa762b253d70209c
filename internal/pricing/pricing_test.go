package pricing

import (
	"testing"

	"github.com/printpoint/print-shop-backend/internal/lineitem"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(price string, qty int) lineitem.LineItem {
	return lineitem.LineItem{
		Name:        "print",
		Size:        "4×6″",
		Paper:       "Glossy",
		Quantity:    qty,
		UnitPrice:   d(price),
		ProductType: lineitem.Photo,
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestCalculate_SampleOrder(t *testing.T) {
	b := Calculate([]lineitem.LineItem{item("0.75", 3), item("5.00", 10)})

	assertDecimal(t, "52.25", b.Subtotal)
	assertDecimal(t, "4.18", b.Tax)
	assertDecimal(t, "4.99", b.Shipping)
	assertDecimal(t, "61.42", b.Total)
	assert.True(t, b.Consistent())
}

func TestCalculate_EmptyCart(t *testing.T) {
	b := Calculate(nil)

	assert.True(t, b.Subtotal.IsZero())
	assert.True(t, b.Tax.IsZero())
	assert.True(t, b.Shipping.IsZero())
	assert.True(t, b.Total.IsZero())
}

func TestCalculate_Deterministic(t *testing.T) {
	items := []lineitem.LineItem{item("0.10", 7), item("3.50", 1), item("0.35", 13)}

	first := Calculate(items)
	second := Calculate(items)
	assert.Equal(t, first.Total.String(), second.Total.String())
	assert.Equal(t, first.Tax.String(), second.Tax.String())
}

func TestCalculate_NoFloatDrift(t *testing.T) {
	// 0.1 × 3 drifts in binary floating point.
	items := make([]lineitem.LineItem, 0, 30)
	for i := 0; i < 30; i++ {
		items = append(items, item("0.10", 1))
	}
	b := Calculate(items)
	assertDecimal(t, "3.00", b.Subtotal)
	assertDecimal(t, "0.24", b.Tax)
}

func TestRounded_KeepsTotalIntegrity(t *testing.T) {
	// 1.25 × 0.08 = 0.1 exactly, 0.35 × 0.08 = 0.028 → needs rounding.
	for _, price := range []string{"1.25", "0.35", "7.99", "0.01", "1999"} {
		r := Calculate([]lineitem.LineItem{item(price, 3)}).Rounded()
		require.True(t, r.Consistent(), "price %s", price)
		assert.True(t, r.Tax.Equal(r.Tax.Round(2)), "price %s", price)
	}

	r := Calculate([]lineitem.LineItem{item("0.35", 1)}).Rounded()
	assertDecimal(t, "0.03", r.Tax)
	assertDecimal(t, "5.37", r.Total)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(6142), MinorUnits(d("61.42")))
	assert.Equal(t, int64(500), MinorUnits(d("5")))
	assert.Equal(t, int64(3), MinorUnits(d("0.028")))
}
