// Package pricing derives order totals from line items. Everything here is
// pure; amounts are exact decimals until Rounded is called.
package pricing

import (
	"github.com/printpoint/print-shop-backend/internal/lineitem"
	"github.com/shopspring/decimal"
)

var (
	// TaxRate is a flat rate, not geography aware.
	TaxRate = decimal.RequireFromString("0.08")
	// FlatShipping applies to any non-empty cart.
	FlatShipping = decimal.RequireFromString("4.99")
)

// Breakdown is the monetary summary of a set of line items.
type Breakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Calculate expects items that already passed lineitem validation.
func Calculate(items []lineitem.LineItem) Breakdown {
	if len(items) == 0 {
		return Breakdown{
			Subtotal: decimal.Zero,
			Tax:      decimal.Zero,
			Shipping: decimal.Zero,
			Total:    decimal.Zero,
		}
	}

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	tax := subtotal.Mul(TaxRate)

	return Breakdown{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: FlatShipping,
		Total:    subtotal.Add(tax).Add(FlatShipping),
	}
}

// Rounded rounds every component to cents and rebuilds Total from the
// rounded parts, so Total == Subtotal + Tax + Shipping still holds exactly.
func (b Breakdown) Rounded() Breakdown {
	sub := b.Subtotal.Round(2)
	tax := b.Tax.Round(2)
	ship := b.Shipping.Round(2)
	return Breakdown{
		Subtotal: sub,
		Tax:      tax,
		Shipping: ship,
		Total:    sub.Add(tax).Add(ship),
	}
}

// Consistent reports whether Total equals the sum of its components.
func (b Breakdown) Consistent() bool {
	return b.Total.Equal(b.Subtotal.Add(b.Tax).Add(b.Shipping))
}

// MinorUnits converts an amount to the smallest currency unit (paise, cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}
