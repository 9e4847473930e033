// Package pricing computes cart and order totals.
//
// The same Compute call backs the cart view and checkout, so the amount a
// customer sees before paying is the amount recorded on the order.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/visioncraft/storefront/internal/models"
)

var (
	// TaxRate is the flat sales tax applied to the subtotal.
	TaxRate = decimal.RequireFromString("0.08")
	// FreeShippingThreshold is inclusive: a subtotal of exactly 100.00 ships free.
	FreeShippingThreshold = decimal.RequireFromString("100.00")
	FlatShipping          = decimal.RequireFromString("15.00")
)

// Line is one priced entry.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals are all rounded to two decimals.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Compute prices lines. Each line is rounded half-up to cents before summing.
func Compute(lines []Line) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		lineTotal := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)
	}
	return FromSubtotal(subtotal)
}

// FromSubtotal derives tax, shipping and total from an already summed subtotal.
func FromSubtotal(subtotal decimal.Decimal) Totals {
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(TaxRate).Round(2)

	shipping := FlatShipping
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping).Round(2),
	}
}

// FromCart builds lines from live cart prices.
func FromCart(lines []models.CartLineView) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, Line{UnitPrice: l.UnitPrice().Decimal, Quantity: l.Quantity})
	}
	return out
}

// Money converts the totals into their persisted form.
func (t Totals) Money() (subtotal, tax, shipping, total models.Money) {
	return models.NewMoney(t.Subtotal), models.NewMoney(t.Tax), models.NewMoney(t.Shipping), models.NewMoney(t.Total)
}
