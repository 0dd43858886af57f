package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value in the cart currency.
type Money = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// UnitPrice resolves the price of a single unit. The per-unit amount wins; otherwise the
// total is spread over the quantity. Missing data resolves to zero.
func UnitPrice(perUnit, total *Money, quantity int) Money {
	if perUnit != nil {
		return *perUnit
	}
	if total != nil && quantity > 0 {
		return total.Div(decimal.NewFromInt(int64(quantity)))
	}
	return decimal.Zero
}

// Item describes the discounted portion of a cart line.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Adjustment is the discount value applied to a set of items.
type Adjustment struct {
	Percentage        *float64
	FixedAmount       *float64
	AppliesToEachItem bool
}

// Summary aggregates the estimated effect of an adjustment.
type Summary struct {
	Subtotal Money
	Discount Money
	Total    Money
}

// Compute estimates how much an adjustment takes off the provided items.
func Compute(items []Item, adj Adjustment) Summary {
	subtotal := decimal.Zero
	units := 0
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty))))
		units += it.Qty
	}
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}

	discount := decimal.Zero
	switch {
	case adj.Percentage != nil:
		discount = subtotal.Mul(decimal.NewFromFloat(*adj.Percentage)).Div(hundred)
	case adj.FixedAmount != nil:
		discount = decimal.NewFromFloat(*adj.FixedAmount)
		if adj.AppliesToEachItem {
			discount = discount.Mul(decimal.NewFromInt(int64(units)))
		}
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	discount = discount.Round(2)
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}
