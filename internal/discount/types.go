package discount

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/discount-engine/internal/pricing"
)

// ProductDiscountClass is the discount class the engine evaluates.
const ProductDiscountClass = "PRODUCT"

// SelectionStrategyAll asks the platform to apply every candidate.
const SelectionStrategyAll = "ALL"

const variantTypename = "ProductVariant"

// Input is the per-evaluation payload: a cart snapshot plus the discount it is evaluated for.
type Input struct {
	Cart     Cart          `json:"cart"`
	Discount DiscountInput `json:"discount"`
}

// Cart is a read-only snapshot of the shopper's cart.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// CartLine is one row of the cart.
type CartLine struct {
	ID          string      `json:"id"`
	Quantity    int         `json:"quantity"`
	Merchandise Merchandise `json:"merchandise"`
	Cost        *Cost       `json:"cost,omitempty"`
}

// Merchandise is either a product variant or something else (gift card, custom item).
type Merchandise struct {
	Typename string   `json:"__typename,omitempty"`
	ID       string   `json:"id,omitempty"`
	Product  *Product `json:"product,omitempty"`
}

// Product identifies the product behind a variant and its collection memberships.
type Product struct {
	ID            string                 `json:"id"`
	InCollections []CollectionMembership `json:"inCollections,omitempty"`
}

// CollectionMembership reports whether the product belongs to a collection.
type CollectionMembership struct {
	CollectionID string `json:"collectionId"`
	IsMember     bool   `json:"isMember"`
}

// Cost carries the line price. Per-unit amounts win over totals.
type Cost struct {
	AmountPerQuantity *Money `json:"amountPerQuantity,omitempty"`
	TotalAmount       *Money `json:"totalAmount,omitempty"`
}

// Money is an amount in the cart currency.
type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode,omitempty"`
}

// DiscountInput describes the discount being evaluated.
type DiscountInput struct {
	DiscountClasses []string   `json:"discountClasses"`
	Metafield       *Metafield `json:"metafield,omitempty"`
}

// Metafield holds the merchant-authored configuration blob.
type Metafield struct {
	Value     string          `json:"value,omitempty"`
	JSONValue json.RawMessage `json:"jsonValue,omitempty"`
}

// Raw returns the configuration blob in the form Parse accepts.
func (m *Metafield) Raw() any {
	if m == nil {
		return nil
	}
	if m.Value != "" {
		return m.Value
	}
	if len(m.JSONValue) > 0 {
		return m.JSONValue
	}
	return nil
}

// HasClass reports whether the discount declares the provided class.
func (d DiscountInput) HasClass(class string) bool {
	for _, c := range d.DiscountClasses {
		if strings.EqualFold(strings.TrimSpace(c), class) {
			return true
		}
	}
	return false
}

// ProductID returns the product id when the line is backed by a product variant.
func (l CartLine) ProductID() (string, bool) {
	m := l.Merchandise
	if m.Typename != "" && m.Typename != variantTypename {
		return "", false
	}
	if m.Product == nil {
		return "", false
	}
	id := strings.TrimSpace(m.Product.ID)
	if id == "" {
		return "", false
	}
	return id, true
}

// UnitPrice resolves the price of one unit; a line without cost data is free.
func (l CartLine) UnitPrice() decimal.Decimal {
	if l.Cost == nil {
		return decimal.Zero
	}
	var perUnit, total *pricing.Money
	if l.Cost.AmountPerQuantity != nil {
		perUnit = &l.Cost.AmountPerQuantity.Amount
	}
	if l.Cost.TotalAmount != nil {
		total = &l.Cost.TotalAmount.Amount
	}
	return pricing.UnitPrice(perUnit, total, l.Quantity)
}

// CollectionIDs lists the collections the line's product is a member of.
func (l CartLine) CollectionIDs() []string {
	if l.Merchandise.Product == nil {
		return nil
	}
	out := make([]string, 0, len(l.Merchandise.Product.InCollections))
	for _, c := range l.Merchandise.Product.InCollections {
		if c.IsMember && c.CollectionID != "" {
			out = append(out, c.CollectionID)
		}
	}
	return out
}

// Result is the operation envelope returned to the platform.
type Result struct {
	Operations []Operation `json:"operations"`
}

// Operation is a single instruction for the platform.
type Operation struct {
	AddProductDiscounts *ProductDiscountsAdd `json:"addProductDiscounts,omitempty"`
}

// ProductDiscountsAdd requests the platform apply candidates with the given strategy.
type ProductDiscountsAdd struct {
	Candidates        []Candidate `json:"candidates"`
	SelectionStrategy string      `json:"selectionStrategy"`
}

// Candidate is a proposed discount application.
type Candidate struct {
	Message string   `json:"message,omitempty"`
	Targets []Target `json:"targets"`
	Value   Value    `json:"value"`
}

// Target references a cart line. AppliedQuantity limits the discount to part of the line.
type Target struct {
	LineID          string `json:"lineId"`
	AppliedQuantity *int   `json:"appliedQuantity,omitempty"`
}

// Value is either a percentage or a fixed amount.
type Value struct {
	Percentage        *float64 `json:"percentage,omitempty"`
	FixedAmount       *float64 `json:"fixedAmount,omitempty"`
	AppliesToEachItem bool     `json:"appliesToEachItem,omitempty"`
}

// NoOp returns the empty operations result.
func NoOp() Result {
	return Result{Operations: []Operation{}}
}

func valueOf(kind Kind, amount float64) Value {
	v := amount
	if kind == KindFixedAmount {
		return Value{FixedAmount: &v}
	}
	return Value{Percentage: &v}
}

func wholeLine(id string) Target {
	return Target{LineID: id}
}

func partialLine(id string, qty int) Target {
	q := qty
	return Target{LineID: id, AppliedQuantity: &q}
}
