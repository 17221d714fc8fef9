package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultVariant stands in for an absent variant when keying cart lines
const DefaultVariant = "default"

// CartLine is one product (and optional variant) in a cart
type CartLine struct {
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// LineKey identifies a cart line by product and variant
type LineKey struct {
	ProductID string
	VariantID string
}

func (k LineKey) String() string {
	return k.ProductID + ":" + k.VariantID
}

// Key returns the identity of the line. Lines without a variant share the
// default variant key.
func (l CartLine) Key() LineKey {
	variant := strings.TrimSpace(l.VariantID)
	if variant == "" {
		variant = DefaultVariant
	}
	return LineKey{ProductID: l.ProductID, VariantID: variant}
}

// LineTotal is unit price times quantity
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
