package domain

import "github.com/shopspring/decimal"

// CartLine is one entry of a shopper's cart. Price is the variant price at the
// moment the line was first added.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (l CartLine) Key() VariantKey {
	return VariantKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
