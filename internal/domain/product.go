package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name" validate:"required"`
	Category    string    `json:"category" validate:"required"`
	Image       string    `json:"image,omitempty"`
	Featured    bool      `json:"featured"`
	Rating      float64   `json:"rating" validate:"gte=0,lte=5"`
	Reviews     int       `json:"reviews" validate:"gte=0"`
	SourcePlace string    `json:"source_place,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VariantKey is the natural key of a variant and of a cart line.
type VariantKey struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

func (k VariantKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ProductID, k.Size, k.Color)
}

type ProductVariant struct {
	ID            ID              `json:"id"`
	ProductID     string          `json:"product_id" validate:"required"`
	Size          string          `json:"size" validate:"required"`
	Color         string          `json:"color" validate:"required"`
	Stock         int             `json:"stock" validate:"gte=0"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Discount      decimal.Decimal `json:"discount"`
	Price         decimal.Decimal `json:"price"`
	SKU           string          `json:"sku,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewVariant builds a variant whose price is derived from originalPrice and discount.
func NewVariant(productID, size, color string, stock int, originalPrice, discount decimal.Decimal) ProductVariant {
	v := ProductVariant{
		ProductID:     productID,
		Size:          size,
		Color:         color,
		Stock:         stock,
		OriginalPrice: originalPrice,
		Discount:      discount,
	}
	v.Reprice()
	return v
}

func (v ProductVariant) Key() VariantKey {
	return VariantKey{ProductID: v.ProductID, Size: v.Size, Color: v.Color}
}

// Reprice overwrites Price with the value derived from OriginalPrice and Discount.
func (v *ProductVariant) Reprice() {
	v.Price = ComputePrice(v.OriginalPrice, v.Discount)
}

var hundred = decimal.NewFromInt(100)

// MoneyPlaces is the scale prices, original prices and discounts are stored at.
const MoneyPlaces = 2

// FitsMoneyScale reports whether d is stored without rounding.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyPlaces))
}

// ComputePrice returns originalPrice × (1 − discount/100) rounded to 2 places.
func ComputePrice(originalPrice, discount decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discount.Div(hundred))
	return originalPrice.Mul(factor).Round(MoneyPlaces)
}

// DiscountPercent is the whole-number discount shown next to a price.
func DiscountPercent(originalPrice, price decimal.Decimal) int64 {
	if !originalPrice.IsPositive() {
		return 0
	}
	return originalPrice.Sub(price).Div(originalPrice).Mul(hundred).Round(0).IntPart()
}

type StockBand int

const (
	OutOfStock StockBand = iota
	LowStock
	InStock
)

const LowStockThreshold = 10

func BandOf(stock int) StockBand {
	switch {
	case stock > LowStockThreshold:
		return InStock
	case stock > 0:
		return LowStock
	default:
		return OutOfStock
	}
}

func (b StockBand) String() string {
	switch b {
	case InStock:
		return "in stock"
	case LowStock:
		return "low stock"
	default:
		return "out of stock"
	}
}

func (b StockBand) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *StockBand) UnmarshalText(text []byte) error {
	switch string(text) {
	case "in stock":
		*b = InStock
	case "low stock":
		*b = LowStock
	case "out of stock":
		*b = OutOfStock
	default:
		return fmt.Errorf("unknown stock band %q", text)
	}
	return nil
}
