package catalog

import (
	"slices"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Selection is a shopper's size/color choice for one product.
type Selection struct {
	catalog   *Catalog
	productID string
	size      string
	color     string
}

// NewSelection starts at the first size and its first color.
func NewSelection(c *Catalog, productID string) *Selection {
	s := &Selection{catalog: c, productID: productID}
	if sizes := c.AvailableSizes(productID); len(sizes) > 0 {
		s.SelectSize(sizes[0])
	}
	return s
}

// SelectSize changes the size. A color not offered in the new size is
// replaced by the first offered color, or cleared when there is none.
func (s *Selection) SelectSize(size string) {
	s.size = size
	colors := s.catalog.AvailableColors(s.productID, size)
	if slices.Contains(colors, s.color) {
		return
	}
	s.color = ""
	if len(colors) > 0 {
		s.color = colors[0]
	}
}

// SelectColor reports false and keeps the current color when color is not
// offered in the selected size.
func (s *Selection) SelectColor(color string) bool {
	if !slices.Contains(s.Colors(), color) {
		return false
	}
	s.color = color
	return true
}

func (s *Selection) Size() string  { return s.size }
func (s *Selection) Color() string { return s.color }

func (s *Selection) Colors() []string {
	return s.catalog.AvailableColors(s.productID, s.size)
}

func (s *Selection) Variant() (domain.ProductVariant, error) {
	return s.catalog.Resolve(s.productID, s.size, s.color)
}

// CanAddToCart is true only for a resolved variant with stock.
func (s *Selection) CanAddToCart() bool {
	v, err := s.Variant()
	if err != nil {
		return false
	}
	return IsPurchasable(&v)
}
