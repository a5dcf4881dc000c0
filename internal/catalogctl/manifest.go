package catalogctl

import (
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/joao-fontenele/storefront/internal/admin"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// Manifest is one product with its variants as written in a YAML file.
// Money is kept as text so "19.90" is read exactly.
type Manifest struct {
	Product  ProductSpec   `yaml:"product"`
	Variants []VariantSpec `yaml:"variants,omitempty"`
}

type ProductSpec struct {
	ID          string  `yaml:"id,omitempty"`
	Name        string  `yaml:"name"`
	Category    string  `yaml:"category"`
	Image       string  `yaml:"image,omitempty"`
	Featured    bool    `yaml:"featured,omitempty"`
	Rating      float64 `yaml:"rating,omitempty"`
	Reviews     int     `yaml:"reviews,omitempty"`
	SourcePlace string  `yaml:"source_place,omitempty"`
	Vendor      string  `yaml:"vendor,omitempty"`
}

type VariantSpec struct {
	Size          string `yaml:"size"`
	Color         string `yaml:"color"`
	Stock         int    `yaml:"stock"`
	OriginalPrice string `yaml:"original_price"`
	Discount      string `yaml:"discount,omitempty"`
	SKU           string `yaml:"sku,omitempty"`
}

// DecodeManifests reads every YAML document in r.
func DecodeManifests(r io.Reader) ([]Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var out []Manifest
	for {
		var m Manifest
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", len(out)+1, err)
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, errors.New("no products in manifest")
	}
	return out, nil
}

// Build turns the manifest into the product and grid CatalogAdmin.Save takes.
func (m Manifest) Build() (domain.Product, admin.VariantGrid, error) {
	p := domain.Product{
		Name:        m.Product.Name,
		Category:    m.Product.Category,
		Image:       m.Product.Image,
		Featured:    m.Product.Featured,
		Rating:      m.Product.Rating,
		Reviews:     m.Product.Reviews,
		SourcePlace: m.Product.SourcePlace,
		Vendor:      m.Product.Vendor,
	}
	if m.Product.ID != "" {
		p.ID = domain.NewID(m.Product.ID)
	}

	var grid admin.VariantGrid
	for i, v := range m.Variants {
		original, err := parseMoney(v.OriginalPrice)
		if err != nil {
			return domain.Product{}, admin.VariantGrid{}, fmt.Errorf("variants[%d].original_price: %w", i, err)
		}
		discount, err := parseMoney(v.Discount)
		if err != nil {
			return domain.Product{}, admin.VariantGrid{}, fmt.Errorf("variants[%d].discount: %w", i, err)
		}
		grid.Set(v.Size, v.Color, admin.Cell{
			Stock:         v.Stock,
			OriginalPrice: original,
			Discount:      discount,
			SKU:           v.SKU,
		})
	}
	return p, grid, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// ManifestOf renders a stored product back into manifest form.
func ManifestOf(p domain.Product, variants []domain.ProductVariant) Manifest {
	m := Manifest{Product: ProductSpec{
		ID:          p.ID.String(),
		Name:        p.Name,
		Category:    p.Category,
		Image:       p.Image,
		Featured:    p.Featured,
		Rating:      p.Rating,
		Reviews:     p.Reviews,
		SourcePlace: p.SourcePlace,
		Vendor:      p.Vendor,
	}}
	for _, v := range variants {
		row := VariantSpec{
			Size:          v.Size,
			Color:         v.Color,
			Stock:         v.Stock,
			OriginalPrice: v.OriginalPrice.String(),
			SKU:           v.SKU,
		}
		if !v.Discount.IsZero() {
			row.Discount = v.Discount.String()
		}
		m.Variants = append(m.Variants, row)
	}
	return m
}
