package admin

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type CellKey struct {
	Size  string
	Color string
}

func (k CellKey) String() string {
	return k.Size + "/" + k.Color
}

// Cell is what the admin typed for one size × color combination. Price is
// never taken from here; it is derived from OriginalPrice and Discount.
type Cell struct {
	ID            domain.ID       `json:"id"`
	Stock         int             `json:"stock"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Discount      decimal.Decimal `json:"discount"`
	SKU           string          `json:"sku,omitempty"`
}

// IsBlank reports whether the cell was left at its defaults.
func (c Cell) IsBlank() bool {
	return c.Stock == 0 && c.OriginalPrice.IsZero() && c.Discount.IsZero() && c.SKU == ""
}

// VariantGrid is the selected sizes and colors of a product form plus the
// values entered per combination. Combinations without a cell are written
// as blank rows.
type VariantGrid struct {
	Sizes  []string
	Colors []string
	Cells  map[CellKey]Cell
}

func (g VariantGrid) Cell(size, color string) Cell {
	return g.Cells[CellKey{Size: size, Color: color}]
}

// Set stores the cell for a combination, selecting its size and color.
func (g *VariantGrid) Set(size, color string, c Cell) {
	if !slices.Contains(g.Sizes, size) {
		g.Sizes = append(g.Sizes, size)
	}
	if !slices.Contains(g.Colors, color) {
		g.Colors = append(g.Colors, color)
	}
	if g.Cells == nil {
		g.Cells = make(map[CellKey]Cell)
	}
	g.Cells[CellKey{Size: size, Color: color}] = c
}

// Rows expands the grid into one variant per selected size × color, sizes
// outer and colors inner. With skipBlank, combinations left at their
// defaults are not returned.
func (g VariantGrid) Rows(productID string, skipBlank bool) []domain.ProductVariant {
	rows := make([]domain.ProductVariant, 0, len(g.Sizes)*len(g.Colors))
	for _, size := range g.Sizes {
		for _, color := range g.Colors {
			c := g.Cell(size, color)
			if skipBlank && c.IsBlank() {
				continue
			}
			v := domain.NewVariant(productID, size, color, c.Stock, c.OriginalPrice, c.Discount)
			v.ID = c.ID
			v.SKU = c.SKU
			rows = append(rows, v)
		}
	}
	return rows
}

// Validate checks the selection and every cell before anything is written.
func (g VariantGrid) Validate() error {
	ve := &domain.ValidationError{}
	for _, s := range g.Sizes {
		if s == "" {
			ve.Violations = append(ve.Violations, domain.Violation{Field: "sizes", Reason: "must not contain empty values"})
			break
		}
	}
	for _, c := range g.Colors {
		if c == "" {
			ve.Violations = append(ve.Violations, domain.Violation{Field: "colors", Reason: "must not contain empty values"})
			break
		}
	}

	for key, c := range g.Cells {
		if !slices.Contains(g.Sizes, key.Size) || !slices.Contains(g.Colors, key.Color) {
			continue
		}
		field := fmt.Sprintf("cells[%s]", key)
		if c.Stock < 0 {
			ve.Violations = append(ve.Violations, domain.Violation{Field: field + ".stock", Reason: "must be >= 0"})
		}
		if c.OriginalPrice.IsNegative() {
			ve.Violations = append(ve.Violations, domain.Violation{Field: field + ".original_price", Reason: "must be >= 0"})
		}
		if !domain.FitsMoneyScale(c.OriginalPrice) {
			ve.Violations = append(ve.Violations, domain.Violation{Field: field + ".original_price", Reason: "must have at most 2 decimal places"})
		}
		switch {
		case c.Discount.IsNegative() || c.Discount.GreaterThan(decimal.NewFromInt(100)):
			ve.Violations = append(ve.Violations, domain.Violation{Field: field + ".discount", Reason: "must be between 0 and 100"})
		case !domain.FitsMoneyScale(c.Discount):
			ve.Violations = append(ve.Violations, domain.Violation{Field: field + ".discount", Reason: "must have at most 2 decimal places"})
		}
	}

	if len(ve.Violations) == 0 {
		return nil
	}
	slices.SortFunc(ve.Violations, func(a, b domain.Violation) int {
		switch {
		case a.Field < b.Field:
			return -1
		case a.Field > b.Field:
			return 1
		}
		return 0
	})
	return ve
}

// GridFromVariants rebuilds the edit form of a product from its stored
// variants. Sizes and colors keep first-seen order; cells keep variant ids so
// a later save updates rows in place.
func GridFromVariants(variants []domain.ProductVariant) VariantGrid {
	g := VariantGrid{Cells: make(map[CellKey]Cell, len(variants))}
	for _, v := range variants {
		key := CellKey{Size: v.Size, Color: v.Color}
		if _, seen := g.Cells[key]; seen {
			continue
		}
		g.Set(v.Size, v.Color, Cell{
			ID:            v.ID,
			Stock:         v.Stock,
			OriginalPrice: v.OriginalPrice,
			Discount:      v.Discount,
			SKU:           v.SKU,
		})
	}
	return g
}

type gridCellJSON struct {
	Size  string `json:"size"`
	Color string `json:"color"`
	Cell
}

type gridJSON struct {
	Sizes  []string       `json:"sizes"`
	Colors []string       `json:"colors"`
	Cells  []gridCellJSON `json:"cells"`
}

func (g VariantGrid) MarshalJSON() ([]byte, error) {
	out := gridJSON{Sizes: g.Sizes, Colors: g.Colors, Cells: []gridCellJSON{}}
	for _, size := range g.Sizes {
		for _, color := range g.Colors {
			if c, ok := g.Cells[CellKey{Size: size, Color: color}]; ok {
				out.Cells = append(out.Cells, gridCellJSON{Size: size, Color: color, Cell: c})
			}
		}
	}
	return json.Marshal(out)
}

func (g *VariantGrid) UnmarshalJSON(data []byte) error {
	var in gridJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	g.Sizes = in.Sizes
	g.Colors = in.Colors
	g.Cells = make(map[CellKey]Cell, len(in.Cells))
	for _, c := range in.Cells {
		g.Cells[CellKey{Size: c.Size, Color: c.Color}] = c.Cell
	}
	return nil
}
