// Package cart keeps a shopper's cart lines keyed by product, size and color.
package cart

import (
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Cart is safe for concurrent use. Lines keep the order they were first added in.
type Cart struct {
	mu    sync.Mutex
	lines []domain.CartLine
}

func New() *Cart {
	return &Cart{}
}

// Snapshot is a consistent read of the cart.
type Snapshot struct {
	Lines []domain.CartLine `json:"lines"`
	Total decimal.Decimal   `json:"total"`
	Count int               `json:"count"`
}

// Add merges quantity into the line for (product, size, color). The name,
// image, category and price are captured only when the line is created.
// Quantities below one are ignored; stock is not checked here.
func (c *Cart) Add(product domain.Product, size, color string, price decimal.Decimal, quantity int) {
	if quantity < 1 {
		return
	}

	key := domain.VariantKey{ProductID: product.ID.String(), Size: size, Color: color}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(key); i >= 0 {
		c.lines[i].Quantity += quantity
		return
	}
	c.lines = append(c.lines, domain.CartLine{
		ProductID: key.ProductID,
		Size:      size,
		Color:     color,
		Name:      product.Name,
		Category:  product.Category,
		Image:     product.Image,
		Quantity:  quantity,
		Price:     price,
	})
}

// UpdateQuantity sets the quantity of an existing line. Zero or less removes it.
func (c *Cart) UpdateQuantity(productID, size, color string, quantity int) {
	key := domain.VariantKey{ProductID: productID, Size: size, Color: color}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(key)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.lines = slices.Delete(c.lines, i, i+1)
		return
	}
	c.lines[i].Quantity = quantity
}

func (c *Cart) Remove(productID, size, color string) {
	c.RemoveLines([]domain.VariantKey{{ProductID: productID, Size: size, Color: color}})
}

// RemoveLines drops every line whose key is listed; unknown keys are skipped.
func (c *Cart) RemoveLines(keys []domain.VariantKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = slices.DeleteFunc(c.lines, func(l domain.CartLine) bool {
		return slices.Contains(keys, l.Key())
	})
}

// Deduct lowers each line by the quantity of the matching ordered line and
// drops lines that reach zero. Quantity added after the order was taken stays.
func (c *Cart) Deduct(ordered []domain.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range ordered {
		i := c.indexOf(o.Key())
		if i < 0 {
			continue
		}
		c.lines[i].Quantity -= o.Quantity
	}
	c.lines = slices.DeleteFunc(c.lines, func(l domain.CartLine) bool { return l.Quantity <= 0 })
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

func (c *Cart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.lines)
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// Total is Σ price × quantity over the current lines.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return total(c.lines)
}

// Count is the sum of line quantities.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return count(c.lines)
}

func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := slices.Clone(c.lines)
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return Snapshot{
		Lines: lines,
		Total: total(c.lines),
		Count: count(c.lines),
	}
}

func (c *Cart) indexOf(key domain.VariantKey) int {
	return slices.IndexFunc(c.lines, func(l domain.CartLine) bool { return l.Key() == key })
}

func total(lines []domain.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

func count(lines []domain.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
