// Package catalog holds the storefront's view of products and their variants.
// A single Catalog is shared by the shopper flows, checkout and catalog admin;
// storage stays authoritative and the view is refreshed through Load,
// LoadVariants and ApplyProductEvent.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var tracer = otel.Tracer("catalog")

// Source is the read side of catalog storage. ListVariants with no ids lists
// every variant.
type Source interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListVariants(ctx context.Context, productIDs ...string) ([]domain.ProductVariant, error)
}

type Catalog struct {
	source Source
	logger *slog.Logger

	mu       sync.RWMutex
	order    []string
	products map[string]domain.Product
	variants map[string][]domain.ProductVariant
	deleted  map[string]time.Time
}

func New(source Source, logger *slog.Logger) *Catalog {
	return &Catalog{
		source:   source,
		logger:   logger,
		products: make(map[string]domain.Product),
		variants: make(map[string][]domain.ProductVariant),
		deleted:  make(map[string]time.Time),
	}
}

// Load replaces the whole snapshot with the current storage state.
func (c *Catalog) Load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "catalog.load")
	defer span.End()

	var (
		products []domain.Product
		variants []domain.ProductVariant
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = c.source.ListProducts(gctx)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		variants, err = c.source.ListVariants(gctx)
		if err != nil {
			return fmt.Errorf("list variants: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return err
	}

	order := make([]string, 0, len(products))
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		id, ok := p.ID.Get()
		if !ok {
			continue
		}
		order = append(order, id)
		byID[id] = p
	}

	c.mu.Lock()
	c.order = order
	c.products = byID
	c.variants = groupVariants(variants)
	c.deleted = make(map[string]time.Time)
	c.mu.Unlock()

	span.SetAttributes(
		attribute.Int("catalog.products", len(products)),
		attribute.Int("catalog.variants", len(variants)),
	)
	c.logger.Info("catalog loaded", "products", len(products), "variants", len(variants))
	return nil
}

// LoadVariants refreshes the variant sets of the given products from storage.
func (c *Catalog) LoadVariants(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}

	variants, err := c.source.ListVariants(ctx, productIDs...)
	if err != nil {
		return fmt.Errorf("list variants: %w", err)
	}
	grouped := groupVariants(variants)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range productIDs {
		if vs, ok := grouped[id]; ok {
			c.variants[id] = vs
		} else {
			delete(c.variants, id)
		}
	}
	return nil
}

// ApplyProductEvent merges a realtime change into the snapshot, last write
// wins per product id. Events are ordered by Product.UpdatedAt, which is the
// store's clock for every kind; a DELETE carries the deletion time. An event
// without one is ordered by its Timestamp. It reports whether the snapshot
// changed.
func (c *Catalog) ApplyProductEvent(ev domain.ProductChangeEvent) bool {
	id, ok := ev.Product.ID.Get()
	if !ok {
		return false
	}
	at := ev.Product.UpdatedAt
	if at.IsZero() {
		at = ev.Timestamp
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.products[id]
	if exists && at.Before(existing.UpdatedAt) {
		return false
	}
	if deletedAt, gone := c.deleted[id]; gone && !at.After(deletedAt) {
		return false
	}

	if ev.Kind == domain.ChangeDelete {
		c.deleted[id] = at
		if !exists {
			return false
		}
		delete(c.products, id)
		delete(c.variants, id)
		c.order = slices.DeleteFunc(c.order, func(v string) bool { return v == id })
		return true
	}

	c.products[id] = ev.Product
	if !exists {
		c.order = append(c.order, id)
	}
	delete(c.deleted, id)
	return true
}

func (c *Catalog) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out
}

func (c *Catalog) Product(productID string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	return p, ok
}

// VariantsFor returns a copy of the product's variants; empty is valid.
func (c *Catalog) VariantsFor(productID string) []domain.ProductVariant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.variants[productID])
}

// AvailableSizes lists the distinct sizes of a product in first-seen order.
func (c *Catalog) AvailableSizes(productID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sizes []string
	for _, v := range c.variants[productID] {
		if !slices.Contains(sizes, v.Size) {
			sizes = append(sizes, v.Size)
		}
	}
	return sizes
}

// AvailableColors lists the distinct colors offered in size, first-seen order.
func (c *Catalog) AvailableColors(productID, size string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var colors []string
	for _, v := range c.variants[productID] {
		if v.Size == size && !slices.Contains(colors, v.Color) {
			colors = append(colors, v.Color)
		}
	}
	return colors
}

// Resolve finds the variant with the exact natural key. There is no fallback.
func (c *Catalog) Resolve(productID, size, color string) (domain.ProductVariant, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, v := range c.variants[productID] {
		if v.Size == size && v.Color == color {
			return v, nil
		}
	}
	key := domain.VariantKey{ProductID: productID, Size: size, Color: color}
	return domain.ProductVariant{}, fmt.Errorf("%w: %s", domain.ErrVariantNotFound, key)
}

func IsPurchasable(v *domain.ProductVariant) bool {
	return v != nil && v.Stock > 0
}

// Search matches query against product name or category, case-insensitively.
func (c *Catalog) Search(query string) []domain.Product {
	products := c.Products()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return products
	}

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Category), q) {
			out = append(out, p)
		}
	}
	return out
}

type Summary struct {
	Product      domain.Product      `json:"product"`
	MinPrice     decimal.NullDecimal `json:"min_price"`
	TotalStock   int                 `json:"total_stock"`
	VariantCount int                 `json:"variant_count"`
}

// Summaries aggregates price and stock per product for the admin dashboard.
func (c *Catalog) Summaries() []Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Summary, 0, len(c.order))
	for _, id := range c.order {
		s := Summary{Product: c.products[id]}
		for _, v := range c.variants[id] {
			s.TotalStock += v.Stock
			s.VariantCount++
			if !s.MinPrice.Valid || v.Price.LessThan(s.MinPrice.Decimal) {
				s.MinPrice = decimal.NewNullDecimal(v.Price)
			}
		}
		out = append(out, s)
	}
	return out
}

type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (c *Catalog) Categories() []CategoryCount {
	c.mu.RLock()
	counts := make(map[string]int)
	for _, p := range c.products {
		counts[p.Category]++
	}
	c.mu.RUnlock()

	out := make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CategoryCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func groupVariants(variants []domain.ProductVariant) map[string][]domain.ProductVariant {
	grouped := make(map[string][]domain.ProductVariant)
	for _, v := range variants {
		grouped[v.ProductID] = append(grouped[v.ProductID], v)
	}
	return grouped
}
