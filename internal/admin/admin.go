// Package admin implements catalog and order management for admin users.
//
// A product save runs in two stages: the product row first, then one upsert
// of its variants. The stages are not atomic; a failed variant stage leaves
// the product committed and can be retried, since the upsert is keyed by
// (product_id, size, color).
package admin

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/domain"
)

var tracer = otel.Tracer("admin")

// Store is the write side of catalog storage. CreateProduct assigns the id
// and timestamps on p. DeleteProduct returns the deletion time on the same
// clock as the store's UpdatedAt.
type Store interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, productID string) (time.Time, error)
	UpsertVariants(ctx context.Context, productID string, variants []domain.ProductVariant) ([]domain.ProductVariant, error)
	DeleteVariants(ctx context.Context, productID string, keys []domain.VariantKey) (int, error)
}

// Catalog is the shared view refreshed after each committed stage.
type Catalog interface {
	ApplyProductEvent(ev domain.ProductChangeEvent) bool
	LoadVariants(ctx context.Context, productIDs ...string) error
	Product(productID string) (domain.Product, bool)
	VariantsFor(productID string) []domain.ProductVariant
	Summaries() []catalog.Summary
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Invalidator drops derived views, such as cached listings, after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Option func(*CatalogAdmin)

// SkipBlankCells stops Save from writing variants whose cell was left at
// its defaults. By default every selected combination is written.
func SkipBlankCells(skip bool) Option {
	return func(a *CatalogAdmin) { a.skipBlank = skip }
}

func WithPublisher(p Publisher) Option {
	return func(a *CatalogAdmin) { a.publisher = p }
}

func WithInvalidator(i Invalidator) Option {
	return func(a *CatalogAdmin) { a.invalidator = i }
}

func WithClock(now func() time.Time) Option {
	return func(a *CatalogAdmin) { a.now = now }
}

type CatalogAdmin struct {
	store       Store
	catalog     Catalog
	publisher   Publisher
	invalidator Invalidator
	skipBlank   bool
	now         func() time.Time
	logger      *slog.Logger
}

func New(store Store, cat Catalog, logger *slog.Logger, opts ...Option) *CatalogAdmin {
	a := &CatalogAdmin{
		store:   store,
		catalog: cat,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result is what a save committed. Variants is empty when the variant stage
// failed or wrote nothing.
type Result struct {
	Product  domain.Product          `json:"product"`
	Created  bool                    `json:"created"`
	Variants []domain.ProductVariant `json:"variants"`
}

// Save creates or updates product and upserts one variant per selected size
// × color of grid. A product stage failure returns a ProductWriteError and
// writes no variants. A variant stage failure returns the committed product
// alongside a DuplicateVariantError or PersistenceError.
func (a *CatalogAdmin) Save(ctx context.Context, product domain.Product, grid VariantGrid) (*Result, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "admin.save_product")
	defer span.End()

	product.Trim()
	if err := product.Validate(); err != nil {
		return nil, err
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	res, err := a.saveProduct(ctx, product)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	productID := res.Product.ID.String()
	span.SetAttributes(attribute.String("product.id", productID), attribute.Bool("product.created", res.Created))

	rows := grid.Rows(productID, a.skipBlank)
	span.SetAttributes(attribute.Int("variants.rows", len(rows)))
	if len(rows) == 0 {
		return res, nil
	}

	saved, err := a.store.UpsertVariants(ctx, productID, rows)
	if err != nil {
		if !domain.IsDuplicateVariantError(err) && !domain.IsPersistenceError(err) {
			err = &domain.PersistenceError{Op: "upsert variants", Err: err}
		}
		recordError(span, err)
		a.logger.ErrorContext(ctx, "failed to upsert variants", "error", err, "product_id", productID, "rows", len(rows))
		return res, err
	}
	res.Variants = saved

	a.refreshVariants(ctx, productID)
	a.publish(ctx, domain.ProductChangeEvent{Kind: domain.ChangeUpdate, Product: res.Product, Timestamp: a.now()})
	a.logger.InfoContext(ctx, "variants upserted", "product_id", productID, "rows", len(saved))
	return res, nil
}

func (a *CatalogAdmin) saveProduct(ctx context.Context, product domain.Product) (*Result, error) {
	res := &Result{Created: !product.ID.IsAssigned()}

	var err error
	if res.Created {
		err = a.store.CreateProduct(ctx, &product)
	} else {
		err = a.store.UpdateProduct(ctx, &product)
	}
	if err != nil {
		if !domain.IsProductWriteError(err) {
			op := "update"
			if res.Created {
				op = "create"
			}
			err = &domain.ProductWriteError{Op: op, ProductID: product.ID.String(), Err: err}
		}
		a.logger.ErrorContext(ctx, "failed to save product", "error", err, "product_id", product.ID.String())
		return nil, err
	}
	res.Product = product

	kind := domain.ChangeUpdate
	if res.Created {
		kind = domain.ChangeInsert
	}
	a.announce(ctx, domain.ProductChangeEvent{Kind: kind, Product: product, Timestamp: a.now()})

	a.logger.InfoContext(ctx, "product saved", "product_id", product.ID.String(), "created", res.Created)
	return res, nil
}

// Delete removes the product row. Variant rows are not touched here; the
// store decides whether they go with it.
func (a *CatalogAdmin) Delete(ctx context.Context, productID string) error {
	if err := auth.RequireAdmin(ctx); err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "admin.delete_product", trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	deletedAt, err := a.store.DeleteProduct(ctx, productID)
	if err != nil {
		if !domain.IsPersistenceError(err) {
			err = &domain.PersistenceError{Op: "delete product", Err: err}
		}
		recordError(span, err)
		return err
	}

	a.announce(ctx, domain.ProductChangeEvent{
		Kind:      domain.ChangeDelete,
		Product:   domain.Product{ID: domain.NewID(productID), UpdatedAt: deletedAt},
		Timestamp: a.now(),
	})
	a.logger.InfoContext(ctx, "product deleted", "product_id", productID)
	return nil
}

// DeleteVariants prunes the listed combinations of a product and returns how
// many rows were removed.
func (a *CatalogAdmin) DeleteVariants(ctx context.Context, productID string, keys []domain.VariantKey) (int, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, domain.NewValidationError("variants", "is required")
	}

	ctx, span := tracer.Start(ctx, "admin.delete_variants", trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	n, err := a.store.DeleteVariants(ctx, productID, keys)
	if err != nil {
		if !domain.IsPersistenceError(err) {
			err = &domain.PersistenceError{Op: "delete variants", Err: err}
		}
		recordError(span, err)
		return 0, err
	}

	a.refreshVariants(ctx, productID)
	if p, ok := a.catalog.Product(productID); ok {
		a.publish(ctx, domain.ProductChangeEvent{Kind: domain.ChangeUpdate, Product: p, Timestamp: a.now()})
	}
	a.logger.InfoContext(ctx, "variants deleted", "product_id", productID, "count", n)
	return n, nil
}

// EditGrid returns the current variants of a product as an editable grid.
func (a *CatalogAdmin) EditGrid(ctx context.Context, productID string) (VariantGrid, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return VariantGrid{}, err
	}
	return GridFromVariants(a.catalog.VariantsFor(productID)), nil
}

func (a *CatalogAdmin) Summaries(ctx context.Context) ([]catalog.Summary, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	return a.catalog.Summaries(), nil
}

func (a *CatalogAdmin) announce(ctx context.Context, ev domain.ProductChangeEvent) {
	a.catalog.ApplyProductEvent(ev)
	a.invalidate(ctx)
	a.publish(ctx, ev)
}

// publish tells other replicas about a change. Variant writes are announced
// as an UPDATE of their product so subscribers reload its variants.
func (a *CatalogAdmin) publish(ctx context.Context, ev domain.ProductChangeEvent) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, ev.Product.ID.String(), ev); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish product change", "error", err, "product_id", ev.Product.ID.String(), "kind", ev.Kind)
	}
}

func (a *CatalogAdmin) refreshVariants(ctx context.Context, productID string) {
	if err := a.catalog.LoadVariants(ctx, productID); err != nil {
		a.logger.ErrorContext(ctx, "failed to reload variants", "error", err, "product_id", productID)
	}
	a.invalidate(ctx)
}

func (a *CatalogAdmin) invalidate(ctx context.Context) {
	if a.invalidator == nil {
		return
	}
	if err := a.invalidator.Invalidate(ctx); err != nil {
		a.logger.ErrorContext(ctx, "failed to invalidate listings", "error", err)
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
