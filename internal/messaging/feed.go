package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// FeedCatalog is the catalog view kept in step with product.changes.
type FeedCatalog interface {
	ApplyProductEvent(ev domain.ProductChangeEvent) bool
	LoadVariants(ctx context.Context, productIDs ...string) error
}

type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// ProductFeed applies product change events from other storefront replicas
// and from admin tools to the local catalog.
type ProductFeed struct {
	catalog     FeedCatalog
	invalidator Invalidator
	logger      *slog.Logger
}

func NewProductFeed(catalog FeedCatalog, invalidator Invalidator, logger *slog.Logger) *ProductFeed {
	return &ProductFeed{catalog: catalog, invalidator: invalidator, logger: logger}
}

// Handle is a HandlerFunc. Stale events are dropped; inserts and updates
// also reload the product's variants, which travel on their own.
func (f *ProductFeed) Handle(ctx context.Context, payload []byte) error {
	var ev domain.ProductChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: decode product change: %v", ErrDiscard, err)
	}

	productID, ok := ev.Product.ID.Get()
	if !ok {
		return fmt.Errorf("%w: product change without id", ErrDiscard)
	}

	if !f.catalog.ApplyProductEvent(ev) {
		f.logger.DebugContext(ctx, "stale product change ignored", "product_id", productID, "kind", ev.Kind)
		return nil
	}

	if ev.Kind != domain.ChangeDelete {
		if err := f.catalog.LoadVariants(ctx, productID); err != nil {
			return fmt.Errorf("reload variants of %s: %w", productID, err)
		}
	}

	if f.invalidator != nil {
		if err := f.invalidator.Invalidate(ctx); err != nil {
			f.logger.ErrorContext(ctx, "failed to invalidate listings", "error", err)
		}
	}

	f.logger.InfoContext(ctx, "product change applied", "product_id", productID, "kind", ev.Kind)
	return nil
}
