package admin

import (
	"context"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type OrderStore interface {
	List(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

// OrderDesk lets admins review orders and move them through fulfillment.
type OrderDesk struct {
	orders OrderStore
	logger *slog.Logger
}

func NewOrderDesk(orders OrderStore, logger *slog.Logger) *OrderDesk {
	return &OrderDesk{orders: orders, logger: logger}
}

func (d *OrderDesk) List(ctx context.Context) ([]domain.Order, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	return d.orders.List(ctx)
}

// UpdateStatus moves an order forward. Unknown statuses are a validation
// error; backward moves fail with ErrInvalidTransition from the store.
func (d *OrderDesk) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "must be one of pending, confirmed, shipped, delivered")
	}

	order, err := d.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	d.logger.InfoContext(ctx, "order status updated", "order_id", id, "status", status)
	return order, nil
}
