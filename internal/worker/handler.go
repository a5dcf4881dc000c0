// Package worker fulfils placed orders: it takes stock for every item,
// confirms the order and tells the customer.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

var tracer = otel.Tracer("worker")

// StockStore changes variant stock. DecrementStock fails with
// domain.ErrInsufficientStock without changing anything when short.
type StockStore interface {
	DecrementStock(ctx context.Context, key domain.VariantKey, quantity int) error
	RestockVariant(ctx context.Context, key domain.VariantKey, quantity int) error
}

type OrderStore interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

type FulfillmentHandler struct {
	stock  StockStore
	orders OrderStore
	mailer Mailer
	logger *slog.Logger
}

func NewFulfillmentHandler(stock StockStore, orders OrderStore, mailer Mailer, logger *slog.Logger) *FulfillmentHandler {
	return &FulfillmentHandler{stock: stock, orders: orders, mailer: mailer, logger: logger}
}

// Handle processes one order.created event. Stock is taken all or nothing:
// on a shortfall whatever was taken goes back, the order stays pending and
// the customer is told it is on hold. Orders that are no longer pending were
// handled by an earlier delivery and are skipped.
func (h *FulfillmentHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: unmarshal order created event: %v", messaging.ErrDiscard, err)
	}

	ctx, span := tracer.Start(ctx, "worker.fulfil_order")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", event.OrderID), attribute.Int("order.items", len(event.Items)))

	order, err := h.orders.GetByID(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return fmt.Errorf("%w: order %s: %v", messaging.ErrDiscard, event.OrderID, err)
		}
		span.RecordError(err)
		return fmt.Errorf("load order: %w", err)
	}
	if order.Status != domain.OrderStatusPending {
		h.logger.InfoContext(ctx, "order already processed", "order_id", event.OrderID, "status", order.Status)
		return nil
	}

	h.logger.InfoContext(ctx, "processing order created event", "order_id", event.OrderID, "customer_id", event.CustomerID)

	short, err := h.takeStock(ctx, event.Items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(short) > 0 {
		span.SetAttributes(attribute.String("order.outcome", "on_hold"))
		h.logger.WarnContext(ctx, "order on hold for stock", "order_id", event.OrderID, "short", strings.Join(short, ","))

		if err := h.mailer.Send(ctx, onHoldEmail(event, short)); err != nil {
			h.logger.ErrorContext(ctx, "failed to send on hold email", "error", err, "order_id", event.OrderID)
		}
		return nil
	}

	if _, err := h.orders.UpdateStatus(ctx, event.OrderID, domain.OrderStatusConfirmed); err != nil {
		h.logger.ErrorContext(ctx, "failed to confirm order", "error", err, "order_id", event.OrderID)
		h.giveBack(ctx, event.Items)
		return fmt.Errorf("confirm order: %w", err)
	}
	span.SetAttributes(attribute.String("order.outcome", "confirmed"))

	if err := h.mailer.Send(ctx, confirmationEmail(event)); err != nil {
		h.logger.ErrorContext(ctx, "failed to send confirmation email", "error", err, "order_id", event.OrderID)
	}

	h.logger.InfoContext(ctx, "order confirmed", "order_id", event.OrderID)
	return nil
}

// takeStock decrements every item. It returns the keys that were short, or
// an error for any other failure; in both cases nothing stays taken.
func (h *FulfillmentHandler) takeStock(ctx context.Context, items []domain.OrderItem) ([]string, error) {
	var taken []domain.OrderItem
	var short []string

	for _, item := range items {
		err := h.stock.DecrementStock(ctx, item.Key(), item.Quantity)
		switch {
		case err == nil:
			taken = append(taken, item)
		case errors.Is(err, domain.ErrInsufficientStock):
			short = append(short, item.Key().String())
		default:
			h.giveBack(ctx, taken)
			return nil, fmt.Errorf("decrement stock of %s: %w", item.Key(), err)
		}
	}

	if len(short) > 0 {
		h.giveBack(ctx, taken)
	}
	return short, nil
}

func (h *FulfillmentHandler) giveBack(ctx context.Context, items []domain.OrderItem) {
	for _, item := range items {
		if err := h.stock.RestockVariant(ctx, item.Key(), item.Quantity); err != nil {
			h.logger.ErrorContext(ctx, "failed to restock", "error", err, "variant", item.Key().String(), "quantity", item.Quantity)
		}
	}
}

func confirmationEmail(event domain.OrderCreatedEvent) email.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nyour order %s is confirmed and will be paid on delivery.\n\n", event.CustomerName, event.OrderID)
	for _, item := range event.Items {
		fmt.Fprintf(&b, "%d x %s (%s, %s) @ %s\n", item.Quantity, item.Name, item.Size, item.Color, item.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", event.Total.StringFixed(2))

	return email.Message{
		To:      event.Email,
		Subject: "Order Confirmation: " + event.OrderID,
		Body:    b.String(),
	}
}

func onHoldEmail(event domain.OrderCreatedEvent, short []string) email.Message {
	return email.Message{
		To:      event.Email,
		Subject: "Order On Hold: " + event.OrderID,
		Body: fmt.Sprintf("Hi %s,\n\nsome items of order %s are out of stock right now (%s). We will confirm it once they are back.",
			event.CustomerName, event.OrderID, strings.Join(short, ", ")),
	}
}
