// Package checkout turns a cart into a pending cash-on-delivery order.
//
// Stock is only checked here, never decremented; the fulfillment worker owns
// stock changes once the order is created.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/domain"
)

var (
	tracer = otel.Tracer("checkout")
	meter  = otel.Meter("checkout")
)

type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
}

// IDSequence hands out increasing order numbers.
type IDSequence interface {
	NextOrderNumber(ctx context.Context) (int64, error)
}

// Variants is the catalog view checkout validates against. LoadVariants is
// called before every validation so stock is as fresh as storage allows.
type Variants interface {
	LoadVariants(ctx context.Context, productIDs ...string) error
	Resolve(productID, size, color string) (domain.ProductVariant, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type State int

const (
	StateIdle State = iota
	StateValidating
	StateCommitted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateCommitted:
		return "committed"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Option func(*Service)

// WithPublisher makes the service announce committed orders.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service holds the dependencies shared by every checkout attempt.
type Service struct {
	orders    OrderStore
	ids       IDSequence
	variants  Variants
	publisher Publisher
	now       func() time.Time
	logger    *slog.Logger

	placed   metric.Int64Counter
	rejected metric.Int64Counter
}

func NewService(orders OrderStore, ids IDSequence, variants Variants, logger *slog.Logger, opts ...Option) (*Service, error) {
	placed, err := meter.Int64Counter("checkout.orders",
		metric.WithDescription("Orders committed by checkout"))
	if err != nil {
		return nil, fmt.Errorf("create orders counter: %w", err)
	}
	rejected, err := meter.Int64Counter("checkout.rejections",
		metric.WithDescription("Checkout attempts rejected, by reason"))
	if err != nil {
		return nil, fmt.Errorf("create rejections counter: %w", err)
	}

	s := &Service{
		orders:   orders,
		ids:      ids,
		variants: variants,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
		placed:   placed,
		rejected: rejected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewProcess starts a checkout attempt in the idle state.
func (s *Service) NewProcess() *Process {
	return &Process{svc: s}
}

// Checkout is a convenience for a single attempt.
func (s *Service) Checkout(ctx context.Context, c *cart.Cart, shipping domain.ShippingDetails, customerID string) (*domain.Order, error) {
	return s.NewProcess().Checkout(ctx, c, shipping, customerID)
}

// Process is one checkout attempt.
type Process struct {
	svc *Service

	mu    sync.Mutex
	state State
}

func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Process) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Checkout validates the cart and shipping details, stores a pending order
// and then deducts the ordered quantities from the cart. On any error the cart is
// left as it was.
func (p *Process) Checkout(ctx context.Context, c *cart.Cart, shipping domain.ShippingDetails, customerID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "checkout")
	defer span.End()

	p.setState(StateValidating)

	order, err := p.checkout(ctx, c, shipping, customerID)
	if err != nil {
		p.setState(StateRejected)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.svc.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectionReason(err))))
		return nil, err
	}

	p.setState(StateCommitted)
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
	)
	p.svc.placed.Add(ctx, 1)
	return order, nil
}

func (p *Process) checkout(ctx context.Context, c *cart.Cart, shipping domain.ShippingDetails, customerID string) (*domain.Order, error) {
	s := p.svc

	lines := c.Lines()
	if len(lines) == 0 {
		return nil, domain.NewValidationError("cart", "is empty")
	}

	shipping = shipping.Trimmed()
	if err := shipping.Validate(); err != nil {
		return nil, err
	}

	if err := s.checkStock(ctx, lines); err != nil {
		return nil, err
	}

	n, err := s.ids.NextOrderNumber(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "allocate order id", Err: err}
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Size:      l.Size,
			Color:     l.Color,
			Quantity:  l.Quantity,
			Price:     l.Price,
		})
	}

	order := &domain.Order{
		ID:           domain.OrderID(n),
		CustomerID:   customerID,
		CustomerName: shipping.Name,
		Email:        shipping.Email,
		Phone:        shipping.Phone,
		Address:      shipping.Address,
		City:         shipping.City,
		Pincode:      shipping.Pincode,
		Notes:        shipping.Notes,
		Items:        items,
		Total:        domain.OrderTotal(items),
		Status:       domain.OrderStatusPending,
		CreatedAt:    s.now(),
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Error("failed to create order", "error", err, "order_id", order.ID)
		return nil, &domain.PersistenceError{Op: "create order", Err: err}
	}

	c.Deduct(lines)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, order.ID, domain.NewOrderCreatedEvent(order)); err != nil {
			s.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	s.logger.Info("order placed", "order_id", order.ID, "customer_id", customerID, "total", order.Total.StringFixed(2))
	return order, nil
}

// checkStock reloads every product in the cart and reports all lines whose
// quantity exceeds current stock. A variant that no longer exists has
// no stock.
func (s *Service) checkStock(ctx context.Context, lines []domain.CartLine) error {
	var productIDs []string
	for _, l := range lines {
		if !slices.Contains(productIDs, l.ProductID) {
			productIDs = append(productIDs, l.ProductID)
		}
	}
	if err := s.variants.LoadVariants(ctx, productIDs...); err != nil {
		return &domain.PersistenceError{Op: "reload variants", Err: err}
	}

	var short []domain.StockShortfall
	for _, l := range lines {
		v, err := s.variants.Resolve(l.ProductID, l.Size, l.Color)
		if err != nil {
			short = append(short, domain.StockShortfall{Key: l.Key(), Requested: l.Quantity, Missing: true})
			continue
		}
		if v.Stock < l.Quantity {
			short = append(short, domain.StockShortfall{Key: l.Key(), Requested: l.Quantity, Available: v.Stock})
		}
	}
	if len(short) > 0 {
		return &domain.InsufficientStockError{Lines: short}
	}
	return nil
}

func rejectionReason(err error) string {
	switch {
	case domain.IsValidationError(err):
		return "validation"
	case domain.IsInsufficientStockError(err):
		return "stock"
	case domain.IsPersistenceError(err):
		return "persistence"
	default:
		return "other"
	}
}
