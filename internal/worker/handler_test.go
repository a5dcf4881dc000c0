package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/products"
)

var _ Mailer = (*email.Client)(nil)

type fakeMailer struct {
	sent []email.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg email.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

type brokenStock struct {
	*products.MemoryStore
	failOn string
}

func (s brokenStock) DecrementStock(ctx context.Context, key domain.VariantKey, quantity int) error {
	if key.Size == s.failOn {
		return errors.New("connection reset")
	}
	return s.MemoryStore.DecrementStock(ctx, key, quantity)
}

type fixture struct {
	stock   *products.MemoryStore
	orders  *orders.MemoryStore
	mailer  *fakeMailer
	product string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	stock := products.NewMemoryStore()
	p := domain.Product{Name: "Kurta", Category: "Ethnic"}
	require.NoError(t, stock.CreateProduct(ctx, &p))
	id := p.ID.String()
	_, err := stock.UpsertVariants(ctx, id, []domain.ProductVariant{
		domain.NewVariant(id, "M", "Gold", 3, decimal.NewFromInt(1999), decimal.Zero),
		domain.NewVariant(id, "L", "Gold", 1, decimal.NewFromInt(1999), decimal.Zero),
	})
	require.NoError(t, err)

	return &fixture{stock: stock, orders: orders.NewMemoryStore(), mailer: &fakeMailer{}, product: id}
}

func (f *fixture) place(t *testing.T, quantities map[string]int) []byte {
	t.Helper()
	ctx := context.Background()

	n, err := f.orders.NextOrderNumber(ctx)
	require.NoError(t, err)

	order := &domain.Order{
		ID:           domain.OrderID(n),
		CustomerName: "Asha",
		Email:        "asha@example.com",
		Status:       domain.OrderStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	for _, size := range []string{"M", "L"} {
		if q := quantities[size]; q > 0 {
			order.Items = append(order.Items, domain.OrderItem{
				ProductID: f.product, Name: "Kurta", Size: size, Color: "Gold", Quantity: q, Price: decimal.NewFromInt(1999),
			})
		}
	}
	order.Total = domain.OrderTotal(order.Items)
	require.NoError(t, f.orders.Create(ctx, order))

	payload, err := json.Marshal(domain.NewOrderCreatedEvent(order))
	require.NoError(t, err)
	return payload
}

func (f *fixture) stockOf(t *testing.T, size string) int {
	t.Helper()
	all, err := f.stock.ListVariants(context.Background(), f.product)
	require.NoError(t, err)
	for _, v := range all {
		if v.Size == size {
			return v.Stock
		}
	}
	t.Fatalf("no variant %s", size)
	return 0
}

func (f *fixture) status(t *testing.T, id string) domain.OrderStatus {
	t.Helper()
	o, err := f.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandle_ConfirmsOrder(t *testing.T) {
	f := newFixture(t)
	h := NewFulfillmentHandler(f.stock, f.orders, f.mailer, testLogger())

	err := h.Handle(context.Background(), f.place(t, map[string]int{"M": 2, "L": 1}))
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusConfirmed, f.status(t, "ORD-001"))
	assert.Equal(t, 1, f.stockOf(t, "M"))
	assert.Equal(t, 0, f.stockOf(t, "L"))

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "asha@example.com", f.mailer.sent[0].To)
	assert.Equal(t, "Order Confirmation: ORD-001", f.mailer.sent[0].Subject)
	assert.Contains(t, f.mailer.sent[0].Body, "5997.00")
}

func TestHandle_ShortfallReleasesStock(t *testing.T) {
	f := newFixture(t)
	h := NewFulfillmentHandler(f.stock, f.orders, f.mailer, testLogger())

	err := h.Handle(context.Background(), f.place(t, map[string]int{"M": 2, "L": 2}))
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, f.status(t, "ORD-001"))
	assert.Equal(t, 3, f.stockOf(t, "M"))
	assert.Equal(t, 1, f.stockOf(t, "L"))

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "Order On Hold: ORD-001", f.mailer.sent[0].Subject)
	assert.Contains(t, f.mailer.sent[0].Body, "/L/Gold")
}

func TestHandle_SkipsProcessedOrder(t *testing.T) {
	f := newFixture(t)
	h := NewFulfillmentHandler(f.stock, f.orders, f.mailer, testLogger())
	payload := f.place(t, map[string]int{"M": 1})

	require.NoError(t, h.Handle(context.Background(), payload))
	require.NoError(t, h.Handle(context.Background(), payload))

	assert.Equal(t, 2, f.stockOf(t, "M"), "stock is taken once")
	assert.Len(t, f.mailer.sent, 1)
}

func TestHandle_StoreFailureRetries(t *testing.T) {
	f := newFixture(t)
	h := NewFulfillmentHandler(brokenStock{MemoryStore: f.stock, failOn: "L"}, f.orders, f.mailer, testLogger())

	err := h.Handle(context.Background(), f.place(t, map[string]int{"M": 2, "L": 1}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, messaging.ErrDiscard))

	assert.Equal(t, 3, f.stockOf(t, "M"))
	assert.Equal(t, domain.OrderStatusPending, f.status(t, "ORD-001"))
	assert.Empty(t, f.mailer.sent)
}

func TestHandle_MailFailureStillConfirms(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")
	h := NewFulfillmentHandler(f.stock, f.orders, f.mailer, testLogger())

	require.NoError(t, h.Handle(context.Background(), f.place(t, map[string]int{"M": 1})))
	assert.Equal(t, domain.OrderStatusConfirmed, f.status(t, "ORD-001"))
}

func TestHandle_Discards(t *testing.T) {
	f := newFixture(t)
	h := NewFulfillmentHandler(f.stock, f.orders, f.mailer, testLogger())

	err := h.Handle(context.Background(), []byte("{not json"))
	assert.ErrorIs(t, err, messaging.ErrDiscard)

	unknown, err := json.Marshal(domain.OrderCreatedEvent{OrderID: "ORD-404"})
	require.NoError(t, err)
	assert.ErrorIs(t, h.Handle(context.Background(), unknown), messaging.ErrDiscard)
}
