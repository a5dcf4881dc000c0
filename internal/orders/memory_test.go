package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/admin"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/domain"
)

var (
	_ checkout.OrderStore = (*MemoryStore)(nil)
	_ checkout.IDSequence = (*MemoryStore)(nil)
	_ admin.OrderStore    = (*MemoryStore)(nil)
	_ checkout.OrderStore = (*OrderRepository)(nil)
	_ checkout.IDSequence = (*OrderRepository)(nil)
	_ admin.OrderStore    = (*OrderRepository)(nil)
	_ checkout.OrderStore = (*MongoStore)(nil)
	_ checkout.IDSequence = (*MongoStore)(nil)
	_ admin.OrderStore    = (*MongoStore)(nil)
)

func placeOrder(t *testing.T, s *MemoryStore) *domain.Order {
	t.Helper()
	ctx := context.Background()

	n, err := s.NextOrderNumber(ctx)
	require.NoError(t, err)

	order := &domain.Order{
		ID:           domain.OrderID(n),
		CustomerName: "Asha",
		Items: []domain.OrderItem{
			{ProductID: "kurta", Name: "Kurta", Size: "M", Color: "Gold", Quantity: 2, Price: decimal.NewFromInt(1999)},
		},
		Status:    domain.OrderStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	order.Total = domain.OrderTotal(order.Items)
	require.NoError(t, s.Create(ctx, order))
	return order
}

func TestMemoryStore_NumbersIncrease(t *testing.T) {
	s := NewMemoryStore()

	first := placeOrder(t, s)
	second := placeOrder(t, s)

	assert.Equal(t, "ORD-001", first.ID)
	assert.Equal(t, "ORD-002", second.ID)
}

func TestMemoryStore_GetByID(t *testing.T) {
	s := NewMemoryStore()
	placed := placeOrder(t, s)

	got, err := s.GetByID(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, "3998", got.Total.String())
	require.Len(t, got.Items, 1)

	got.Items[0].Quantity = 99
	again, err := s.GetByID(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Items[0].Quantity)

	_, err = s.GetByID(context.Background(), "ORD-999")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	s := NewMemoryStore()
	placed := placeOrder(t, s)

	assert.Error(t, s.Create(context.Background(), placed))
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	placeOrder(t, s)
	placeOrder(t, s)

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ORD-002", list[0].ID)
	assert.Equal(t, "ORD-001", list[1].ID)
}

func TestMemoryStore_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	placed := placeOrder(t, s)

	tests := []struct {
		name    string
		id      string
		status  domain.OrderStatus
		wantErr error
	}{
		{name: "forward", id: placed.ID, status: domain.OrderStatusConfirmed},
		{name: "skip ahead", id: placed.ID, status: domain.OrderStatusDelivered},
		{name: "backward", id: placed.ID, status: domain.OrderStatusShipped, wantErr: domain.ErrInvalidTransition},
		{name: "same", id: placed.ID, status: domain.OrderStatusDelivered, wantErr: domain.ErrInvalidTransition},
		{name: "missing", id: "ORD-404", status: domain.OrderStatusShipped, wantErr: domain.ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.UpdateStatus(ctx, tt.id, tt.status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
		})
	}
}
