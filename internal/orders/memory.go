package orders

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// MemoryStore keeps orders in process. Orders are copied in and out so
// callers never share item slices with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	seq    int64
	orders []domain.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) NextOrderNumber(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

func (s *MemoryStore) Create(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index(order.ID) >= 0 {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	s.orders = append(s.orders, clone(*order))
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.index(id)
	if i < 0 {
		return nil, domain.ErrOrderNotFound
	}
	o := clone(s.orders[i])
	return &o, nil
}

// List returns orders newest first.
func (s *MemoryStore) List(ctx context.Context) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0; i-- {
		out = append(out, clone(s.orders[i]))
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return nil, domain.ErrOrderNotFound
	}
	current := s.orders[i].Status
	if !current.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, status)
	}
	s.orders[i].Status = status

	o := clone(s.orders[i])
	return &o, nil
}

func (s *MemoryStore) index(id string) int {
	return slices.IndexFunc(s.orders, func(o domain.Order) bool { return o.ID == id })
}

func clone(o domain.Order) domain.Order {
	o.Items = slices.Clone(o.Items)
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}
	return o
}
