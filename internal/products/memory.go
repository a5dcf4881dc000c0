package products

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// MemoryStore is a thread-safe in-memory product store. Deleting a product
// drops its variants, as the Postgres schema does.
type MemoryStore struct {
	mu       sync.RWMutex
	products []domain.Product
	variants []domain.ProductVariant
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.products), nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.productIndex(id)
	if i < 0 {
		return nil, domain.ErrProductNotFound
	}
	p := s.products[i]
	return &p, nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	if err := ctx.Err(); err != nil {
		return &domain.ProductWriteError{Op: "create", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p.ID = domain.NewID(uuid.New().String())
	p.CreatedAt = now
	p.UpdatedAt = now
	s.products = append(s.products, *p)
	return nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if err := ctx.Err(); err != nil {
		return &domain.ProductWriteError{Op: "update", ProductID: p.ID.String(), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(p.ID.String())
	if i < 0 {
		return &domain.ProductWriteError{Op: "update", ProductID: p.ID.String(), Err: domain.ErrProductNotFound}
	}
	p.CreatedAt = s.products[i].CreatedAt
	p.UpdatedAt = s.now()
	s.products[i] = *p
	return nil
}

func (s *MemoryStore) DeleteProduct(ctx context.Context, id string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(id)
	if i < 0 {
		return time.Time{}, domain.ErrProductNotFound
	}
	s.products = slices.Delete(s.products, i, i+1)
	s.variants = slices.DeleteFunc(s.variants, func(v domain.ProductVariant) bool { return v.ProductID == id })
	return s.now(), nil
}

func (s *MemoryStore) ListVariants(ctx context.Context, productIDs ...string) ([]domain.ProductVariant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(productIDs) == 0 {
		return slices.Clone(s.variants), nil
	}
	var out []domain.ProductVariant
	for _, v := range s.variants {
		if slices.Contains(productIDs, v.ProductID) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpsertVariants(ctx context.Context, productID string, variants []domain.ProductVariant) ([]domain.ProductVariant, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "upsert variants", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.productIndex(productID) < 0 {
		return nil, &domain.PersistenceError{Op: "upsert variants", Err: fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)}
	}

	// Work on a copy so a conflict part way through leaves nothing written.
	next := slices.Clone(s.variants)
	saved := make([]domain.ProductVariant, 0, len(variants))
	for _, v := range variants {
		v.ProductID = productID
		v.Reprice()

		byKey := slices.IndexFunc(next, func(x domain.ProductVariant) bool { return x.Key() == v.Key() })
		if id, ok := v.ID.Get(); ok {
			byID := slices.IndexFunc(next, func(x domain.ProductVariant) bool { return x.ID.String() == id })
			if byID >= 0 && next[byID].Key() != v.Key() {
				return nil, &domain.DuplicateVariantError{
					ProductID: productID,
					Err:       fmt.Errorf("variant id %s already belongs to %s", id, next[byID].Key()),
				}
			}
		}

		if byKey >= 0 {
			v.ID = next[byKey].ID
			v.CreatedAt = next[byKey].CreatedAt
			next[byKey] = v
		} else {
			if !v.ID.IsAssigned() {
				v.ID = domain.NewID(uuid.New().String())
			}
			v.CreatedAt = s.now()
			next = append(next, v)
		}
		saved = append(saved, v)
	}

	s.variants = next
	return saved, nil
}

func (s *MemoryStore) DeleteVariants(ctx context.Context, productID string, keys []domain.VariantKey) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &domain.PersistenceError{Op: "delete variants", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.variants)
	s.variants = slices.DeleteFunc(s.variants, func(v domain.ProductVariant) bool {
		return v.ProductID == productID && slices.Contains(keys, v.Key())
	})
	return before - len(s.variants), nil
}

func (s *MemoryStore) DecrementStock(ctx context.Context, key domain.VariantKey, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.variantIndex(key)
	if i < 0 || s.variants[i].Stock < quantity {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, key)
	}
	s.variants[i].Stock -= quantity
	return nil
}

func (s *MemoryStore) RestockVariant(ctx context.Context, key domain.VariantKey, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.variantIndex(key)
	if i < 0 {
		return fmt.Errorf("%w: %s", domain.ErrVariantNotFound, key)
	}
	s.variants[i].Stock += quantity
	return nil
}

func (s *MemoryStore) productIndex(id string) int {
	return slices.IndexFunc(s.products, func(p domain.Product) bool { return p.ID.String() == id })
}

func (s *MemoryStore) variantIndex(key domain.VariantKey) int {
	return slices.IndexFunc(s.variants, func(v domain.ProductVariant) bool { return v.Key() == key })
}
