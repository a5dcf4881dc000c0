package storefront

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/cart"
)

// CartSessionHeader names the shopper's cart. The storefront issues one on
// the first cart request and echoes it on every cart response.
const CartSessionHeader = "X-Cart-Session"

type cartSession struct {
	cart     *cart.Cart
	lastSeen time.Time
}

// CartSessions holds one in-memory cart per session id. Carts are not
// persisted; an idle cart is dropped by Sweep.
type CartSessions struct {
	mu       sync.Mutex
	sessions map[string]*cartSession
	now      func() time.Time
}

func NewCartSessions() *CartSessions {
	return &CartSessions{
		sessions: make(map[string]*cartSession),
		now:      time.Now,
	}
}

// Get returns the cart for id, opening a new session when id is empty or
// unknown. The returned id is the one the caller must keep using.
func (s *CartSessions) Get(id string) (*cart.Cart, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cs, ok := s.sessions[id]; ok {
		cs.lastSeen = s.now()
		return cs.cart, id
	}

	id = uuid.New().String()
	cs := &cartSession{cart: cart.New(), lastSeen: s.now()}
	s.sessions[id] = cs
	return cs.cart, id
}

// Sweep drops carts not used for idle and returns how many went.
func (s *CartSessions) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	n := 0
	for id, cs := range s.sessions {
		if cs.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *CartSessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
