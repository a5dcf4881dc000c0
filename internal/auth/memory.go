package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type account struct {
	customer domain.Customer
	hash     []byte
}

// MemoryProvider keeps accounts and sessions in process memory. It backs
// local development and tests.
type MemoryProvider struct {
	mu       sync.RWMutex
	accounts map[string]account
	sessions map[string]Session

	ttl  time.Duration
	cost int
	now  func() time.Time
}

type MemoryOption func(*MemoryProvider)

func WithSessionTTL(ttl time.Duration) MemoryOption {
	return func(p *MemoryProvider) { p.ttl = ttl }
}

// WithHashCost sets the bcrypt cost used for new accounts.
func WithHashCost(cost int) MemoryOption {
	return func(p *MemoryProvider) { p.cost = cost }
}

func WithNow(now func() time.Time) MemoryOption {
	return func(p *MemoryProvider) { p.now = now }
}

func NewMemoryProvider(opts ...MemoryOption) *MemoryProvider {
	p := &MemoryProvider{
		accounts: make(map[string]account),
		sessions: make(map[string]Session),
		ttl:      24 * time.Hour,
		cost:     bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddAccount registers a customer. Emails are matched case-insensitively.
func (p *MemoryProvider) AddAccount(name, email, password, role string) (domain.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.Customer{}, domain.NewValidationError("email", "email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("hash password: %w", err)
	}

	c := domain.Customer{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: p.now(),
	}

	p.mu.Lock()
	p.accounts[email] = account{customer: c, hash: hash}
	p.mu.Unlock()
	return c, nil
}

func (p *MemoryProvider) Login(ctx context.Context, email, password string) (*Session, error) {
	p.mu.RLock()
	acc, ok := p.accounts[strings.ToLower(strings.TrimSpace(email))]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s := Session{
		Token:     uuid.New().String(),
		Customer:  acc.customer,
		ExpiresAt: p.now().Add(p.ttl),
	}

	p.mu.Lock()
	p.sessions[s.Token] = s
	p.mu.Unlock()
	return &s, nil
}

func (p *MemoryProvider) Logout(ctx context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sessions[token]; !ok {
		return ErrSessionNotFound
	}
	delete(p.sessions, token)
	return nil
}

func (p *MemoryProvider) CurrentSession(ctx context.Context, token string) (*Session, error) {
	p.mu.RLock()
	s, ok := p.sessions[token]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	if !p.now().Before(s.ExpiresAt) {
		p.mu.Lock()
		delete(p.sessions, token)
		p.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return &s, nil
}
