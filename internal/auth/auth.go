// Package auth resolves who is calling the storefront and whether they may
// manage the catalog.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
)

type Session struct {
	Token     string          `json:"token"`
	Customer  domain.Customer `json:"customer"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Customer.Role == domain.RoleAdmin
}

type Provider interface {
	Login(ctx context.Context, email, password string) (*Session, error)
	Logout(ctx context.Context, token string) error
	CurrentSession(ctx context.Context, token string) (*Session, error)
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// IsAdmin reports whether the caller in ctx has the admin role.
func IsAdmin(ctx context.Context) bool {
	s, _ := SessionFrom(ctx)
	return s.IsAdmin()
}

func RequireAdmin(ctx context.Context) error {
	if !IsAdmin(ctx) {
		return domain.ErrForbidden
	}
	return nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware attaches the session named by the bearer token, if any. Requests
// without a valid token continue anonymously.
func Middleware(p Provider, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			s, err := p.CurrentSession(r.Context(), token)
			if err != nil {
				if !errors.Is(err, ErrSessionNotFound) {
					logger.ErrorContext(r.Context(), "failed to resolve session", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}
