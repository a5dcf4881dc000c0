// Package storefront is the HTTP API of the shop: catalog browsing, carts,
// checkout, sign-in and the admin console.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/admin"
	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// ListingCache stores rendered listings. A nil cache is allowed.
type ListingCache interface {
	Get(ctx context.Context, operation, key string, dst any) (bool, error)
	Set(ctx context.Context, operation, key string, value any) error
}

type Deps struct {
	Catalog  *catalog.Catalog
	Carts    *CartSessions
	Checkout *checkout.Service
	Admin    *admin.CatalogAdmin
	Orders   *admin.OrderDesk
	Auth     auth.Provider
	Listings ListingCache
}

type Handler struct {
	catalog  *catalog.Catalog
	carts    *CartSessions
	checkout *checkout.Service
	admin    *admin.CatalogAdmin
	orders   *admin.OrderDesk
	auth     auth.Provider
	listings ListingCache
	logger   *slog.Logger
}

func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	return &Handler{
		catalog:  deps.Catalog,
		carts:    deps.Carts,
		checkout: deps.Checkout,
		admin:    deps.Admin,
		orders:   deps.Orders,
		auth:     deps.Auth,
		listings: deps.Listings,
		logger:   logger,
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

type errorResponse struct {
	Error      string                  `json:"error"`
	Violations []domain.Violation      `json:"violations,omitempty"`
	Lines      []domain.StockShortfall `json:"lines,omitempty"`
	Result     *admin.Result           `json:"result,omitempty"`
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Unexpected
// errors are logged and reported without detail.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := h.errorBody(r, err)
	h.writeJSON(w, status, body)
}

func (h *Handler) errorBody(r *http.Request, err error) (int, errorResponse) {
	var (
		validation *domain.ValidationError
		stock      *domain.InsufficientStockError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorResponse{Error: "validation failed", Violations: validation.Violations}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: err.Error()}
	case errors.As(err, &stock):
		return http.StatusConflict, errorResponse{Error: "insufficient stock", Lines: stock.Lines}
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrVariantNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case domain.IsDuplicateVariantError(err), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case domain.IsPersistenceError(err), domain.IsProductWriteError(err):
		h.logger.ErrorContext(r.Context(), "storage failure", "error", err, "path", r.URL.Path)
		return http.StatusBadGateway, errorResponse{Error: "storage unavailable"}
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "error", err, "path", r.URL.Path)
		return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}
}
