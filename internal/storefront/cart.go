package storefront

import (
	"errors"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/domain"
)

func (h *Handler) cart(w http.ResponseWriter, r *http.Request) *cart.Cart {
	c, id := h.carts.Get(r.Header.Get(CartSessionHeader))
	w.Header().Set(CartSessionHeader, id)
	return c
}

func (h *Handler) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.cart(w, r).Snapshot())
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  *int   `json:"quantity"`
}

// HandleAddItem adds the resolved variant at its current price. A variant
// that does not exist or has no stock cannot be added.
func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 {
		h.writeDomainError(w, r, domain.NewValidationError("quantity", "must be at least 1"))
		return
	}

	product, ok := h.catalog.Product(req.ProductID)
	if !ok {
		h.writeDomainError(w, r, domain.ErrProductNotFound)
		return
	}
	v, err := h.catalog.Resolve(req.ProductID, req.Size, req.Color)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !catalog.IsPurchasable(&v) {
		h.writeError(w, http.StatusConflict, "variant is out of stock")
		return
	}

	c := h.cart(w, r)
	c.Add(product, v.Size, v.Color, v.Price, quantity)

	h.logger.InfoContext(r.Context(), "cart item added", "variant", v.Key().String(), "quantity", quantity)
	h.writeJSON(w, http.StatusOK, c.Snapshot())
}

// HandleUpdateItem sets a line's quantity; zero or less removes it.
func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		h.writeDomainError(w, r, domain.NewValidationError("quantity", "is required"))
		return
	}

	c := h.cart(w, r)
	c.UpdateQuantity(req.ProductID, req.Size, req.Color, *req.Quantity)
	h.writeJSON(w, http.StatusOK, c.Snapshot())
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	c := h.cart(w, r)
	c.Remove(req.ProductID, req.Size, req.Color)
	h.writeJSON(w, http.StatusOK, c.Snapshot())
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var shipping domain.ShippingDetails
	if !h.decode(w, r, &shipping) {
		return
	}

	var customerID string
	if s, ok := auth.SessionFrom(r.Context()); ok {
		customerID = s.Customer.ID
	}

	order, err := h.checkout.Checkout(r.Context(), h.cart(w, r), shipping, customerID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.writeDomainError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "signed in", "customer_id", s.Customer.ID, "role", s.Customer.Role)
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token == "" {
		h.writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	s, ok := auth.SessionFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}
