package storefront

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/storefront/internal/admin"
	"github.com/joao-fontenele/storefront/internal/domain"
)

func (h *Handler) HandleAdminSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.admin.Summaries(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) HandleAdminGrid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	grid, err := h.admin.EditGrid(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if _, ok := h.catalog.Product(id); !ok {
		h.writeDomainError(w, r, domain.ErrProductNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, grid)
}

type saveProductRequest struct {
	Product domain.Product    `json:"product"`
	Grid    admin.VariantGrid `json:"grid"`
}

func (h *Handler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req saveProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Product.ID = domain.ID{}
	h.save(w, r, req)
}

func (h *Handler) HandleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req saveProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Product.ID = domain.NewID(chi.URLParam(r, "id"))
	h.save(w, r, req)
}

// save reports a failed variant stage together with the committed product,
// so the form can retry the variants without creating the product again.
func (h *Handler) save(w http.ResponseWriter, r *http.Request, req saveProductRequest) {
	res, err := h.admin.Save(r.Context(), req.Product, req.Grid)
	if err != nil {
		status, body := h.errorBody(r, err)
		body.Result = res
		h.writeJSON(w, status, body)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, res)
}

func (h *Handler) HandleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deleteVariantsRequest struct {
	Variants []struct {
		Size  string `json:"size"`
		Color string `json:"color"`
	} `json:"variants"`
}

func (h *Handler) HandleDeleteVariants(w http.ResponseWriter, r *http.Request) {
	var req deleteVariantsRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	keys := make([]domain.VariantKey, 0, len(req.Variants))
	for _, v := range req.Variants {
		keys = append(keys, domain.VariantKey{ProductID: id, Size: v.Size, Color: v.Color})
	}

	n, err := h.admin.DeleteVariants(r.Context(), id, keys)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (h *Handler) HandleAdminOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}
