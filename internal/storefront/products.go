package storefront

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// ProductCard is a product as shown in a listing: the cheapest variant's
// price and whether anything can be bought at all.
type ProductCard struct {
	Product         domain.Product      `json:"product"`
	Price           decimal.NullDecimal `json:"price"`
	OriginalPrice   decimal.NullDecimal `json:"original_price"`
	DiscountPercent int64               `json:"discount_percent"`
	Sizes           []string            `json:"sizes"`
	Stock           domain.StockBand    `json:"stock"`
}

func (h *Handler) card(p domain.Product) ProductCard {
	id := p.ID.String()
	c := ProductCard{Product: p, Sizes: h.catalog.AvailableSizes(id)}

	total := 0
	var cheapest *domain.ProductVariant
	for _, v := range h.catalog.VariantsFor(id) {
		total += v.Stock
		if cheapest == nil || v.Price.LessThan(cheapest.Price) {
			cheapest = &v
		}
	}
	c.Stock = domain.BandOf(total)
	if cheapest != nil {
		c.Price = decimal.NewNullDecimal(cheapest.Price)
		c.OriginalPrice = decimal.NewNullDecimal(cheapest.OriginalPrice)
		c.DiscountPercent = domain.DiscountPercent(cheapest.OriginalPrice, cheapest.Price)
	}
	if c.Sizes == nil {
		c.Sizes = []string{}
	}
	return c
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	var cards []ProductCard
	if h.cached(r, "products", query, &cards) {
		h.writeJSON(w, http.StatusOK, cards)
		return
	}

	products := h.catalog.Search(query)
	cards = make([]ProductCard, 0, len(products))
	for _, p := range products {
		cards = append(cards, h.card(p))
	}

	h.store(r, "products", query, cards)
	h.writeJSON(w, http.StatusOK, cards)
}

func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	var categories []catalog.CategoryCount
	if h.cached(r, "categories", "all", &categories) {
		h.writeJSON(w, http.StatusOK, categories)
		return
	}

	categories = h.catalog.Categories()
	h.store(r, "categories", "all", categories)
	h.writeJSON(w, http.StatusOK, categories)
}

type productDetail struct {
	ProductCard
	Variants []domain.ProductVariant `json:"variants"`
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.catalog.Product(chi.URLParam(r, "id"))
	if !ok {
		h.writeDomainError(w, r, domain.ErrProductNotFound)
		return
	}

	variants := h.catalog.VariantsFor(p.ID.String())
	if variants == nil {
		variants = []domain.ProductVariant{}
	}
	h.writeJSON(w, http.StatusOK, productDetail{ProductCard: h.card(p), Variants: variants})
}

func (h *Handler) HandleListVariants(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.catalog.Product(id); !ok {
		h.writeDomainError(w, r, domain.ErrProductNotFound)
		return
	}

	variants := h.catalog.VariantsFor(id)
	if variants == nil {
		variants = []domain.ProductVariant{}
	}
	h.writeJSON(w, http.StatusOK, variants)
}

type optionsResponse struct {
	Size            string                 `json:"size"`
	Color           string                 `json:"color"`
	Sizes           []string               `json:"sizes"`
	Colors          []string               `json:"colors"`
	Variant         *domain.ProductVariant `json:"variant"`
	DiscountPercent int64                  `json:"discount_percent"`
	Stock           domain.StockBand       `json:"stock"`
	CanAddToCart    bool                   `json:"can_add_to_cart"`
}

// HandleOptions walks the size then color pickers of a product page. An
// unknown size yields no colors; an unknown color keeps the default one.
func (h *Handler) HandleOptions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.catalog.Product(id); !ok {
		h.writeDomainError(w, r, domain.ErrProductNotFound)
		return
	}

	sel := catalog.NewSelection(h.catalog, id)
	if size := r.URL.Query().Get("size"); size != "" {
		sel.SelectSize(size)
	}
	if color := r.URL.Query().Get("color"); color != "" {
		sel.SelectColor(color)
	}

	resp := optionsResponse{
		Size:         sel.Size(),
		Color:        sel.Color(),
		Sizes:        h.catalog.AvailableSizes(id),
		Colors:       sel.Colors(),
		CanAddToCart: sel.CanAddToCart(),
	}
	if v, err := sel.Variant(); err == nil {
		resp.Variant = &v
		resp.DiscountPercent = domain.DiscountPercent(v.OriginalPrice, v.Price)
		resp.Stock = domain.BandOf(v.Stock)
	}
	if resp.Sizes == nil {
		resp.Sizes = []string{}
	}
	if resp.Colors == nil {
		resp.Colors = []string{}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) cached(r *http.Request, operation, key string, dst any) bool {
	if h.listings == nil {
		return false
	}
	found, err := h.listings.Get(r.Context(), operation, key, dst)
	if err != nil {
		h.logger.WarnContext(r.Context(), "listing cache read failed", "error", err, "operation", operation)
		return false
	}
	return found
}

func (h *Handler) store(r *http.Request, operation, key string, value any) {
	if h.listings == nil {
		return
	}
	if err := h.listings.Set(r.Context(), operation, key, value); err != nil {
		h.logger.WarnContext(r.Context(), "listing cache write failed", "error", err, "operation", operation)
	}
}
