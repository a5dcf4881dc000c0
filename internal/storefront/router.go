package storefront

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

// NewRouter mounts every route. metrics may be nil.
func NewRouter(h *Handler, provider auth.Provider, metrics http.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.RouteTagger)

	r.Get("/healthz", h.HandleHealth)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(provider, logger))

		r.Get("/products", h.HandleListProducts)
		r.Get("/products/{id}", h.HandleGetProduct)
		r.Get("/products/{id}/variants", h.HandleListVariants)
		r.Get("/products/{id}/options", h.HandleOptions)
		r.Get("/categories", h.HandleCategories)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.HandleGetCart)
			r.Post("/items", h.HandleAddItem)
			r.Patch("/items", h.HandleUpdateItem)
			r.Delete("/items", h.HandleRemoveItem)
		})
		r.Post("/checkout", h.HandleCheckout)

		r.Post("/auth/login", h.HandleLogin)
		r.Post("/auth/logout", h.HandleLogout)
		r.Get("/auth/session", h.HandleSession)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/products", h.HandleAdminSummaries)
			r.Post("/products", h.HandleCreateProduct)
			r.Get("/products/{id}/grid", h.HandleAdminGrid)
			r.Put("/products/{id}", h.HandleUpdateProduct)
			r.Delete("/products/{id}", h.HandleDeleteProduct)
			r.Delete("/products/{id}/variants", h.HandleDeleteVariants)
			r.Get("/orders", h.HandleAdminOrders)
			r.Patch("/orders/{id}/status", h.HandleUpdateOrderStatus)
		})
	})

	return r
}
