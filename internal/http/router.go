package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	ServiceName    string
}

type Handlers struct {
	Cart        *CartHandler
	Orders      *OrdersHandler
	Catalog     *CatalogHandler
	Admin       *AdminHandler
	Auth        *AuthHandler
	Preferences *PreferencesHandler
}

// NewRouter wires every route. ready gates the routes that need loaded shop
// data and gate guards /admin.
func NewRouter(cfg RouterConfig, hs Handlers, ready StatusSource, gate TokenValidator, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// long-lived stream, no timeout or compression
		r.With(RequireReady(ready)).Get("/cart/events", hs.Cart.Events)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			r.Use(middleware.Compress(5))
			r.Use(BodyLimit(cfg.MaxBodyBytes))

			r.Get("/status", hs.Catalog.Status)
			r.Get("/previews/{id}", hs.Orders.GetPreview)
			r.Get("/preferences", hs.Preferences.Get)
			r.Put("/preferences", hs.Preferences.Put)
			r.Post("/auth/login", hs.Auth.Login)
			r.Post("/auth/logout", hs.Auth.Logout)

			r.Group(func(r chi.Router) {
				r.Use(RequireReady(ready))

				r.Get("/products", hs.Catalog.ListProducts)
				r.Get("/products/{product_id}", hs.Catalog.GetProduct)
				r.Get("/company", hs.Catalog.Company)

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", hs.Cart.GetCart)
					r.Delete("/", hs.Cart.ClearCart)
					r.Post("/items", hs.Cart.AddItem)
					r.Put("/items/{product_id}/{variant_id}", hs.Cart.UpdateQuantity)
					r.Delete("/items/{product_id}/{variant_id}", hs.Cart.RemoveItem)
				})

				r.Route("/orders/snapshot", func(r chi.Router) {
					r.Post("/", hs.Orders.CreateSnapshot)
					r.Get("/{id}", hs.Orders.GetSnapshot)
					r.Delete("/{id}", hs.Orders.CancelSnapshot)
					r.Get("/{id}/pdf", hs.Orders.Download)
					r.Post("/{id}/preview", hs.Orders.Preview)
					r.Post("/{id}/send", hs.Orders.Send)
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(AdminOnly(gate))

				r.Post("/refresh", hs.Admin.Refresh)

				r.Group(func(r chi.Router) {
					r.Use(RequireReady(ready))

					r.Get("/orders", hs.Admin.ListOrders)
					r.Post("/orders/{order_id}/confirm", hs.Admin.ConfirmOrder)
					r.Post("/products", hs.Admin.SaveProduct)
					r.Delete("/products/{product_id}", hs.Admin.DeleteProduct)
					r.Put("/company", hs.Admin.UpdateCompany)
				})
			})
		})
	})

	return otelhttp.NewHandler(r, cfg.ServiceName)
}
