// Package http exposes the catalog, cart and sync state as a JSON API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rogerio-castellano/mall-billing/internal/http/handlers"
	rl "github.com/rogerio-castellano/mall-billing/internal/http/rate_limiter"
)

type RouterOptions struct {
	Log Log
	// Visitors enables per-IP rate limiting when set.
	Visitors *rl.Visitors
}

func NewRouter(s *handlers.Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(WithRequestID)
	if opts.Log != nil {
		r.Use(WithAccessLog(opts.Log))
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "application/json", "text/csv"))
	if opts.Visitors != nil {
		r.Use(RateLimitMiddleware(opts.Visitors))
	}

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.GetProductsHandler)
		r.Post("/", s.CreateProductHandler)
		r.Post("/import", s.ImportProductsHandler)

		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", s.GetProductHandler)
			r.Patch("/", s.UpdateProductHandler)
			r.Post("/adjust", s.AdjustStockHandler)
			r.Post("/stock", s.StockMovementHandler)
			r.Put("/stock", s.SetStockHandler)
			r.Get("/movements", s.GetMovementsHandler)
			r.Get("/movements/export", s.ExportMovementsHandler)
		})
	})

	r.Get("/bills", s.GetBillsHandler)
	r.Post("/bills", s.CreateBillHandler)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", s.GetCartHandler)
		r.Post("/items", s.AddCartItemHandler)
		r.Patch("/items/{code}", s.ChangeCartItemHandler)
		r.Delete("/items/{code}", s.RemoveCartItemHandler)
		r.Post("/checkout", s.CheckoutHandler)
	})

	r.Get("/dashboard", s.GetDashboardHandler)
	r.Get("/notifications", s.GetNotificationsHandler)
	r.Get("/status", s.GetStatusHandler)
	r.Post("/sync", s.SyncHandler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}
